package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// LoginState is a step of the login flow.
type LoginState string

const (
	StateStart              LoginState = "start"
	StateCredentialsEntered LoginState = "credentials-entered"
	StateNextClicked        LoginState = "next-clicked"
	StatePasswordStage      LoginState = "password-stage"
	StateLoginClicked       LoginState = "login-clicked"
	StateVerifying          LoginState = "verifying"
	StateSuccess            LoginState = "success"
	StateFailed             LoginState = "failed"
	StateChallengeDetected  LoginState = "challenge-detected"
)

// verifyInterval spaces out the signal checks after the login click.
const verifyInterval = 500 * time.Millisecond

// Credentials for one login attempt.
type Credentials struct {
	Label    string
	Username string
	Password string
}

// Authenticator runs the humanized login flow and stores the resulting
// session.
type Authenticator struct {
	store    SessionStore
	human    *humanize.Humanizer
	capturer *browser.Capturer
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(store SessionStore, human *humanize.Humanizer, capturer *browser.Capturer, timeouts config.TimeoutsConfig, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		store:    store,
		human:    human,
		capturer: capturer,
		timeouts: timeouts,
		logger:   logger.Named("login"),
	}
}

type loginRun struct {
	*Authenticator
	page    browser.Page
	creds   Credentials
	outcome *types.LoginOutcome
	log     *zap.Logger
}

// Login signs in on page and saves the session under creds.Label. The
// outcome is returned on verification failures too, carrying the signal
// votes and diagnostics.
func (a *Authenticator) Login(ctx context.Context, page browser.Page, creds Credentials) (*types.LoginOutcome, error) {
	if creds.Label == "" || creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: label, username and password are required", types.ErrInvalidRequest)
	}

	r := &loginRun{
		Authenticator: a,
		page:          page,
		creds:         creds,
		outcome:       &types.LoginOutcome{},
		log:           a.logger.With(zap.String("label", creds.Label)),
	}
	r.enter(StateStart)

	if err := r.enterUsername(ctx); err != nil {
		return r.outcome, err
	}
	if err := r.passwordStage(ctx); err != nil {
		return r.outcome, err
	}
	if err := r.enterPassword(ctx); err != nil {
		return r.outcome, err
	}
	if err := r.verify(ctx); err != nil {
		return r.outcome, err
	}
	return r.outcome, r.save(ctx)
}

func (r *loginRun) enter(state LoginState) {
	r.log.Info("login state", zap.String("state", string(state)))
}

func (r *loginRun) enterUsername(ctx context.Context) error {
	if err := r.page.Navigate(ctx, LoginURL); err != nil {
		return types.AtStep("navigate", err)
	}
	if err := r.human.Wander(ctx, r.page); err != nil {
		return types.AtStep("navigate", err)
	}
	if err := r.human.Pause(ctx); err != nil {
		return types.AtStep("navigate", err)
	}

	if _, err := r.human.Click(ctx, r.page, UsernameField, r.timeouts.Selector); err != nil {
		return types.AtStep("username", err)
	}
	if err := r.human.Type(ctx, r.page, r.creds.Username); err != nil {
		return types.AtStep("username", err)
	}
	r.enter(StateCredentialsEntered)

	if _, err := r.human.Click(ctx, r.page, NextButton, r.timeouts.Selector); err != nil {
		return types.AtStep("next", err)
	}
	r.enter(StateNextClicked)
	return nil
}

// passwordStage waits for whichever screen X shows after the identifier:
// the password field, a rate-limit banner or an extra verification input.
// The password field is never touched in the latter two cases.
func (r *loginRun) passwordStage(ctx context.Context) error {
	var stage string
	err := browser.PollUntil(ctx, browser.DefaultInterval, r.timeouts.Login, func(ctx context.Context) (bool, error) {
		limited, err := rateLimited(ctx, r.page)
		if err != nil {
			return false, err
		}
		if limited {
			stage = "rate-limited"
			return true, nil
		}
		if _, ok, _ := browser.AnyVisible(ctx, r.page, ChallengeInput); ok {
			stage = "challenge"
			return true, nil
		}
		_, ok, err := browser.AnyVisible(ctx, r.page, PasswordField)
		if ok {
			stage = "password"
		}
		return ok, err
	})

	switch {
	case err != nil:
		r.enter(StateFailed)
		r.diagnose(ctx, "login-password-missing")
		return types.AtStep("password", fmt.Errorf("%w: password field never appeared: %v", types.ErrLoginFailed, err))
	case stage == "rate-limited":
		r.enter(StateChallengeDetected)
		r.diagnose(ctx, "login-rate-limited")
		return types.AtStep("challenge", fmt.Errorf("%w: X asked to try again later", types.ErrRateLimited))
	case stage == "challenge":
		r.enter(StateChallengeDetected)
		r.diagnose(ctx, "login-challenge")
		return types.AtStep("challenge", fmt.Errorf("%w: X asked for the phone or email of the account", types.ErrChallengeRequired))
	}
	r.enter(StatePasswordStage)
	return nil
}

func (r *loginRun) enterPassword(ctx context.Context) error {
	if _, err := r.human.Click(ctx, r.page, PasswordField, r.timeouts.Selector); err != nil {
		return types.AtStep("password", err)
	}
	if err := r.human.Type(ctx, r.page, r.creds.Password); err != nil {
		return types.AtStep("password", err)
	}
	if _, err := r.human.Click(ctx, r.page, LoginButton, r.timeouts.Selector); err != nil {
		return types.AtStep("submit", err)
	}
	r.enter(StateLoginClicked)
	return nil
}

func (r *loginRun) verify(ctx context.Context) error {
	r.enter(StateVerifying)

	limited := false
	err := browser.PollUntil(ctx, verifyInterval, r.timeouts.Login, func(ctx context.Context) (bool, error) {
		r.observe(ctx)
		if r.outcome.Decide() {
			return true, nil
		}
		// Timeline posts can contain the same phrases, so the page text
		// only counts while the browser is still inside the login flow.
		if !r.outcome.URLSignal {
			if hit, _ := rateLimited(ctx, r.page); hit {
				limited = true
				return true, nil
			}
		}
		return false, nil
	})
	if ctx.Err() != nil {
		return types.AtStep("verify", ctx.Err())
	}

	if limited {
		r.enter(StateChallengeDetected)
		r.diagnose(ctx, "login-rate-limited")
		return types.AtStep("verify", fmt.Errorf("%w: X asked to try again later", types.ErrRateLimited))
	}
	if err != nil || !r.outcome.Success {
		r.enter(StateFailed)
		r.diagnose(ctx, "login-failed")
		return types.AtStep("verify", fmt.Errorf("%w: %d of 3 signals (url=%t control=%t cookie=%t)",
			types.ErrLoginFailed, r.outcome.Votes(),
			r.outcome.URLSignal, r.outcome.ControlSignal, r.outcome.CookieSignal))
	}
	r.enter(StateSuccess)
	return nil
}

// observe refreshes the three independent success signals.
func (r *loginRun) observe(ctx context.Context) {
	o := r.outcome
	if u, err := r.page.Location(ctx); err == nil {
		o.URLSignal = LandedSignedIn(u)
	}
	_, o.ControlSignal, _ = browser.AnyVisible(ctx, r.page, SignedInControl)
	if cookies, err := r.page.Cookies(ctx); err == nil {
		o.CookieSignal = false
		for _, c := range cookies {
			if c.Name == AuthTokenCookie && c.Value != "" {
				o.CookieSignal = true
				break
			}
		}
	}
	r.log.Debug("login signals", zap.Bool("url", o.URLSignal), zap.Bool("control", o.ControlSignal), zap.Bool("cookie", o.CookieSignal))
}

func (r *loginRun) save(ctx context.Context) error {
	cookies, err := r.page.Cookies(ctx)
	if err != nil {
		return types.AtStep("save", fmt.Errorf("failed to extract cookies: %w", err))
	}
	sess := FromNetwork(cookies)
	sess.Source = "login"
	if err := r.store.Save(r.creds.Label, sess); err != nil {
		return types.AtStep("save", err)
	}
	r.outcome.SessionFile = r.store.Path(r.creds.Label)
	return nil
}

func (r *loginRun) diagnose(ctx context.Context, kind string) {
	if r.capturer == nil {
		return
	}
	bundle, _ := r.capturer.Capture(ctx, r.page, kind)
	r.outcome.Diagnostics = bundle
}

// LandedSignedIn reports whether a post-login URL looks like the signed-in
// app rather than the login flow.
func LandedSignedIn(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "x.com" && !strings.HasSuffix(host, ".x.com") &&
		host != "twitter.com" && !strings.HasSuffix(host, ".twitter.com") {
		return false
	}
	path := strings.ToLower(u.Path)
	if strings.HasPrefix(path, "/home") {
		return true
	}
	return !strings.Contains(path, "login") && !strings.Contains(path, "flow")
}

func rateLimited(ctx context.Context, page browser.Page) (bool, error) {
	text, err := page.Text(ctx)
	if err != nil {
		return false, err
	}
	text = strings.ToLower(text)
	for _, phrase := range RateLimitPhrases {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true, nil
		}
	}
	return false, nil
}
