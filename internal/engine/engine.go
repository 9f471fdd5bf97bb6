// Package engine is the entry point for callers: it resolves an account
// label to its session, opens an isolated browser with that session, runs
// one login or action, and tears the browser down again.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/actions"
	"github.com/ibeckermayer/xpilot/internal/auth"
	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/media"
	"github.com/ibeckermayer/xpilot/internal/store"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// LoginKind labels login failures in an ActionError.
const LoginKind types.Kind = "login"

// Step names used before a choreography starts.
const (
	StepSession = "session"
	StepSource  = "media-source"
	StepOpen    = "open"
)

// Opener starts an isolated browser tab with cookies already injected.
type Opener interface {
	Open(ctx context.Context, headless bool, cookies []*network.CookieParam) (browser.Tab, error)
}

// History records created and deleted posts.
type History interface {
	SavePost(p *store.Post) error
	MarkDeleted(postID string) (bool, error)
}

// Deps are the collaborators of an Engine. History and Media are optional.
type Deps struct {
	Sessions  auth.SessionStore
	Opener    Opener
	Capturer  *browser.Capturer
	Humanizer *humanize.Humanizer
	Media     *media.Resolver
	History   History
	Timeouts  config.TimeoutsConfig
	Logger    *zap.Logger
}

// Engine runs logins and actions. It holds no per-account state; concurrent
// calls for different labels never share a browser.
type Engine struct {
	sessions auth.SessionStore
	opener   Opener
	capturer *browser.Capturer
	human    *humanize.Humanizer
	media    *media.Resolver
	history  History
	runner   *actions.Runner
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// New creates an engine.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	human := d.Humanizer
	if human == nil {
		human = humanize.Disabled()
	}
	return &Engine{
		sessions: d.Sessions,
		opener:   d.Opener,
		capturer: d.Capturer,
		human:    human,
		media:    d.Media,
		history:  d.History,
		runner:   actions.NewRunner(human, d.Timeouts, logger),
		timeouts: d.Timeouts,
		logger:   logger.Named("engine"),
	}
}

// Runner exposes the action runner, mainly to tune its poll intervals.
func (e *Engine) Runner() *actions.Runner { return e.runner }

// Login signs in with username and password and saves the session under
// label. The outcome carries the three verification signals.
func (e *Engine) Login(ctx context.Context, label, username, password string, headless bool) (*types.LoginOutcome, error) {
	tab, err := e.opener.Open(ctx, headless, nil)
	if err != nil {
		return nil, &types.ActionError{Label: label, Kind: LoginKind, Step: StepOpen, Err: err}
	}
	defer tab.Close()

	tctx, cancel := e.bound(tab.Context(), e.timeouts.Action)
	defer cancel()

	authenticator := auth.NewAuthenticator(e.sessions, e.human, e.captureFor(label), e.timeouts, e.logger)
	outcome, err := authenticator.Login(tctx, tab.Page(), auth.Credentials{
		Label:    label,
		Username: username,
		Password: password,
	})
	if err != nil {
		aerr := &types.ActionError{Label: label, Kind: LoginKind, Step: types.StepOf(err), Err: err}
		if outcome != nil {
			aerr.Diagnostics = outcome.Diagnostics
		}
		return outcome, aerr
	}
	e.logger.Info("login succeeded", zap.String("label", label), zap.String("session", outcome.SessionFile))
	return outcome, nil
}

// ImportCookies normalizes an exported cookie file and saves it under label.
func (e *Engine) ImportCookies(label string, raw []byte) (*auth.Session, error) {
	sess, err := auth.Normalize(raw)
	if err != nil {
		return nil, err
	}
	sess.Source = "import"
	if err := e.sessions.Save(label, sess); err != nil {
		return nil, err
	}
	if !sess.HasAuth() {
		e.logger.Warn("imported session lacks auth_token or ct0", zap.String("label", label))
	}
	return sess, nil
}

// Logout forgets the session of label.
func (e *Engine) Logout(label string) error {
	return e.sessions.Delete(label)
}

// Execute runs one request to completion. Failures are *types.ActionError
// values wrapping the underlying error kind.
func (e *Engine) Execute(ctx context.Context, req types.Request) (*types.Result, error) {
	fail := func(step string, err error) error {
		return &types.ActionError{Label: req.Label, Kind: req.Kind, Target: req.Target, Step: step, Err: err}
	}

	if err := req.Validate(); err != nil {
		return nil, fail(actions.StepValidate, err)
	}
	sess, err := e.sessions.Load(req.Label)
	if err != nil {
		return nil, fail(StepSession, err)
	}
	if !sess.Valid(time.Now()) {
		return nil, fail(StepSession, fmt.Errorf("%w: stored cookies for %s are missing or past expiry", types.ErrSessionExpired, req.Label))
	}

	// Downloads only live as long as the action.
	var downloaded []string
	defer func() {
		for _, p := range downloaded {
			_ = os.Remove(p)
		}
	}()
	source := func(path string) (string, error) {
		local, err := e.sourceMedia(ctx, path)
		if err == nil && media.IsRemote(path) {
			downloaded = append(downloaded, local)
		}
		return local, err
	}

	if path := req.Media(); path != "" {
		local, err := source(path)
		if err != nil {
			return nil, fail(StepSource, err)
		}
		req.MediaPaths = []string{local}
	}
	if req.Profile != nil {
		changes := *req.Profile
		for _, img := range []*string{&changes.Banner, &changes.Avatar} {
			if *img == "" {
				continue
			}
			local, err := source(*img)
			if err != nil {
				return nil, fail(StepSource, err)
			}
			*img = local
		}
		req.Profile = &changes
	}

	tab, err := e.opener.Open(ctx, req.Headless, sess.Params())
	if err != nil {
		return nil, fail(StepOpen, err)
	}
	defer tab.Close()

	tctx, cancel := e.bound(tab.Context(), e.timeouts.Action)
	defer cancel()

	res, err := e.runner.Run(tctx, tab.Page(), req)
	if err != nil {
		aerr := &types.ActionError{
			Label:  req.Label,
			Kind:   req.Kind,
			Target: req.Target,
			Step:   types.StepOf(err),
			Err:    err,
		}
		if res != nil {
			aerr.Target = res.Target
		}
		if c := e.captureFor(req.Label); c != nil {
			aerr.Diagnostics, _ = c.Capture(tctx, tab.Page(), string(req.Kind))
		}
		if errors.Is(err, types.ErrSessionExpired) {
			e.logger.Warn("session expired, log in again", zap.String("label", req.Label))
		}
		return res, aerr
	}

	e.record(req, res)
	return res, nil
}

func (e *Engine) sourceMedia(ctx context.Context, path string) (string, error) {
	if e.media != nil {
		return e.media.Resolve(ctx, path)
	}
	if media.IsRemote(path) {
		return "", fmt.Errorf("%w: remote media needs a download directory", types.ErrInvalidRequest)
	}
	return media.CheckLocal(path)
}

// record keeps the post history. It never fails the action.
func (e *Engine) record(req types.Request, res *types.Result) {
	if e.history == nil {
		return
	}
	switch {
	case req.Kind.Composes():
		target := ""
		if req.Kind != types.Publish {
			target = res.Target
		}
		err := e.history.SavePost(&store.Post{
			Label:  req.Label,
			Kind:   string(req.Kind),
			URL:    res.PostURL,
			Text:   req.Text,
			Target: target,
		})
		if err != nil {
			e.logger.Warn("failed to record post", zap.Error(err))
		}
	case req.Kind == types.Delete:
		if _, err := e.history.MarkDeleted(actions.PostID(res.Target)); err != nil {
			e.logger.Warn("failed to mark post deleted", zap.Error(err))
		}
	}
}

func (e *Engine) captureFor(label string) *browser.Capturer {
	if e.capturer == nil {
		return nil
	}
	return e.capturer.Sub(auth.SafeLabel(label))
}

func (e *Engine) bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Publish posts text with an optional media file and returns the post URL
// when X showed one.
func (e *Engine) Publish(ctx context.Context, label, text, mediaPath string, headless bool) (string, error) {
	res, err := e.Execute(ctx, request(label, types.Publish, "", text, mediaPath, headless))
	if err != nil {
		return "", err
	}
	return res.PostURL, nil
}

// Reply answers the post at target.
func (e *Engine) Reply(ctx context.Context, label, target, text, mediaPath string, headless bool) error {
	return e.exec(ctx, request(label, types.Reply, target, text, mediaPath, headless))
}

// Quote reposts target with a comment.
func (e *Engine) Quote(ctx context.Context, label, target, text, mediaPath string, headless bool) error {
	return e.exec(ctx, request(label, types.Quote, target, text, mediaPath, headless))
}

func (e *Engine) Like(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Like, target, "", "", headless))
}

func (e *Engine) Unlike(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Unlike, target, "", "", headless))
}

func (e *Engine) Bookmark(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Bookmark, target, "", "", headless))
}

func (e *Engine) Unbookmark(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.UndoBookmark, target, "", "", headless))
}

func (e *Engine) Repost(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Repost, target, "", "", headless))
}

func (e *Engine) UndoRepost(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.UndoRepost, target, "", "", headless))
}

// Follow follows the profile at target, a URL or @handle.
func (e *Engine) Follow(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Follow, target, "", "", headless))
}

// Unfollow unfollows the profile at target and confirms the prompt.
func (e *Engine) Unfollow(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Unfollow, target, "", "", headless))
}

// Delete removes one of the account's own posts by URL or numeric ID.
func (e *Engine) Delete(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Delete, target, "", "", headless))
}

// Share copies the link of the post at target through the share menu.
func (e *Engine) Share(ctx context.Context, label, target string, headless bool) error {
	return e.exec(ctx, request(label, types.Share, target, "", "", headless))
}

// UpdateProfile rewrites the non-empty fields of changes on the profile of
// label. Avatar and Banner may be local paths or URLs.
func (e *Engine) UpdateProfile(ctx context.Context, label string, changes types.ProfileChanges, headless bool) error {
	return e.exec(ctx, types.Request{Label: label, Kind: types.UpdateProfile, Profile: &changes, Headless: headless})
}

func (e *Engine) exec(ctx context.Context, req types.Request) error {
	_, err := e.Execute(ctx, req)
	return err
}

func request(label string, kind types.Kind, target, text, mediaPath string, headless bool) types.Request {
	req := types.Request{
		Label:    label,
		Kind:     kind,
		Target:   target,
		Text:     text,
		Headless: headless,
	}
	if strings.TrimSpace(mediaPath) != "" {
		req.MediaPaths = []string{mediaPath}
	}
	return req
}
