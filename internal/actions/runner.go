// Package actions implements the X action catalog: one fixed choreography per
// action kind, driven through browser.Page.
package actions

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
	"github.com/ibeckermayer/xpilot/internal/media"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// Step names reported on failures.
const (
	StepValidate = "validate"
	StepNavigate = "navigate"
	StepTrigger  = "trigger"
	StepMenu     = "menu"
	StepMenuItem = "menu-item"
	StepCompose  = "compose"
	StepAttach   = "attach"
	StepMedia    = "media"
	StepGate     = "gate"
	StepSubmit   = "submit"
	StepConfirm  = "confirm"
	StepSettle   = "settle"
)

// Runner executes one request on an already authenticated page.
type Runner struct {
	// MediaInterval overrides the media readiness poll interval.
	MediaInterval time.Duration

	human    *humanize.Humanizer
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(human *humanize.Humanizer, timeouts config.TimeoutsConfig, logger *zap.Logger) *Runner {
	return &Runner{human: human, timeouts: timeouts, logger: logger.Named("actions")}
}

type choreography func(ctx context.Context, x *run) error

var catalog = map[types.Kind]choreography{
	types.Publish:       publish,
	types.Reply:         reply,
	types.Quote:         quote,
	types.Like:          toggle(LikeButton),
	types.Unlike:        toggle(UnlikeButton),
	types.Bookmark:      toggle(BookmarkButton),
	types.UndoBookmark:  toggle(RemoveBookmarkButton),
	types.Follow:        toggle(FollowButton),
	types.Repost:        menuAction(RepostButton, RepostItem),
	types.UndoRepost:    menuAction(UndoRepostButton, UndoRepostItem),
	types.Share:         menuAction(ShareButton, CopyLinkItem),
	types.Unfollow:      unfollow,
	types.Delete:        deletePost,
	types.UpdateProfile: updateProfile,
}

type run struct {
	*Runner
	page   browser.Page
	req    types.Request
	target string
	result *types.Result
	log    *zap.Logger
}

// Run validates req, navigates to its target and performs the choreography
// for req.Kind. Errors carry the failing step (see types.StepOf). The result
// is returned on failure too, holding whatever was observed.
func (r *Runner) Run(ctx context.Context, page browser.Page, req types.Request) (*types.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, types.AtStep(StepValidate, err)
	}
	target, err := NormalizeTarget(req.Kind, req.Target)
	if err != nil {
		return nil, types.AtStep(StepValidate, err)
	}
	ch, ok := catalog[req.Kind]
	if !ok {
		return nil, types.AtStep(StepValidate, fmt.Errorf("%w: no choreography for %s", types.ErrInvalidRequest, req.Kind))
	}

	x := &run{
		Runner: r,
		page:   page,
		req:    req,
		target: target,
		result: &types.Result{Kind: req.Kind, Target: target},
		log:    r.logger.With(zap.String("kind", string(req.Kind)), zap.String("label", req.Label)),
	}

	start := time.Now()
	x.log.Info("action started", zap.String("target", target))
	if err := x.navigate(ctx); err != nil {
		return x.result, err
	}
	if err := ch(ctx, x); err != nil {
		return x.result, err
	}
	x.result.Duration = time.Since(start)
	x.log.Info("action finished", zap.Duration("duration", x.result.Duration), zap.String("post_url", x.result.PostURL))
	return x.result, nil
}

func toggle(trigger browser.Candidates) choreography {
	return func(ctx context.Context, x *run) error {
		if err := x.click(ctx, StepTrigger, trigger); err != nil {
			return err
		}
		return x.settle(ctx)
	}
}

// menuAction opens a menu and clicks one of its items. The menu must be
// visible before the item is looked up, otherwise the click races the open
// animation.
func menuAction(trigger, item browser.Candidates) choreography {
	return func(ctx context.Context, x *run) error {
		if err := x.openMenu(ctx, trigger, item); err != nil {
			return err
		}
		return x.settle(ctx)
	}
}

func unfollow(ctx context.Context, x *run) error {
	if err := x.click(ctx, StepTrigger, UnfollowButton); err != nil {
		return err
	}
	// Without the confirmation the relationship is unchanged.
	if err := x.click(ctx, StepConfirm, ConfirmSheet); err != nil {
		return err
	}
	x.result.Confirm = true
	return x.settle(ctx)
}

func deletePost(ctx context.Context, x *run) error {
	if err := x.openMenu(ctx, Caret, DeleteItem); err != nil {
		return err
	}
	if err := x.click(ctx, StepConfirm, ConfirmSheet); err != nil {
		return err
	}
	x.result.Confirm = true
	return x.settle(ctx)
}

func publish(ctx context.Context, x *run) error {
	if err := x.click(ctx, StepTrigger, ComposeButton); err != nil {
		return err
	}
	return x.compose(ctx)
}

// reply skips the trigger when the inline reply box is already open.
func reply(ctx context.Context, x *run) error {
	if _, open, _ := browser.AnyVisible(ctx, x.page, Textbox); open {
		x.log.Debug("reply box already open")
	} else if err := x.click(ctx, StepTrigger, ReplyButton); err != nil {
		return err
	}
	return x.compose(ctx)
}

func quote(ctx context.Context, x *run) error {
	if err := x.openMenu(ctx, RepostButton, QuoteItem); err != nil {
		return err
	}
	return x.compose(ctx)
}

func (x *run) step(name string) {
	x.log.Debug("step", zap.String("step", name))
}

func (x *run) click(ctx context.Context, step string, candidates browser.Candidates) error {
	x.step(step)
	_, err := x.human.Click(ctx, x.page, candidates, x.timeouts.Selector)
	return types.AtStep(step, err)
}

func (x *run) openMenu(ctx context.Context, trigger, item browser.Candidates) error {
	if err := x.click(ctx, StepTrigger, trigger); err != nil {
		return err
	}
	x.step(StepMenu)
	if _, err := browser.WaitForAnyVisible(ctx, x.page, Menu, x.timeouts.Selector); err != nil {
		return types.AtStep(StepMenu, err)
	}
	return x.click(ctx, StepMenuItem, item)
}

// navigate loads the target and waits until either the expected page or the
// login form is rendered. The latter means the stored session is dead.
func (x *run) navigate(ctx context.Context) error {
	x.step(StepNavigate)
	if err := x.page.Navigate(ctx, x.target); err != nil {
		return types.AtStep(StepNavigate, err)
	}

	ready := PostReady
	switch {
	case x.req.Kind == types.Publish:
		ready = HomeReady
	case x.req.Kind.TargetsProfile():
		ready = ProfileReady
	case x.req.Kind == types.UpdateProfile:
		ready = ProfileEditReady
	}

	el, err := browser.WaitForAnyVisible(ctx, x.page, LoginForm.Then(ready...), x.timeouts.Navigation)
	if loc, locErr := x.page.Location(ctx); locErr == nil && onLoginPage(loc) {
		return types.AtStep(StepNavigate, fmt.Errorf("%w: redirected to %s", types.ErrSessionExpired, loc))
	}
	if err != nil {
		return types.AtStep(StepNavigate, err)
	}
	if contains(LoginForm, el.Spec) {
		return types.AtStep(StepNavigate, fmt.Errorf("%w: login form shown on %s", types.ErrSessionExpired, x.target))
	}
	return types.AtStep(StepNavigate, x.human.Wander(ctx, x.page))
}

// compose types the text, attaches media, passes the publish gate and
// submits.
func (x *run) compose(ctx context.Context) error {
	x.step(StepCompose)
	box, err := browser.ClickFirstVisible(ctx, x.page, Textbox, x.timeouts.Selector)
	if err != nil {
		return types.AtStep(StepCompose, err)
	}
	if err := x.page.Focus(ctx, box); err != nil {
		return types.AtStep(StepCompose, err)
	}
	if err := x.human.Type(ctx, x.page, x.req.Text); err != nil {
		return types.AtStep(StepCompose, err)
	}

	if path := x.req.Media(); path != "" {
		if err := x.attach(ctx, path); err != nil {
			return err
		}
	}

	x.step(StepGate)
	button, err := browser.WaitUntilEnabled(ctx, x.page, Submit, x.timeouts.Gate)
	if err != nil {
		return types.AtStep(StepGate, err)
	}

	x.step(StepSubmit)
	if err := x.human.Pause(ctx); err != nil {
		return types.AtStep(StepSubmit, err)
	}
	if _, err := browser.ClickFirstVisible(ctx, x.page, browser.Candidates{button.Spec}, x.timeouts.Selector); err != nil {
		return types.AtStep(StepSubmit, err)
	}

	if err := x.settle(ctx); err != nil {
		return err
	}
	return types.AtStep(StepSettle, x.complete(ctx))
}

// attach uploads path and waits for the composer to settle. No submit is
// attempted when the media never settles.
func (x *run) attach(ctx context.Context, path string) error {
	x.step(StepAttach)
	input, err := browser.FindAttached(ctx, x.page, media.FileInput, x.timeouts.Selector)
	if err != nil {
		return types.AtStep(StepAttach, err)
	}
	if err := x.page.SetFiles(ctx, input, []string{path}); err != nil {
		return types.AtStep(StepAttach, err)
	}

	x.step(StepMedia)
	opts := media.OptionsFor(path, x.timeouts)
	if x.MediaInterval > 0 {
		opts.Interval = x.MediaInterval
	}
	tracker, err := media.WaitSettled(ctx, x.page, opts)
	x.result.Media = tracker.Names()
	x.log.Info("media readiness", zap.Strings("states", x.result.Media), zap.Error(err))
	return types.AtStep(StepMedia, err)
}

func (x *run) settle(ctx context.Context) error {
	x.step(StepSettle)
	d := x.req.Settle
	if d <= 0 {
		d = x.timeouts.Settle
	}
	return types.AtStep(StepSettle, humanize.Sleep(ctx, d))
}

// complete waits for the composer to close or a toast to appear. A missing
// signal is only logged: X does not always render one before we stop
// looking. The posted URL is taken from the toast link when there is one.
func (x *run) complete(ctx context.Context) error {
	err := browser.PollUntil(ctx, browser.DefaultInterval, x.timeouts.Completion, func(ctx context.Context) (bool, error) {
		if link, ok, _ := browser.AnyVisible(ctx, x.page, ToastLink); ok {
			if href, err := x.page.Attribute(ctx, link, "href"); err == nil {
				x.result.PostURL = absoluteURL(href)
			}
			return true, nil
		}
		if _, ok, _ := browser.AnyVisible(ctx, x.page, Toast); ok {
			return true, nil
		}
		_, open, err := browser.AnyVisible(ctx, x.page, ComposerDialog)
		return err == nil && !open, nil
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	x.result.Confirm = err == nil
	if err != nil {
		x.log.Warn("no completion signal after submit", zap.Error(err))
	}
	return nil
}

func onLoginPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "/login") || strings.Contains(path, "/i/flow/login")
}

func contains(c browser.Candidates, spec browser.SelectorSpec) bool {
	for _, s := range c {
		if s.String() == spec.String() {
			return true
		}
	}
	return false
}
