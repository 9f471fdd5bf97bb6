package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// ClickFirstVisible resolves the first visible candidate and clicks it. A
// failed click is retried exactly once as a forced click.
func ClickFirstVisible(ctx context.Context, page Page, candidates Candidates, timeout time.Duration) (Element, error) {
	el, err := FindVisible(ctx, page, candidates, timeout)
	if err != nil {
		return Element{}, err
	}

	clickErr := page.Click(ctx, el)
	if clickErr == nil {
		return el, nil
	}
	if ctx.Err() != nil {
		return el, ctx.Err()
	}
	if forceErr := page.ForceClick(ctx, el); forceErr != nil {
		return el, fmt.Errorf("%w: %s: click: %v; forced click: %v",
			types.ErrElementNotInteractable, el.Spec, clickErr, forceErr)
	}
	return el, nil
}

// WaitForAnyVisible blocks until one of the candidates is visible.
func WaitForAnyVisible(ctx context.Context, page Page, candidates Candidates, timeout time.Duration) (Element, error) {
	return FindVisible(ctx, page, candidates, timeout)
}

// WaitUntilEnabled polls until a visible candidate has neither the disabled
// property nor aria-disabled="true".
func WaitUntilEnabled(ctx context.Context, page Page, candidates Candidates, timeout time.Duration) (Element, error) {
	var ready Element
	var last EnabledState
	err := PollUntil(ctx, DefaultInterval, timeout, func(ctx context.Context) (bool, error) {
		el, ok, err := AnyVisible(ctx, page, candidates)
		if !ok {
			return false, err
		}
		state, err := page.Enabled(ctx, el)
		if err != nil {
			return false, err
		}
		last = state
		if !state.Enabled() {
			return false, nil
		}
		ready = el
		return true, nil
	})
	if errors.Is(err, types.ErrTimeout) {
		return Element{}, fmt.Errorf("%w: [%s] within %s (disabled=%t aria-disabled=%t)",
			types.ErrNotReadyTimeout, candidates, timeout, last.Disabled, last.AriaDisabled)
	}
	if err != nil {
		return Element{}, err
	}
	return ready, nil
}
