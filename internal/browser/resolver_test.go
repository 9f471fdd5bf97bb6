package browser_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/browser/browsertest"
	"github.com/ibeckermayer/xpilot/internal/types"
)

var candidates = browser.CSS(`[data-testid="first"]`, `[data-testid="second"]`, `[data-testid="third"]`)

func TestFindVisibleReturnsFirstVisibleInOrder(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{Attached: true})
	page.Set(`[data-testid="second"]`, &browsertest.Element{Attached: true})
	page.Show(`[data-testid="third"]`)

	el, err := browser.FindVisible(context.Background(), page, candidates, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="third"]`, el.Handle)
	assert.Equal(t, 1, page.Probes(`[data-testid="first"]`), "earlier candidates are still probed first")
}

func TestFindVisibleIgnoresAttachedButHidden(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{Attached: true})

	_, err := browser.FindVisible(context.Background(), page, candidates, 600*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrTimeout)

	el, err := browser.FindAttached(context.Background(), page, candidates, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="first"]`, el.Handle)
}

func TestFindVisibleWaitsForLateElement(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="second"]`, &browsertest.Element{Seq: []bool{false, false, true}})

	el, err := browser.FindVisible(context.Background(), page, candidates, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="second"]`, el.Handle)
	assert.Equal(t, 3, page.Probes(`[data-testid="second"]`))
}

func TestFindVisibleNameFallback(t *testing.T) {
	page := browsertest.New()
	page.Show("name:التالي")

	list := browser.CSS(`[data-testid="next"]`).Then(browser.Role("button", "التالي", "Next"))
	el, err := browser.FindVisible(context.Background(), page, list, time.Second)
	require.NoError(t, err)
	assert.Equal(t, browser.StrategyAccessibleName, el.Spec.Strategy)
}

func TestFindVisibleHonorsCancellation(t *testing.T) {
	page := browsertest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := browser.FindVisible(ctx, page, candidates, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnyVisibleIsSinglePass(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{Seq: []bool{false, true}})

	_, ok, err := browser.AnyVisible(context.Background(), page, candidates)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, page.Probes(`[data-testid="first"]`))
}

func TestClickFirstVisibleDirect(t *testing.T) {
	page := browsertest.New()
	page.Show(`[data-testid="second"]`)

	_, err := browser.ClickFirstVisible(context.Background(), page, candidates, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{`click:[data-testid="second"]`}, page.Log())
}

func TestClickFirstVisibleForcedRetryOnce(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{Visible: true, ClickErr: errors.New("intercepted")})

	_, err := browser.ClickFirstVisible(context.Background(), page, candidates, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{`click-failed:[data-testid="first"]`, `force:[data-testid="first"]`}, page.Log())
}

func TestClickFirstVisibleNotInteractable(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{
		Visible:  true,
		ClickErr: errors.New("intercepted"),
		ForceErr: errors.New("detached"),
	})

	_, err := browser.ClickFirstVisible(context.Background(), page, candidates, time.Second)
	assert.ErrorIs(t, err, types.ErrElementNotInteractable)
	assert.Len(t, page.Log(), 2, "exactly one forced retry")
}

func TestWaitUntilEnabledBlocksOnAriaDisabled(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{Visible: true, AriaDisabled: true})

	_, err := browser.WaitUntilEnabled(context.Background(), page, candidates, 700*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrNotReadyTimeout)
	assert.Contains(t, err.Error(), "aria-disabled=true")
	assert.Empty(t, page.Log(), "no click while aria-disabled")
}

func TestWaitUntilEnabledFlips(t *testing.T) {
	page := browsertest.New()
	page.Set(`[data-testid="first"]`, &browsertest.Element{Visible: true, Disabled: true, AriaDisabled: true, EnableAfter: 2})

	el, err := browser.WaitUntilEnabled(context.Background(), page, candidates, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="first"]`, el.Handle)
}

func TestPollUntilReportsLastError(t *testing.T) {
	boom := errors.New("execution context destroyed")
	err := browser.PollUntil(context.Background(), 50*time.Millisecond, 200*time.Millisecond,
		func(context.Context) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Contains(t, err.Error(), boom.Error())
}

func TestCapturerOverwritesPerKind(t *testing.T) {
	dir := t.TempDir()
	page := browsertest.New()
	page.SetBody("first")
	capturer := browser.NewCapturer(dir, zap.NewNop())

	_, err := capturer.Capture(context.Background(), page, "publish")
	require.NoError(t, err)

	page.SetBody("second")
	bundle, err := capturer.Capture(context.Background(), page, "publish")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "publish.png"), bundle.Screenshot)

	html, err := os.ReadFile(bundle.DOM)
	require.NoError(t, err)
	assert.Contains(t, string(html), "second")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSelectorSpecString(t *testing.T) {
	assert.Equal(t, `css{[data-testid="like"]}`, browser.Structural(`[data-testid="like"]`).String())
	assert.Equal(t, `name{[role="menuitem"]}[Repost|إعادة النشر]`,
		browser.AccessibleName(`[role="menuitem"]`, "Repost", "إعادة النشر").String())
}
