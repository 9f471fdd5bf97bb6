package browser

import (
	"context"

	"github.com/chromedp/cdproto/network"
)

// EnabledState reports the two disabled flags of a control separately.
type EnabledState struct {
	Disabled     bool
	AriaDisabled bool
}

// Enabled is true only when neither flag is set.
func (s EnabledState) Enabled() bool { return !s.Disabled && !s.AriaDisabled }

// Page is the browser surface the engine drives. Every call is a single
// round trip; waiting is done by the callers through PollUntil.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)

	// Probe returns the first element matching spec that is present and
	// visible.
	Probe(ctx context.Context, spec SelectorSpec) (Element, bool, error)
	// ProbeAttached returns the first element matching spec regardless of
	// visibility.
	ProbeAttached(ctx context.Context, spec SelectorSpec) (Element, bool, error)

	Click(ctx context.Context, el Element) error
	// ForceClick dispatches a click without actionability checks.
	ForceClick(ctx context.Context, el Element) error
	Focus(ctx context.Context, el Element) error
	// Type sends text as key events to the focused element.
	Type(ctx context.Context, text string) error
	// Clear selects the value of a text field and deletes it.
	Clear(ctx context.Context, el Element) error
	SetFiles(ctx context.Context, el Element, paths []string) error
	Enabled(ctx context.Context, el Element) (EnabledState, error)
	Attribute(ctx context.Context, el Element, name string) (string, error)
	// Text returns the visible text of the document body.
	Text(ctx context.Context) (string, error)

	Cookies(ctx context.Context) ([]*network.Cookie, error)
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)

	MouseMove(ctx context.Context, x, y float64) error
	// Scroll scrolls the window vertically by dy pixels.
	Scroll(ctx context.Context, dy float64) error
	Viewport(ctx context.Context) (width, height float64, err error)
}

// Tab is one isolated browser context with a single page.
type Tab interface {
	// Context carries the browser binding; page calls must use it or a
	// context derived from it.
	Context() context.Context
	Page() Page
	Close()
}
