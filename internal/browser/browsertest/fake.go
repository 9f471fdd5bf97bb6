// Package browsertest provides a scripted in-memory browser.Page.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/xpilot/internal/browser"
)

// Key identifies the element a spec resolves to in a Page: the query for
// structural specs, "name:" plus the first alternative otherwise.
func Key(spec browser.SelectorSpec) string {
	if spec.Strategy == browser.StrategyAccessibleName && len(spec.Names) > 0 {
		return "name:" + spec.Names[0]
	}
	return spec.Query
}

// Element is the scripted state of one node.
type Element struct {
	Visible bool
	// Attached marks a node present in the DOM but not rendered.
	Attached bool
	// Seq overrides Visible per probe; the last value sticks.
	Seq []bool
	// Disabled flags; EnableAfter clears both after that many Enabled reads.
	Disabled     bool
	AriaDisabled bool
	EnableAfter  int

	ClickErr error
	ForceErr error
	OnClick  func(p *Page)
	// OnFiles runs after SetFiles on this element.
	OnFiles func(p *Page)
	Attrs   map[string]string

	probes int
	reads  int
}

// Page is a browser.Page driven entirely by its scripted elements. Every
// interaction is appended to Events.
type Page struct {
	mu       sync.Mutex
	elements map[string]*Element

	URL        string
	Body       string
	Jar        []*network.Cookie
	OnNavigate func(p *Page, url string)
	Events     []string
	Width      float64
	Height     float64
}

var _ browser.Page = (*Page)(nil)

// New creates an empty page at about:blank.
func New() *Page {
	return &Page{elements: make(map[string]*Element), URL: "about:blank", Width: 1280, Height: 800}
}

// Set registers or replaces the element reachable under key.
func (p *Page) Set(key string, el *Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[key] = el
	return p
}

// Show makes a visible element available under key.
func (p *Page) Show(key string) *Element {
	el := &Element{Visible: true}
	p.Set(key, el)
	return el
}

// Hide removes the element under key.
func (p *Page) Hide(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, key)
}

// Get returns the element under key.
func (p *Page) Get(key string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[key]
}

// Probes returns how often the element under key was probed.
func (p *Page) Probes(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		return el.probes
	}
	return 0
}

// SetURL changes the current location.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.URL = url
}

// SetBody changes the visible body text.
func (p *Page) SetBody(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Body = text
}

// SetCookies replaces the cookie jar.
func (p *Page) SetCookies(jar []*network.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Jar = jar
}

// Log returns a copy of the recorded events.
func (p *Page) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Events...)
}

// Did reports whether an event with the given prefix was recorded.
func (p *Page) Did(prefix string) bool {
	for _, e := range p.Log() {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func (p *Page) record(format string, args ...any) {
	p.Events = append(p.Events, fmt.Sprintf(format, args...))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.URL = url
	p.record("navigate:%s", url)
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL, ctx.Err()
}

func (p *Page) Probe(ctx context.Context, spec browser.SelectorSpec) (browser.Element, bool, error) {
	return p.probe(ctx, spec, false)
}

func (p *Page) ProbeAttached(ctx context.Context, spec browser.SelectorSpec) (browser.Element, bool, error) {
	return p.probe(ctx, spec, true)
}

func (p *Page) probe(ctx context.Context, spec browser.SelectorSpec, attached bool) (browser.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return browser.Element{}, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := Key(spec)
	el, ok := p.elements[key]
	if !ok {
		return browser.Element{}, false, nil
	}
	visible := el.Visible
	if len(el.Seq) > 0 {
		i := el.probes
		if i >= len(el.Seq) {
			i = len(el.Seq) - 1
		}
		visible = el.Seq[i]
	}
	el.probes++

	if visible || (attached && el.Attached) {
		return browser.Element{Handle: key, Spec: spec}, true, nil
	}
	return browser.Element{}, false, nil
}

func (p *Page) lookup(el browser.Element) (*Element, error) {
	e, ok := p.elements[el.Handle]
	if !ok {
		return nil, fmt.Errorf("element %s detached", el.Handle)
	}
	return e, nil
}

func (p *Page) Click(ctx context.Context, el browser.Element) error {
	return p.click(ctx, el, false)
}

func (p *Page) ForceClick(ctx context.Context, el browser.Element) error {
	return p.click(ctx, el, true)
}

func (p *Page) click(ctx context.Context, el browser.Element, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	e, err := p.lookup(el)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	kind := "click"
	failure := e.ClickErr
	if force {
		kind, failure = "force", e.ForceErr
	}
	if failure != nil {
		p.record("%s-failed:%s", kind, el.Handle)
		p.mu.Unlock()
		return failure
	}
	p.record("%s:%s", kind, el.Handle)
	hook := e.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Focus(ctx context.Context, el browser.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.lookup(el); err != nil {
		return err
	}
	p.record("focus:%s", el.Handle)
	return ctx.Err()
}

func (p *Page) Type(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("type:%s", text)
	return ctx.Err()
}

func (p *Page) Clear(ctx context.Context, el browser.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.lookup(el); err != nil {
		return err
	}
	p.record("clear:%s", el.Handle)
	return ctx.Err()
}

// Typed joins everything sent through Type.
func (p *Page) Typed() string {
	var b strings.Builder
	for _, e := range p.Log() {
		if s, ok := strings.CutPrefix(e, "type:"); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

func (p *Page) SetFiles(ctx context.Context, el browser.Element, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	e, err := p.lookup(el)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.record("files:%s:%s", el.Handle, strings.Join(paths, ","))
	hook := e.OnFiles
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Enabled(ctx context.Context, el browser.Element) (browser.EnabledState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(el)
	if err != nil {
		return browser.EnabledState{}, err
	}
	e.reads++
	if e.EnableAfter > 0 && e.reads > e.EnableAfter {
		e.Disabled, e.AriaDisabled = false, false
	}
	return browser.EnabledState{Disabled: e.Disabled, AriaDisabled: e.AriaDisabled}, ctx.Err()
}

func (p *Page) Attribute(ctx context.Context, el browser.Element, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(el)
	if err != nil {
		return "", err
	}
	return e.Attrs[name], ctx.Err()
}

func (p *Page) Text(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Body, ctx.Err()
}

func (p *Page) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*network.Cookie(nil), p.Jar...), ctx.Err()
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("screenshot")
	return []byte("\x89PNG fake"), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("html")
	return "<html><body>" + p.Body + "</body></html>", nil
}

func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("mouse:%.0f,%.0f", x, y)
	return ctx.Err()
}

func (p *Page) Scroll(ctx context.Context, dy float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scroll:%.0f", dy)
	return ctx.Err()
}

func (p *Page) Viewport(ctx context.Context) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Width, p.Height, ctx.Err()
}

// Tab wraps a Page as a browser.Tab.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	page   *Page
	closed bool
}

// NewTab creates a tab whose context derives from ctx.
func NewTab(ctx context.Context, page *Page) *Tab {
	ctx, cancel := context.WithCancel(ctx)
	return &Tab{ctx: ctx, cancel: cancel, page: page}
}

func (t *Tab) Context() context.Context { return t.ctx }

func (t *Tab) Page() browser.Page { return t.page }

func (t *Tab) Close() {
	t.closed = true
	t.cancel()
}

// Closed reports whether Close was called.
func (t *Tab) Closed() bool { return t.closed }
