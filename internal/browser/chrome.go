package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// handleAttr tags nodes returned by Probe so later calls can address them.
const handleAttr = "data-xpilot-handle"

// probeJS finds the first node matching a spec. Exact name matches win over
// substring matches so "Repost" is preferred to "Undo repost".
const probeJS = `(function(spec) {
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) return false;
		const s = window.getComputedStyle(el);
		return s.display !== 'none' && s.visibility !== 'hidden' && s.opacity !== '0';
	};
	let nodes = Array.from(document.querySelectorAll(spec.query));
	if (spec.names && spec.names.length) {
		const wanted = spec.names.map((n) => n.toLowerCase());
		const label = (el) => [el.getAttribute('aria-label') || '', el.innerText || el.textContent || '']
			.map((t) => t.trim().toLowerCase());
		const exact = nodes.filter((el) => label(el).some((t) => wanted.includes(t)));
		const partial = nodes.filter((el) => !exact.includes(el) &&
			label(el).some((t) => wanted.some((w) => t.includes(w))));
		nodes = exact.concat(partial);
	}
	for (const el of nodes) {
		if (!spec.attached && !visible(el)) continue;
		let h = el.getAttribute('%[1]s');
		if (!h) {
			window.__xpilotSeq = (window.__xpilotSeq || 0) + 1;
			h = 'h' + window.__xpilotSeq;
			el.setAttribute('%[1]s', h);
		}
		return h;
	}
	return '';
})(%[2]s)`

const enabledJS = `(function(el) {
	if (!el) return {disabled: true, aria: true};
	return {disabled: !!el.disabled, aria: (el.getAttribute('aria-disabled') || '').toLowerCase() === 'true'};
})(document.querySelector('%s'))`

// ChromePage drives a chromedp tab. Every ctx passed in must derive from the
// tab context returned by the Launcher.
type ChromePage struct {
	ClickTimeout time.Duration
}

var _ Page = (*ChromePage)(nil)

func handleQuery(el Element) string {
	return fmt.Sprintf(`[%s="%s"]`, handleAttr, el.Handle)
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Location(ctx context.Context) (string, error) {
	var url string
	err := chromedp.Run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *ChromePage) Probe(ctx context.Context, spec SelectorSpec) (Element, bool, error) {
	return p.probe(ctx, spec, false)
}

func (p *ChromePage) ProbeAttached(ctx context.Context, spec SelectorSpec) (Element, bool, error) {
	return p.probe(ctx, spec, true)
}

func (p *ChromePage) probe(ctx context.Context, spec SelectorSpec, attached bool) (Element, bool, error) {
	arg, err := json.Marshal(struct {
		Query    string   `json:"query"`
		Names    []string `json:"names"`
		Attached bool     `json:"attached"`
	}{spec.Query, spec.Names, attached})
	if err != nil {
		return Element{}, false, err
	}

	var handle string
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(probeJS, handleAttr, arg), &handle)); err != nil {
		return Element{}, false, fmt.Errorf("probe %s: %w", spec, err)
	}
	if handle == "" {
		return Element{}, false, nil
	}
	return Element{Handle: handle, Spec: spec}, true, nil
}

func (p *ChromePage) Click(ctx context.Context, el Element) error {
	timeout := p.ClickTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Click(handleQuery(el), chromedp.ByQuery))
}

func (p *ChromePage) ForceClick(ctx context.Context, el Element) error {
	var ok bool
	js := fmt.Sprintf(`(function(el) { if (!el) return false; el.click(); return true; })(document.querySelector('%s'))`, handleQuery(el))
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s detached", el.Spec)
	}
	return nil
}

func (p *ChromePage) Focus(ctx context.Context, el Element) error {
	return chromedp.Run(ctx, chromedp.Focus(handleQuery(el), chromedp.ByQuery))
}

func (p *ChromePage) Type(ctx context.Context, text string) error {
	return chromedp.Run(ctx, chromedp.KeyEvent(text))
}

// selectJS focuses a field and selects its whole value.
const selectJS = `(function(el) {
	if (!el) return false;
	el.focus();
	if (typeof el.select === 'function') {
		el.select();
	} else {
		document.execCommand('selectAll');
	}
	return true;
})(document.querySelector('%s'))`

// Clear deletes the selection with a key press. X's React forms ignore a
// value set directly.
func (p *ChromePage) Clear(ctx context.Context, el Element) error {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(selectJS, handleQuery(el)), &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s detached", el.Spec)
	}
	return chromedp.Run(ctx, chromedp.KeyEvent(kb.Backspace))
}

func (p *ChromePage) SetFiles(ctx context.Context, el Element, paths []string) error {
	return chromedp.Run(ctx, chromedp.SetUploadFiles(handleQuery(el), paths, chromedp.ByQuery))
}

func (p *ChromePage) Enabled(ctx context.Context, el Element) (EnabledState, error) {
	var res struct {
		Disabled bool `json:"disabled"`
		Aria     bool `json:"aria"`
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(enabledJS, handleQuery(el)), &res)); err != nil {
		return EnabledState{}, err
	}
	return EnabledState{Disabled: res.Disabled, AriaDisabled: res.Aria}, nil
}

func (p *ChromePage) Attribute(ctx context.Context, el Element, name string) (string, error) {
	var (
		value string
		ok    bool
	)
	err := chromedp.Run(ctx, chromedp.AttributeValue(handleQuery(el), name, &value, &ok, chromedp.ByQuery))
	return value, err
}

func (p *ChromePage) Text(ctx context.Context) (string, error) {
	var text string
	err := chromedp.Run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text))
	return text, err
}

// Cookies reads the whole cookie jar of the browser context.
func (p *ChromePage) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}

func (p *ChromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 keeps the capture in PNG.
	err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *ChromePage) MouseMove(ctx context.Context, x, y float64) error {
	return chromedp.Run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (p *ChromePage) Scroll(ctx context.Context, dy float64) error {
	return chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, int(dy)), nil),
	)
}

func (p *ChromePage) Viewport(ctx context.Context) (float64, float64, error) {
	var size []float64
	if err := chromedp.Run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &size)); err != nil {
		return 0, 0, err
	}
	if len(size) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport %v", size)
	}
	return size[0], size[1], nil
}
