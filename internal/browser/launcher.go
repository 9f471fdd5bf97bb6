package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
)

// Launcher opens one isolated Chrome instance per action.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewLauncher creates a launcher.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger.Named("browser")}
}

// Open starts a browser, injects cookies before any navigation and returns
// the tab. Close releases the browser process.
func (l *Launcher) Open(ctx context.Context, headless bool, cookies []*network.CookieParam) (Tab, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(l.cfg, headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	tab := &chromeTab{
		ctx:  browserCtx,
		page: &ChromePage{},
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	// An empty Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		tab.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if err := injectCookies(browserCtx, cookies); err != nil {
		tab.Close()
		return nil, fmt.Errorf("failed to inject cookies: %w", err)
	}

	l.logger.Debug("browser opened", zap.Bool("headless", headless), zap.Int("cookies", len(cookies)))
	return tab, nil
}

// injectCookies sets cookies in the browser context
func injectCookies(ctx context.Context, cookies []*network.CookieParam) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				set := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly)
				if c.SameSite != "" {
					set = set.WithSameSite(c.SameSite)
				}
				if c.Expires != nil {
					set = set.WithExpires(c.Expires)
				}
				if err := set.Do(ctx); err != nil {
					return fmt.Errorf("cookie %s: %w", c.Name, err)
				}
			}
			return nil
		}),
	)
}

type chromeTab struct {
	ctx    context.Context
	page   *ChromePage
	cancel context.CancelFunc
}

func (t *chromeTab) Context() context.Context { return t.ctx }

func (t *chromeTab) Page() Page { return t.page }

func (t *chromeTab) Close() { t.cancel() }
