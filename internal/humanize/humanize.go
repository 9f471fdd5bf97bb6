// Package humanize adds bounded random jitter to pointer, keyboard and click
// interactions.
package humanize

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
)

// Hesitation bounds for the occasional longer pause while typing.
const (
	hesitateMin = 150 * time.Millisecond
	hesitateMax = 500 * time.Millisecond
)

// Humanizer is safe for concurrent use.
type Humanizer struct {
	cfg config.HumanizeConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a humanizer seeded from the clock.
func New(cfg config.HumanizeConfig) *Humanizer {
	return NewSeeded(cfg, uint64(time.Now().UnixNano()))
}

// NewSeeded creates a humanizer with a deterministic random source.
func NewSeeded(cfg config.HumanizeConfig, seed uint64) *Humanizer {
	return &Humanizer{cfg: cfg, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Disabled returns a humanizer that never waits and types in one burst.
func Disabled() *Humanizer {
	return NewSeeded(config.HumanizeConfig{}, 1)
}

// Enabled reports whether jitter is applied.
func (h *Humanizer) Enabled() bool { return h.cfg.Enabled }

func (h *Humanizer) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + time.Duration(h.rng.Int64N(int64(hi-lo)+1))
}

func (h *Humanizer) chance(p float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < p
}

// KeystrokeDelay returns the gap before the next key, occasionally a longer
// hesitation.
func (h *Humanizer) KeystrokeDelay() time.Duration {
	if h.chance(h.cfg.HesitateRatio) {
		return h.between(hesitateMin, hesitateMax)
	}
	return h.between(h.cfg.KeystrokeMin, h.cfg.KeystrokeMax)
}

// PauseDuration returns a random pause around clicks and between steps.
func (h *Humanizer) PauseDuration() time.Duration {
	return h.between(h.cfg.PauseMin, h.cfg.PauseMax)
}

// Pause sleeps for PauseDuration.
func (h *Humanizer) Pause(ctx context.Context) error {
	if !h.cfg.Enabled {
		return ctx.Err()
	}
	return Sleep(ctx, h.PauseDuration())
}

// Type sends text to the focused element one rune at a time.
func (h *Humanizer) Type(ctx context.Context, page browser.Page, text string) error {
	if !h.cfg.Enabled {
		return page.Type(ctx, text)
	}
	for _, r := range text {
		if err := page.Type(ctx, string(r)); err != nil {
			return err
		}
		if err := Sleep(ctx, h.KeystrokeDelay()); err != nil {
			return err
		}
	}
	return nil
}

// Wander moves the pointer through a few random points of the viewport and
// sometimes glances down the page and back.
func (h *Humanizer) Wander(ctx context.Context, page browser.Page) error {
	if !h.cfg.Enabled {
		return nil
	}
	width, height, err := page.Viewport(ctx)
	if err != nil || width <= 0 || height <= 0 {
		return err
	}

	h.mu.Lock()
	steps := 2 + h.rng.IntN(3)
	points := make([][2]float64, steps)
	for i := range points {
		points[i] = [2]float64{h.rng.Float64() * width, h.rng.Float64() * height}
	}
	glance := 0.0
	if h.rng.Float64() < 0.5 {
		glance = 80 + h.rng.Float64()*160
	}
	h.mu.Unlock()

	for _, p := range points {
		if err := page.MouseMove(ctx, p[0], p[1]); err != nil {
			return err
		}
		if err := Sleep(ctx, h.between(40*time.Millisecond, 160*time.Millisecond)); err != nil {
			return err
		}
	}
	if glance == 0 {
		return nil
	}

	// Scroll back so the choreography sees the page as loaded.
	if err := page.Scroll(ctx, glance); err != nil {
		return err
	}
	if err := Sleep(ctx, h.PauseDuration()); err != nil {
		return err
	}
	return page.Scroll(ctx, -glance)
}

// Click pauses, clicks the first visible candidate and pauses again.
func (h *Humanizer) Click(ctx context.Context, page browser.Page, candidates browser.Candidates, timeout time.Duration) (browser.Element, error) {
	el, err := browser.FindVisible(ctx, page, candidates, timeout)
	if err != nil {
		return browser.Element{}, err
	}
	if err := h.Pause(ctx); err != nil {
		return el, err
	}
	el, err = browser.ClickFirstVisible(ctx, page, browser.Candidates{el.Spec}, timeout)
	if err != nil {
		return el, err
	}
	return el, h.Pause(ctx)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
