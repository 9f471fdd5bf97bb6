// Package media tracks an attachment in the X composer from upload to a
// stable, postable state, and sources media files for it.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// State of an attachment as seen from the composer DOM.
type State int

const (
	NotAttached State = iota
	PreviewPending
	Busy
	Settled
)

func (s State) String() string {
	switch s {
	case PreviewPending:
		return "preview-pending"
	case Busy:
		return "busy"
	case Settled:
		return "settled"
	default:
		return "not-attached"
	}
}

// Defaults for the stability window.
const (
	DefaultInterval = 300 * time.Millisecond
	DefaultStable   = 4
)

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true,
	".webm": true, ".m4v": true, ".avi": true,
}

// IsVideo reports whether path names a video file by extension.
func IsVideo(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// Observation is one poll of the composer.
type Observation struct {
	// Preview is true when a thumbnail or the remove control is visible.
	Preview bool
	// Busy is true while any upload or processing indicator is visible.
	Busy bool
}

// Tracker folds observations into a State. Settled is only reached after
// stable consecutive quiet polls with a preview present; any busy poll
// resets the count.
type Tracker struct {
	mu          sync.Mutex
	stable      int
	quiet       int
	state       State
	transitions []State
}

// NewTracker creates a tracker requiring stable quiet polls.
func NewTracker(stable int) *Tracker {
	if stable <= 0 {
		stable = DefaultStable
	}
	return &Tracker{stable: stable, transitions: []State{NotAttached}}
}

// Observe applies one observation and returns the new state.
func (t *Tracker) Observe(o Observation) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := NotAttached
	switch {
	case o.Busy:
		t.quiet = 0
		next = Busy
	case o.Preview:
		t.quiet++
		next = PreviewPending
		if t.quiet >= t.stable {
			next = Settled
		}
	default:
		t.quiet = 0
	}

	if next != t.state {
		// A busy indicator means the attachment exists even when its
		// preview has not rendered yet.
		if t.state == NotAttached && next == Busy {
			t.transitions = append(t.transitions, PreviewPending)
		}
		t.state = next
		t.transitions = append(t.transitions, next)
	}
	return next
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transitions returns every distinct state entered, starting with
// NotAttached.
func (t *Tracker) Transitions() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.transitions...)
}

// Names returns the transitions as strings.
func (t *Tracker) Names() []string {
	states := t.Transitions()
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.String()
	}
	return out
}

// Options bound one readiness wait.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Stable   int
}

// OptionsFor picks the media deadline for path: video uploads get the longer
// one.
func OptionsFor(path string, t config.TimeoutsConfig) Options {
	timeout := t.Media
	if IsVideo(path) {
		timeout = t.VideoMedia
	}
	return Options{Timeout: timeout, Interval: DefaultInterval, Stable: DefaultStable}
}

// Observe takes one reading of the composer. Probe errors count as "not
// seen"; the DOM is re-read on the next poll anyway.
func Observe(ctx context.Context, page browser.Page) Observation {
	var o Observation
	_, o.Preview, _ = browser.AnyVisible(ctx, page, Preview)
	if !o.Preview {
		_, o.Preview, _ = browser.AnyVisible(ctx, page, RemoveControl)
	}
	_, o.Busy, _ = browser.AnyVisible(ctx, page, BusyIndicator)
	return o
}

// WaitSettled polls the composer until the attachment is Settled. The
// tracker is returned in every case so callers can report the transitions.
func WaitSettled(ctx context.Context, page browser.Page, opts Options) (*Tracker, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	tracker := NewTracker(opts.Stable)

	err := browser.PollUntil(ctx, opts.Interval, opts.Timeout, func(ctx context.Context) (bool, error) {
		return tracker.Observe(Observe(ctx, page)) == Settled, nil
	})
	if errors.Is(err, types.ErrTimeout) {
		return tracker, fmt.Errorf("%w: still %s after %s", types.ErrMediaTimeout, tracker.State(), opts.Timeout)
	}
	return tracker, err
}
