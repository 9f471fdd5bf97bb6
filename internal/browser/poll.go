package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// DefaultInterval is the gap between two probes of the same wait.
const DefaultInterval = 250 * time.Millisecond

// Condition is evaluated on every poll. An error does not stop polling; the
// last one is reported if the deadline passes.
type Condition func(ctx context.Context) (bool, error)

// PollUntil evaluates cond immediately and then every interval until it
// reports true, the timeout elapses (types.ErrTimeout) or ctx is done.
func PollUntil(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		done, err := cond(ctx)
		if err == nil && done {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if lastErr != nil {
				return fmt.Errorf("%w after %s (last error: %v)", types.ErrTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", types.ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}
