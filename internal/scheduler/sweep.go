package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/auth"
)

// SweepJobName is the name the session sweep is registered under.
const SweepJobName = "session-sweep"

// Sessions is the part of the session store the sweep reads.
type Sessions interface {
	Labels() ([]string, error)
	Load(label string) (*auth.Session, error)
}

// SessionStatus describes one stored session at sweep time.
type SessionStatus struct {
	Label     string
	HasAuth   bool
	ExpiresAt time.Time
	Valid     bool
	Expiring  bool
	Err       error
}

// Sweeper reports sessions that are unusable or about to expire, so they
// can be refreshed before an action fails on them.
type Sweeper struct {
	sessions   Sessions
	warnWithin time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewSweeper creates a sweeper warning about sessions expiring within
// warnWithin.
func NewSweeper(sessions Sessions, warnWithin time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		sessions:   sessions,
		warnWithin: warnWithin,
		now:        time.Now,
		logger:     logger.Named("sweep"),
	}
}

// Check inspects every stored session.
func (w *Sweeper) Check(ctx context.Context) ([]SessionStatus, error) {
	labels, err := w.sessions.Labels()
	if err != nil {
		return nil, err
	}

	now := w.now()
	statuses := make([]SessionStatus, 0, len(labels))
	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		st := SessionStatus{Label: label}
		sess, err := w.sessions.Load(label)
		if err != nil {
			st.Err = err
			statuses = append(statuses, st)
			continue
		}
		st.HasAuth = sess.HasAuth()
		st.ExpiresAt = sess.ExpiresAt()
		st.Valid = sess.Valid(now)
		st.Expiring = st.Valid && !st.ExpiresAt.IsZero() && st.ExpiresAt.Sub(now) <= w.warnWithin
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Sweep runs Check and logs every session that needs attention. It has the
// Job signature.
func (w *Sweeper) Sweep(ctx context.Context) error {
	statuses, err := w.Check(ctx)
	if err != nil {
		return err
	}

	healthy := 0
	for _, st := range statuses {
		switch {
		case st.Err != nil:
			w.logger.Warn("session unreadable", zap.String("label", st.Label), zap.Error(st.Err))
		case !st.HasAuth:
			w.logger.Warn("session is not signed in", zap.String("label", st.Label))
		case !st.Valid:
			w.logger.Warn("session expired, log in again",
				zap.String("label", st.Label), zap.Time("expired", st.ExpiresAt))
		case st.Expiring:
			w.logger.Warn("session expires soon",
				zap.String("label", st.Label), zap.Time("expires", st.ExpiresAt))
		default:
			healthy++
		}
	}
	w.logger.Info("session sweep done", zap.Int("sessions", len(statuses)), zap.Int("healthy", healthy))
	return nil
}
