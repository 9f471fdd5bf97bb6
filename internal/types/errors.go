package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSessionData     = errors.New("invalid session data")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExpired         = errors.New("session expired, log in again")
	ErrElementNotInteractable = errors.New("element not interactable")
	ErrNotReadyTimeout        = errors.New("control never became enabled")
	ErrMediaTimeout           = errors.New("media never settled")
	ErrLoginFailed            = errors.New("login failed")
	ErrChallengeRequired      = errors.New("extra verification required")
	ErrRateLimited            = errors.New("rate limited by platform")
	ErrInvalidRequest         = errors.New("invalid request")
	// ErrTimeout is returned when no candidate selector resolved in time.
	ErrTimeout = errors.New("timed out waiting for element")
)

// ActionError carries the choreography context of a failure. The wrapped error
// keeps its kind, so errors.Is(err, ErrMediaTimeout) still matches.
type ActionError struct {
	Label  string
	Kind   Kind
	Target string
	Step   string
	Err    error
	// Diagnostics is set when a screenshot or DOM dump was captured.
	Diagnostics *Bundle
}

func (e *ActionError) Error() string {
	target := e.Target
	if target == "" {
		target = "-"
	}
	return fmt.Sprintf("%s [%s] target=%s step=%s: %v", e.Kind, e.Label, target, e.Step, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// StepError marks the choreography step an error escaped from.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// AtStep wraps err with a step name. A nil err stays nil.
func AtStep(step string, err error) error {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) {
		return err
	}
	return &StepError{Step: step, Err: err}
}

// StepOf returns the innermost step name recorded on err.
func StepOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// Retryable reports whether retrying without a human in the loop could help.
// Platform blocks and duplicate-creating actions are never retryable.
func Retryable(err error, kind Kind) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrChallengeRequired), errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrInvalidSessionData), errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrInvalidRequest):
		return false
	}
	return !kind.Composes()
}
