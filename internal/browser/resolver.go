package browser

import (
	"context"
	"fmt"
	"time"
)

type probeFunc func(ctx context.Context, spec SelectorSpec) (Element, bool, error)

// sweep tries every candidate once, in order. A failing probe does not hide
// a later candidate that matches.
func sweep(ctx context.Context, probe probeFunc, candidates Candidates) (Element, bool, error) {
	var firstErr error
	for _, spec := range candidates {
		el, ok, err := probe(ctx, spec)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return el, true, nil
		}
	}
	return Element{}, false, firstErr
}

// AnyVisible is a single non-blocking pass over the candidates.
func AnyVisible(ctx context.Context, page Page, candidates Candidates) (Element, bool, error) {
	return sweep(ctx, page.Probe, candidates)
}

// FindVisible polls the candidates in order until one is present and visible.
func FindVisible(ctx context.Context, page Page, candidates Candidates, timeout time.Duration) (Element, error) {
	return find(ctx, page.Probe, candidates, timeout)
}

// FindAttached is FindVisible for nodes that are never rendered, such as
// file inputs.
func FindAttached(ctx context.Context, page Page, candidates Candidates, timeout time.Duration) (Element, error) {
	return find(ctx, page.ProbeAttached, candidates, timeout)
}

func find(ctx context.Context, probe probeFunc, candidates Candidates, timeout time.Duration) (Element, error) {
	var found Element
	err := PollUntil(ctx, DefaultInterval, timeout, func(ctx context.Context) (bool, error) {
		el, ok, err := sweep(ctx, probe, candidates)
		if ok {
			found = el
		}
		return ok, err
	})
	if err != nil {
		return Element{}, fmt.Errorf("waiting for [%s]: %w", candidates, err)
	}
	return found, nil
}
