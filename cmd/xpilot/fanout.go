package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// fanout selects the accounts an action runs for and paces them. Each
// account still gets its own browser; the limit only bounds how many run at
// once.
type fanout struct {
	account  string
	accounts []string
	all      bool
	parallel int
	stagger  time.Duration
}

func (f *fanout) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.account, "account", "a", "default", "account label")
	flags.StringSliceVar(&f.accounts, "accounts", nil, "run for several account labels (comma separated)")
	flags.BoolVar(&f.all, "all", false, "run for every stored session")
	flags.IntVar(&f.parallel, "parallel", 2, "browsers running at once when fanning out")
	flags.DurationVar(&f.stagger, "stagger", 5*time.Second, "minimum delay between starting two accounts")
	cmd.MarkFlagsMutuallyExclusive("accounts", "all")
}

// labels resolves the selected account labels, deduplicated in order.
func (f *fanout) labels(stored func() ([]string, error)) ([]string, error) {
	var raw []string
	switch {
	case f.all:
		all, err := stored()
		if err != nil {
			return nil, err
		}
		raw = all
	case len(f.accounts) > 0:
		raw = f.accounts
	default:
		raw = []string{f.account}
	}

	seen := make(map[string]bool, len(raw))
	labels := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no accounts selected")
	}
	return labels, nil
}

// runAcross calls fn once per label with at most parallel calls in flight
// and starts spaced by stagger. A failing label does not stop the others;
// all failures are joined.
func runAcross(ctx context.Context, labels []string, parallel int, stagger time.Duration, fn func(context.Context, string) error) error {
	if parallel < 1 {
		parallel = 1
	}
	limit := rate.Inf
	if stagger > 0 {
		limit = rate.Every(stagger)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, label := range labels {
		if err := limiter.Wait(ctx); err != nil {
			record(fmt.Errorf("%s: not started: %w", label, err))
			break
		}
		g.Go(func() error {
			if err := fn(ctx, label); err != nil {
				record(err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
