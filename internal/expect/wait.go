package expect

import (
	"context"
	"time"

	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/failure"
)

// Default budgets, matching the usual browser-test defaults.
const (
	DefaultTimeout  = 4 * time.Second
	DefaultInterval = 50 * time.Millisecond
)

// Resolver re-resolves the subject against the current page.
// Errors abort the wait; they are not retried.
type Resolver func(ctx context.Context) (dom.Set, error)

// Options bounds one wait.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Interval > o.Timeout {
		o.Interval = o.Timeout
	}
	return o
}

// Until resolves the subject and evaluates p until p holds or the timeout
// elapses. The first evaluation happens immediately. On timeout the subject
// is resolved one final time; if p still fails, Until returns a
// failure.CodeTimeout error carrying the last observed state.
//
// subject is the diagnostic name of what is being waited on.
func Until(ctx context.Context, subject string, resolve Resolver, p Predicate, opts Options) (dom.Set, error) {
	opts = opts.withDefaults()
	start := time.Now()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	for {
		set, err := resolve(ctx)
		if err != nil {
			return dom.Set{}, err
		}
		if p.Eval(set) {
			return set, nil
		}

		select {
		case <-ctx.Done():
			return set, ctx.Err()
		case <-ticker.C:
		case <-timer.C:
			final, err := resolve(ctx)
			if err != nil {
				return dom.Set{}, err
			}
			if p.Eval(final) {
				return final, nil
			}
			return final, failure.Timeout(subject, p.Name(), time.Since(start), final.Describe())
		}
	}
}
