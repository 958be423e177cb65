package providers

import (
	"context"
	"time"
)

// PollPolicy controls how a wait-until-ready loop probes a provider.
// Interval and Deadline are explicit so callers can tune them per provider
// (cluster creation is minutes, a hosting deployment is seconds).
type PollPolicy struct {
	Interval time.Duration
	Deadline time.Duration
}

// Poll probes the resource immediately and then once per policy interval until
// the probe reports done, the probe fails, the context ends, or the deadline
// elapses. A deadline hit returns a *TimeoutError for the given provider.
func Poll(ctx context.Context, provider string, policy PollPolicy, probe func(ctx context.Context) (bool, error)) error {
	start := time.Now()

	deadlineCtx, cancel := context.WithTimeout(ctx, policy.Deadline)
	defer cancel()

	// timedOut reports whether the poll's own deadline elapsed, as opposed to
	// the caller ending the surrounding context
	timedOut := func() bool {
		return deadlineCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		done, err := probe(deadlineCtx)
		if err != nil {
			// A deadline that fires while a probe request is in flight
			// surfaces as a transport error from inside the probe; report it
			// as the timeout it is
			if timedOut() {
				return &TimeoutError{Provider: provider, Elapsed: time.Since(start)}
			}
			return err
		}
		if done {
			return nil
		}

		select {
		case <-deadlineCtx.Done():
			if timedOut() {
				return &TimeoutError{Provider: provider, Elapsed: time.Since(start)}
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
