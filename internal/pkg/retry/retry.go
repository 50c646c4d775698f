// Package retry runs fixed-delay, bounded retry loops.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a constant-delay retry policy.
type Policy struct {
	Delay      time.Duration
	MaxRetries int
}

// Do calls op until it succeeds, fails with an error retryable rejects, the retry cap is
// reached or ctx is done. It returns the last error seen, or ctx.Err() on cancellation.
// notify, when non-nil, is called before each wait.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func() error, notify func(err error, wait time.Duration)) error {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	// WithMaxRetries treats 0 as unlimited.
	if p.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.MaxRetries))
	}
	b := backoff.WithContext(policy, ctx)

	return backoff.RetryNotify(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
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
