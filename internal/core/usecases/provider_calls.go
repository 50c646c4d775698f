package usecases

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/pkg/retry"
)

// newLimiter spaces calls at least delay apart. A zero delay means unthrottled.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// retryNetworkOnce runs op and repeats it a single time after delay when it
// fails with a network error.
func retryNetworkOnce(ctx context.Context, delay time.Duration, op func() error) error {
	err := op()
	if err == nil || !domain.IsNetworkFailure(err) {
		return err
	}
	if serr := retry.Sleep(ctx, delay); serr != nil {
		return serr
	}
	return op()
}
