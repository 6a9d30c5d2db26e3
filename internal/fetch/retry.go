package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Retry policy for provider calls. Only transport-level failures retry;
// semantic errors (missing data, normalization, rate limits the breaker
// should see) surface immediately.
const (
	retryBase     = 1 * time.Second
	retryFactor   = 2
	retryCap      = 30 * time.Second
	retryAttempts = 3
)

func retryable(err error) bool {
	return errors.Is(err, domain.ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}

// doWithRetry runs fn with per-attempt timeouts and exponential backoff,
// transparent to the caller: it returns fn's last result either way.
func doWithRetry[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out   T
		err   error
		delay = retryBase
	)
	for attempt := 1; ; attempt++ {
		cctx, cancel := withTimeout(ctx)
		out, err = fn(cctx)
		cancel()

		if err == nil || !retryable(err) || attempt >= retryAttempts {
			return out, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= retryFactor
		if delay > retryCap {
			delay = retryCap
		}
	}
}
