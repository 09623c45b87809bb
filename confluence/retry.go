package confluence

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy retries an operation while it fails with a retryable error.  The wait before retry
// n (counting from zero) is BackoffFactor * 2^n.
type RetryPolicy struct {
	MaxRetries    int
	BackoffFactor time.Duration

	// ShouldRetry defaults to IsRetryable.
	ShouldRetry func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BackoffFactor: 300 * time.Millisecond,
	}
}

func (p RetryPolicy) Wait(attempt int) time.Duration {
	return p.BackoffFactor * time.Duration(1<<uint(attempt))
}

// Do runs fn up to MaxRetries+1 times.  The error of the final attempt is returned as is.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !shouldRetry(err) {
			return err
		}

		wait := p.Wait(attempt)
		logger.LogAttrs(ctx, slog.LevelWarn, "retrying after failure",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			// the caller gave up; hand back what we had rather than the context error.
			return err
		}
	}
}
