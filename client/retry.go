package client

import (
	"context"
	"log/slog"

	"github.com/lestrrat-go/backoff/v2"
)

// withRetry runs fn once, or, when retries are enabled, until it stops
// failing with a retryable error or maxRetries extra attempts are spent.
func (c *Client) withRetry(ctx context.Context, log *slog.Logger, fn func(context.Context) (int, error)) (int, error) {
	if !c.retry || c.maxRetries == 0 {
		return fn(ctx)
	}

	policy := backoff.Exponential(
		backoff.WithMinInterval(c.retryWaitMin),
		backoff.WithMaxInterval(c.retryWaitMax),
		backoff.WithJitterFactor(0.05),
		backoff.WithMaxRetries(c.maxRetries+1),
	)

	// Cancelling bctx stops the controller's timer goroutine.
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b := policy.Start(bctx)

	var (
		status int
		err    error
	)
	for attempt := 0; attempt <= c.maxRetries && backoff.Continue(b); attempt++ {
		if attempt > 0 {
			log.Warn("retrying after network error", "attempt", attempt, "maxRetries", c.maxRetries, "error", err)
		}

		status, err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return status, err
		}
	}

	if err == nil {
		// The context ended before the first attempt.
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		err = &NetworkError{Message: cause.Error(), Err: cause}
	}

	return status, err
}
