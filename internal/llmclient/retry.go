package llmclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/gasable/hub/internal/backoff"
)

// errRetriesExhausted is returned once all attempts of retryWithBackoff fail.
var errRetriesExhausted = errors.New("llmclient: retries exhausted")

// retryWithBackoff runs op with jittered exponential backoff between
// attempts, exiting early when op's error is not isRetryable. Grounded on
// the same linear-backoff shape the provider base type used, rebuilt on top
// of the shared backoff package.
func retryWithBackoff[T any](ctx context.Context, maxAttempts int, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	policy := backoff.DefaultPolicy()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := op()
		if err == nil {
			return value, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
		if attempt >= maxAttempts {
			break
		}
		if err := backoff.SleepWithBackoff(ctx, policy, attempt); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %v", errRetriesExhausted, lastErr)
}
