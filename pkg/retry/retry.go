// Package retry wraps a single logical call with bounded retries,
// exponential backoff, and error classification. Classification is
// consumed, never derived, here: the boundary that observed the
// failure decides the error type, this package only inspects it.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// Policy bounds the retry behavior of one call. Immutable per call
// context; a request may carry its own override.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Minimum 1.
	MaxAttempts int

	// BackoffFactor scales the exponential delay: attempt n sleeps
	// BackoffFactor * 2^n seconds (n starting at 0), before capping.
	BackoffFactor float64

	// MaxWait caps a single backoff sleep.
	MaxWait time.Duration

	// Budget caps the total time across all attempts and sleeps.
	// The final sleep is clipped to the remaining budget rather than
	// overshooting it. Zero means no overall cap.
	Budget time.Duration

	// RetryableCodes is the set of platform error codes eligible for
	// retry. Nil means the platform default set.
	RetryableCodes map[int]struct{}
}

// DefaultPolicy returns the policy used when the caller configures
// nothing: 3 attempts, 1s initial backoff, 120s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BackoffFactor: 1,
		MaxWait:       120 * time.Second,
	}
}

// normalized fills zero fields with usable values.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffFactor < 0 {
		p.BackoffFactor = 0
	}
	if p.MaxWait <= 0 {
		p.MaxWait = 120 * time.Second
	}
	if p.RetryableCodes == nil {
		p.RetryableCodes = api.DefaultRetryableCodes()
	}
	return p
}

// retryable reports whether err may be retried under the policy.
func (p Policy) retryable(err error) bool {
	apiErr, ok := api.AsAPIError(err)
	if !ok || apiErr.Type != api.ErrorTypeTransient {
		return false
	}
	_, ok = p.RetryableCodes[apiErr.Code]
	return ok
}

// Do runs op up to policy.MaxAttempts times. Between attempts it
// sleeps the policy's exponential backoff and invokes onRetry (used by
// the executor to refresh an expired credential). The error returned
// after exhaustion is the original classified error, not a wrapper.
func Do[T any](ctx context.Context, policy Policy, logger *slog.Logger, op func(context.Context) (T, error), onRetry func(context.Context, *api.APIError) error) (T, error) {
	var zero T
	p := policy.normalized()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(p.BackoffFactor * float64(time.Second))
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.MaxWait
	bo.MaxElapsedTime = 0 // the budget below governs total time
	bo.Reset()

	var deadline time.Time
	if p.Budget > 0 {
		deadline = time.Now().Add(p.Budget)
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !p.retryable(err) || attempt == p.MaxAttempts-1 {
			return zero, err
		}

		delay := bo.NextBackOff()
		if delay > p.MaxWait {
			delay = p.MaxWait
		}
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return zero, api.NewTimeoutError("retry budget exceeded, last error: " + err.Error())
			}
			if delay > remaining {
				delay = remaining
			}
		}

		if logger != nil {
			logger.Debug("retrying after transient error",
				"attempt", attempt+1,
				"delay", delay,
				"error", err.Error(),
			)
		}

		if apiErr, ok := api.AsAPIError(err); ok && onRetry != nil {
			if hookErr := onRetry(ctx, apiErr); hookErr != nil {
				return zero, hookErr
			}
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return api.NewTimeoutError("retry wait: " + ctx.Err().Error())
	}
}
