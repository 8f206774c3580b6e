package upstream

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds every outbound call: a deadline per attempt and a small number of
// retries with exponential backoff for transient failures.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultBaseDelay is the first backoff interval when a Policy leaves it unset.
const DefaultBaseDelay = 250 * time.Millisecond

// Do runs fn until it succeeds, returns an error not marked with Retryable, or the
// retry budget is spent. Each attempt gets its own deadline when Timeout is set.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	base := policy.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	retries := policy.MaxRetries
	if retries < 0 {
		retries = 0
	}

	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

// Retryable marks err as transient so Do tries again.
func Retryable(err error) error {
	return retry.RetryableError(err)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying.
func IsRetryableStatus(code int) bool {
	return code >= 500
}
