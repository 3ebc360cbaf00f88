package pocodynamo

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/aws/smithy-go"
)

// BackoffFunc returns the duration to wait before retry attempt n.
// Grounded on the teacher's ddbsdk.BackoffFunc.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns a capped exponential backoff with full
// jitter: rand(0, min(cap, base*multiplier^attempt)). Lifted verbatim
// from the teacher's ddb_batcher.go, which cites the same AWS
// architecture blog post this formula comes from.
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		if backoff <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// DefaultBackoff is ExponentialBackoff with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

var defaultRetryableCodes = []string{
	"ThrottlingException",
	"ProvisionedThroughputExceededException",
	"LimitExceededException",
	"ResourceInUseException",
}

func isRetryableCode(code string, retryable []string) bool {
	for _, c := range retryable {
		if c == code {
			return true
		}
	}
	return false
}

// classify turns a raw SDK error into one of the engine's typed error
// kinds (spec §7), inspecting the smithy API error code the AWS SDK
// attaches to every service error.
func classify(err error, table string, retryableCodes []string) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return &PermanentStoreError{Err: err}
	}
	code := apiErr.ErrorCode()
	if code == "ResourceNotFoundException" {
		return &NotFoundError{Table: table, Err: err}
	}
	if isRetryableCode(code, retryableCodes) {
		return &TransientStoreError{Code: code, Err: err}
	}
	return &PermanentStoreError{Err: err}
}

// exec invokes action, retrying on a TransientStoreError with exponential
// backoff (attempt-indexed) until cfg.MaxRetryOnExceptionTimeout elapses.
// Errors in exemptExceptions and NotFoundError are always rethrown
// immediately, matching spec §4.4's exec(action, exemptExceptions).
func (c *Client) exec(ctx context.Context, table string, exempt func(error) bool, action func() error) error {
	deadline := time.Now().Add(c.cfg.MaxRetryOnExceptionTimeout)
	attempt := 0
	for {
		err := action()
		if err == nil {
			return nil
		}
		classified := classify(err, table, c.cfg.RetryableErrorCodes)

		var notFound *NotFoundError
		if errors.As(classified, &notFound) {
			return classified
		}
		if exempt != nil && exempt(classified) {
			return classified
		}

		var transient *TransientStoreError
		if !errors.As(classified, &transient) {
			return classified
		}

		if time.Now().After(deadline) {
			return &TimeoutError{Msg: "maxRetryOnExceptionTimeout exceeded", Err: classified}
		}

		wait := c.cfg.Backoff(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
