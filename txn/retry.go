package txn

import (
	"strings"
	"time"
)

// retryableSubstrings are the error substrings spec §4.3 names as
// transient, grounded on iperfex-team-burrowctl/server/transactions.go's
// error-string matching approach to classifying retryable failures.
var retryableSubstrings = []string{
	"DEADLOCK",
	"TIMEOUT",
	"CONNECTION_LOST",
	"TEMPORARY_FAILURE",
	"LOCK_TIMEOUT",
}

// isRetryable reports whether err's message names a transient condition.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RetryPolicy is a linear-backoff retry policy: delay grows by BaseDelay on
// every attempt, capped at MaxAttempts tries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DelayFor returns the backoff delay before attempt number n (1-indexed).
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// Run executes fn, retrying on retryable errors per the policy. It returns
// the last error seen if every attempt fails.
func (p RetryPolicy) Run(fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if attempt < p.MaxAttempts {
			time.Sleep(p.DelayFor(attempt))
		}
	}
	return lastErr
}
