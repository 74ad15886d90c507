package remote

import (
	"context"
	"slices"
	"time"
)

// RetryPolicy bounds automatic retries of failed requests.
type RetryPolicy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	StatusCodes []int
}

// DefaultRetryPolicy retries up to 3 times with 1s, 2s and 4s waits.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:  3,
	BaseDelay:   time.Second,
	StatusCodes: []int{408, 429, 500, 502, 503, 504},
}

// Delay returns the wait before retry n (0-based): BaseDelay * 2^n.
func (p RetryPolicy) Delay(n int) time.Duration {
	return p.BaseDelay << n
}

// Retryable reports whether a failure may be retried. Timeouts are retried;
// other failures without a status are not.
func (p RetryPolicy) Retryable(err *QueryError) bool {
	if err == nil {
		return false
	}
	if err.Timeout {
		return true
	}
	if err.Status == 0 {
		return false
	}
	return slices.Contains(p.StatusCodes, err.Status)
}

// Kind classifies err under this policy.
func (p RetryPolicy) Kind(err error) Kind {
	if qe, ok := AsQueryError(err); ok && p.Retryable(qe) {
		return Transient
	}
	return Permanent
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
