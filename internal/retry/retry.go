// Package retry retries oracle calls that fail on quota or rate limits.
package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/metrics"
)

const (
	ScopeTask = "task"
	ScopeHunt = "hunt"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy is jittered exponential backoff restricted to quota errors.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Sleep       Sleeper
	// Rand returns a value in [0,1) used for jitter.
	Rand   func() float64
	Logger *zap.Logger
}

// DefaultPolicy allows three attempts with a one-second base and up to one
// second of jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
	}
}

// IsQuotaError reports whether err looks like a quota or rate-limit failure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(strings.ToLower(msg), "quota") || strings.Contains(msg, "429")
}

// QuotaOrLast returns the first quota error in errs, or the last non-nil
// error when none is a quota error. Order of the input does not decide
// whether a quota failure is visible to the caller.
func QuotaOrLast(errs []error) error {
	var last error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if IsQuotaError(err) {
			return err
		}
		last = err
	}
	return last
}

// Backoff is the delay after a failed attempt, without jitter:
// 2^attempt * BaseDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * p.BaseDelay
}

// Jitter is a random delay in [0, MaxJitter).
func (p Policy) Jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	return time.Duration(r() * float64(p.MaxJitter))
}

// Do calls fn until it succeeds, returns a non-quota error, or runs out of
// attempts. The error of the last attempt is returned unchanged.
func Do[T any](ctx context.Context, p Policy, scope string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsQuotaError(err) || attempt >= attempts {
			return zero, err
		}

		delay := p.Backoff(attempt) + p.Jitter()
		logger.Warn("Quota error, backing off",
			zap.String("scope", scope),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		metrics.RecordRetry(scope)
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// SleepContext blocks for d or until ctx is cancelled.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
