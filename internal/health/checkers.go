package health

import (
	"context"
	"time"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/circuitbreaker"
)

// BreakerChecker reports a circuit breaker's state. An open breaker is
// unhealthy and a half-open one degraded.
type BreakerChecker struct {
	name     string
	breaker  *circuitbreaker.CircuitBreaker
	critical bool
}

// NewOracleChecker watches the oracle breaker. Hunts cannot run while it is
// open, so the check is critical.
func NewOracleChecker(breaker *circuitbreaker.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: "oracle", breaker: breaker, critical: true}
}

func (b *BreakerChecker) Name() string           { return b.name }
func (b *BreakerChecker) IsCritical() bool       { return b.critical }
func (b *BreakerChecker) Timeout() time.Duration { return time.Second }

func (b *BreakerChecker) Check(context.Context) CheckResult {
	if b.breaker == nil {
		return CheckResult{Status: StatusUnknown, Message: "no circuit breaker"}
	}
	switch state := b.breaker.State(); state {
	case circuitbreaker.StateOpen:
		return CheckResult{Status: StatusUnhealthy, Error: "circuit breaker open", Message: b.name + " circuit breaker is open"}
	case circuitbreaker.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: b.name + " circuit breaker is half-open"}
	default:
		return CheckResult{Status: StatusHealthy, Message: b.name + " circuit breaker is closed"}
	}
}

// Pinger is anything with a connectivity check, such as the hunt cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheChecker pings the hunt cache. Hunts still run without the cache, so
// it is not critical.
type CacheChecker struct {
	cache   Pinger
	timeout time.Duration
}

func NewCacheChecker(cache Pinger) *CacheChecker {
	return &CacheChecker{cache: cache, timeout: 5 * time.Second}
}

func (c *CacheChecker) Name() string           { return "cache" }
func (c *CacheChecker) IsCritical() bool       { return false }
func (c *CacheChecker) Timeout() time.Duration { return c.timeout }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if err := c.cache.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "cache ping failed"}
	}
	return CheckResult{Status: StatusHealthy, Message: "cache reachable"}
}
