package ratecontrol

import (
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit is a provider's request budget.
type RateLimit struct {
	RPM int
}

var builtInProviderLimits = map[string]RateLimit{
	"openai":    {RPM: 30},
	"anthropic": {RPM: 20},
	"google":    {RPM: 40},
	"mistral":   {RPM: 50},
	"unknown":   {RPM: 45},
}

// LimitForProvider returns the built-in limit for provider, or the
// "unknown" limit for providers not in the table.
func LimitForProvider(provider string) RateLimit {
	if limit, ok := builtInProviderLimits[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return limit
	}
	return builtInProviderLimits["unknown"]
}

// ResolveProvider returns the configured provider, or the one inferred from
// model when none is configured.
func ResolveProvider(provider, model string) string {
	if p := strings.ToLower(strings.TrimSpace(provider)); p != "" {
		return p
	}
	return ProviderForModel(model)
}

// ProviderForModel infers the provider from a model name.
func ProviderForModel(model string) string {
	ml := strings.ToLower(model)
	switch {
	case ml == "":
		return "unknown"
	case strings.Contains(ml, "gemini"), strings.Contains(ml, "palm"), strings.Contains(ml, "bard"):
		return "google"
	case strings.Contains(ml, "gpt-"), strings.Contains(ml, "davinci"):
		return "openai"
	case strings.Contains(ml, "claude"):
		return "anthropic"
	case strings.Contains(ml, "mistral"), strings.Contains(ml, "mixtral"):
		return "mistral"
	default:
		return "unknown"
	}
}

// LimiterFor returns a limiter pacing calls to provider. rpm > 0 overrides the
// built-in limit, rpm < 0 disables pacing. The burst equals the number of
// web-mode tasks so a hunt's first wave is never delayed.
func LimiterFor(provider string, rpm int) *rate.Limiter {
	if rpm < 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if rpm == 0 {
		rpm = LimitForProvider(provider).RPM
	}
	interval := IntervalFor(RateLimit{RPM: rpm})
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(interval), 3)
}

// IntervalFor is the minimum spacing between requests under limit, capped at
// one minute.
func IntervalFor(limit RateLimit) time.Duration {
	if limit.RPM <= 0 {
		return 0
	}
	ms := math.Min(60000.0/float64(limit.RPM), 60000)
	return time.Duration(math.Ceil(ms)) * time.Millisecond
}
