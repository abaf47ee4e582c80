package circuitbreaker

import (
	"os"
	"strconv"
	"time"
)

// EnvConfig is the environment-tunable part of a breaker Config.
type EnvConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// GetOracleConfig reads CB_ORACLE_* for the search oracle breaker. The
// oracle is slow and expensive, so it opens sooner and stays open longer
// than the cache breaker.
func GetOracleConfig() EnvConfig {
	return envConfig("CB_ORACLE", EnvConfig{
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 1,
	})
}

// GetRedisConfig reads CB_REDIS_* for the hunt cache breaker.
func GetRedisConfig() EnvConfig {
	return envConfig("CB_REDIS", EnvConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	})
}

func envConfig(prefix string, def EnvConfig) EnvConfig {
	return EnvConfig{
		MaxRequests:      getEnvUint32(prefix+"_MAX_REQUESTS", def.MaxRequests),
		Interval:         getEnvDuration(prefix+"_INTERVAL", def.Interval),
		Timeout:          getEnvDuration(prefix+"_TIMEOUT", def.Timeout),
		FailureThreshold: getEnvUint32(prefix+"_FAILURE_THRESHOLD", def.FailureThreshold),
		SuccessThreshold: getEnvUint32(prefix+"_SUCCESS_THRESHOLD", def.SuccessThreshold),
	}
}

// ToConfig converts to a breaker Config. OnStateChange is wired by the
// metrics collector on registration.
func (ec EnvConfig) ToConfig() Config {
	return Config{
		MaxRequests:      ec.MaxRequests,
		Interval:         ec.Interval,
		Timeout:          ec.Timeout,
		FailureThreshold: ec.FailureThreshold,
		SuccessThreshold: ec.SuccessThreshold,
	}
}

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}
