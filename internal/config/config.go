// Package config loads the hunter configuration from YAML and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/matching"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tracing"
)

// DefaultPath is used when neither an explicit path nor HUNTER_CONFIG is set.
const DefaultPath = "./config/hunter.yaml"

type OracleConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// RPM of 0 uses the provider's built-in limit; negative disables pacing.
	RPM              int  `mapstructure:"rpm"`
	StructuredOutput bool `mapstructure:"structured_output"`
	ResolveRedirects bool `mapstructure:"resolve_redirects"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxJitter   time.Duration `mapstructure:"max_jitter"`
}

// Policy converts to a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxJitter:   r.MaxJitter,
	}
}

type SearchConfig struct {
	RecencyDays    int    `mapstructure:"recency_days"`
	ResultsPerTask int    `mapstructure:"results_per_task"`
	TemplatesDir   string `mapstructure:"templates_dir"`
}

type VerifyConfig struct {
	WhitelistMatch  string `mapstructure:"whitelist_match"`
	CredibilityFile string `mapstructure:"credibility_file"`
}

// MatchMode is the parsed whitelist match mode.
func (v VerifyConfig) MatchMode() matching.MatchMode {
	return matching.ParseMatchMode(v.WhitelistMatch)
}

type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full hunter configuration.
type Config struct {
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Search   SearchConfig   `mapstructure:"search"`
	Verify   VerifyConfig   `mapstructure:"verify"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Tracing  tracing.Config `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.provider", "google")
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", time.Duration(0))
	v.SetDefault("oracle.rpm", 0)
	v.SetDefault("oracle.structured_output", true)
	v.SetDefault("oracle.resolve_redirects", true)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("retry.max_jitter", time.Second)

	v.SetDefault("search.recency_days", 14)
	v.SetDefault("search.results_per_task", 6)
	v.SetDefault("search.templates_dir", "")

	v.SetDefault("verify.whitelist_match", string(matching.MatchStrict))
	v.SetDefault("verify.credibility_file", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl", 6*time.Hour)

	v.SetDefault("temporal.host", "")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "signal-hunts")

	v.SetDefault("http.port", 8081)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "signal-hunter")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads path (or HUNTER_CONFIG, or DefaultPath). A missing file is not
// an error; defaults and HUNTER_* environment overrides still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("HUNTER_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Search.RecencyDays < 1 {
		return fmt.Errorf("search.recency_days must be at least 1, got %d", c.Search.RecencyDays)
	}
	if c.Search.ResultsPerTask < 1 {
		return fmt.Errorf("search.results_per_task must be at least 1, got %d", c.Search.ResultsPerTask)
	}
	switch matching.MatchMode(strings.ToLower(c.Verify.WhitelistMatch)) {
	case matching.MatchStrict, matching.MatchSubstring:
	default:
		return fmt.Errorf("verify.whitelist_match must be strict or substring, got %q", c.Verify.WhitelistMatch)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
