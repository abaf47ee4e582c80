// Package app assembles the hunter's components from configuration. Both the
// service and the command line tool start here.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/cache"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/config"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/health"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/hunt"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/matching"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/oracle"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/search"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/verify"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/workflows"
)

// App holds the wired components. Cache is nil when caching is disabled.
type App struct {
	Config   *config.Config
	Oracle   *oracle.GeminiClient
	Search   oracle.Oracle
	Builder  *tasks.Builder
	Verifier *verify.Verifier
	Hunter   *hunt.Hunter
	Cache    *cache.RedisStore
	Logger   *zap.Logger
}

// NewLogger builds the process logger. Debug level or console format selects
// the development encoder.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel || strings.EqualFold(cfg.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// New wires the oracle, planner, verifier and hunter. A configured cache that
// cannot be reached is logged and skipped; hunts still run without it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := oracle.Options{
		APIKey:           cfg.Oracle.APIKey,
		Model:            cfg.Oracle.Model,
		Provider:         cfg.Oracle.Provider,
		Timeout:          cfg.Oracle.Timeout,
		RPM:              cfg.Oracle.RPM,
		StructuredOutput: cfg.Oracle.StructuredOutput,
		BaseURL:          cfg.Oracle.BaseURL,
	}
	if cfg.Oracle.ResolveRedirects {
		opts.Resolver = oracle.NewRedirectResolver(0, logger)
	}
	gemini, err := oracle.NewGeminiClient(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	policy := cfg.Retry.Policy()
	searchOracle := oracle.WithRetry(gemini, policy, logger)

	builder, err := tasks.NewBuilder(cfg.Search.RecencyDays, cfg.Search.ResultsPerTask, cfg.Search.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("task templates: %w", err)
	}

	verifier := verify.New(logger)
	verifier.Match = cfg.Verify.MatchMode()
	if cfg.Verify.CredibilityFile != "" {
		scorer, err := matching.LoadCredibility(cfg.Verify.CredibilityFile)
		if err != nil {
			return nil, fmt.Errorf("credibility: %w", err)
		}
		verifier.Scorer = scorer
	}

	a := &App{
		Config:   cfg,
		Oracle:   gemini,
		Search:   searchOracle,
		Builder:  builder,
		Verifier: verifier,
		Logger:   logger,
	}

	deps := hunt.Deps{
		Builder:  builder,
		Executor: search.NewExecutor(searchOracle, logger),
		Verifier: verifier,
		Policy:   policy,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	}
	if cfg.Cache.Enabled {
		store, err := cache.Dial(ctx, cfg.Cache.RedisAddr, logger)
		if err != nil {
			logger.Warn("Hunt cache unavailable, continuing without it",
				zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		} else {
			a.Cache = store
			deps.Cache = store
		}
	}

	a.Hunter, err = hunt.New(deps)
	if err != nil {
		return nil, err
	}

	logger.Info("Hunter initialized",
		zap.String("model", gemini.Model()),
		zap.String("provider", gemini.Provider()),
		zap.Bool("structured_output", cfg.Oracle.StructuredOutput),
		zap.Bool("resolve_redirects", cfg.Oracle.ResolveRedirects),
		zap.String("whitelist_match", string(verifier.Match)),
		zap.Bool("cache", a.Cache != nil),
	)
	return a, nil
}

// RegisterHealth adds the oracle breaker and, when present, the cache to m.
func (a *App) RegisterHealth(m *health.Manager) error {
	if err := m.RegisterChecker(health.NewOracleChecker(a.Oracle.Breaker())); err != nil {
		return err
	}
	if a.Cache != nil {
		return m.RegisterChecker(health.NewCacheChecker(a.Cache))
	}
	return nil
}

// WorkflowTemplate carries the configured planning and retry knobs into
// workflows started by the API.
func (a *App) WorkflowTemplate() workflows.HuntInput {
	return workflows.HuntInput{
		RecencyDays:    a.Config.Search.RecencyDays,
		ResultsPerTask: a.Config.Search.ResultsPerTask,
		MaxAttempts:    a.Config.Retry.MaxAttempts,
		BaseDelay:      a.Config.Retry.BaseDelay,
		MaxJitter:      a.Config.Retry.MaxJitter,
	}
}

// Close releases the cache connection.
func (a *App) Close() error {
	if a.Cache != nil {
		return a.Cache.Close()
	}
	return nil
}
