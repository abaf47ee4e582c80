// Package hunt runs one signal hunt end to end: plan the searches, fan them
// out to the oracle, then verify what came back against the grounding pages.
package hunt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/cache"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/search"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/verify"
)

// ErrNoProfile is returned before any search when the profile has no
// products or no target groups.
var ErrNoProfile = models.ErrNoProfile

// Searcher fans a plan's tasks out and reports an outage as an error.
type Searcher interface {
	Gather(ctx context.Context, searchTasks []tasks.SearchTask) ([]*search.TaskResult, error)
}

// Deps are the collaborators of a Hunter. Cache is optional.
type Deps struct {
	Builder  *tasks.Builder
	Executor Searcher
	Verifier *verify.Verifier
	Policy   retry.Policy
	Cache    cache.Store
	CacheTTL time.Duration
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Hunter runs hunts. It holds no per-hunt state and is safe for concurrent use.
type Hunter struct {
	builder  *tasks.Builder
	executor Searcher
	verifier *verify.Verifier
	policy   retry.Policy
	cache    cache.Store
	cacheTTL time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

// New wires a Hunter. Builder and Verifier default to their zero-config
// versions; Executor is required.
func New(d Deps) (*Hunter, error) {
	if d.Executor == nil {
		return nil, errors.New("hunt: executor is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Builder == nil {
		d.Builder = &tasks.Builder{}
	}
	if d.Verifier == nil {
		d.Verifier = verify.New(d.Logger)
	}
	if d.Policy.MaxAttempts == 0 {
		d.Policy = retry.DefaultPolicy()
	}
	if d.Policy.Logger == nil {
		d.Policy.Logger = d.Logger
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 6 * time.Hour
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Hunter{
		builder:  d.Builder,
		executor: d.Executor,
		verifier: d.Verifier,
		policy:   d.Policy,
		cache:    d.Cache,
		cacheTTL: d.CacheTTL,
		clock:    d.Clock,
		logger:   d.Logger,
	}, nil
}

// Request is one hunt.
type Request struct {
	Profile  models.BusinessProfile `json:"profile" yaml:"profile"`
	Triggers []models.SalesTrigger  `json:"triggers" yaml:"triggers"`
	Region   string                 `json:"region,omitempty" yaml:"region"`
	// SkipCache forces a fresh search even when a cached result exists.
	SkipCache bool `json:"skipCache,omitempty" yaml:"skip_cache"`
}

// Stats describe how a hunt's signals were obtained.
type Stats struct {
	Tasks       int                   `json:"tasks"`
	FailedTasks int                   `json:"failedTasks"`
	Claims      int                   `json:"claims"`
	Chunks      int                   `json:"chunks"`
	Rejections  map[verify.Reason]int `json:"rejections"`
	Attempts    int                   `json:"attempts"`
	Cached      bool                  `json:"cached"`
	Duration    time.Duration         `json:"duration"`
}

// Report is the outcome of Run.
type Report struct {
	HuntID  string                `json:"huntId"`
	Signals []models.MarketSignal `json:"signals"`
	Plan    *tasks.Plan           `json:"plan,omitempty"`
	Stats   Stats                 `json:"stats"`
}

// Hunt returns the verified signals for profile. An empty result is not an
// error. Quota failures of the whole hunt are retried with the hunter's
// policy; when retries run out the last error is returned.
func (h *Hunter) Hunt(ctx context.Context, profile models.BusinessProfile, triggers []models.SalesTrigger, region string) ([]models.MarketSignal, error) {
	report, err := h.Run(ctx, Request{Profile: profile, Triggers: triggers, Region: region})
	if err != nil {
		return nil, err
	}
	return report.Signals, nil
}

// Run is Hunt with plan and verification statistics.
func (h *Hunter) Run(ctx context.Context, req Request) (*Report, error) {
	start := h.clock()
	huntID := uuid.NewString()
	logger := h.logger.With(zap.String("hunt_id", huntID))

	ctx, span := tracing.StartSpan(ctx, "hunt.run", attribute.String("hunt.id", huntID))
	defer span.End()

	// Snapshot so later edits by the caller cannot affect this hunt.
	triggers := models.ApprovedTriggers(req.Triggers)
	if err := req.Profile.Validate(); err != nil {
		metrics.RecordHunt("invalid", 0)
		return nil, err
	}

	report := &Report{HuntID: huntID, Stats: Stats{Rejections: map[verify.Reason]int{}}}

	var key string
	if h.cache != nil {
		key = cache.Key(req.Profile, triggers, req.Region, start)
		if !req.SkipCache {
			signals, ok, err := h.cache.Get(ctx, key)
			if err != nil {
				logger.Warn("Hunt cache lookup failed", zap.Error(err))
			} else if ok {
				logger.Info("Hunt served from cache", zap.Int("signals", len(signals)))
				report.Signals = signals
				report.Stats.Cached = true
				report.Stats.Duration = h.clock().Sub(start)
				metrics.RecordHunt("cached", report.Stats.Duration.Seconds())
				return report, nil
			}
		}
	}

	logger.Info("Hunt started",
		zap.String("profile", req.Profile.Name),
		zap.Int("approved_triggers", len(triggers)),
		zap.String("region_override", req.Region),
	)

	attempts := 0
	outcome, err := retry.Do(ctx, h.policy, retry.ScopeHunt, func(ctx context.Context) (*attempt, error) {
		attempts++
		return h.attempt(ctx, req.Profile, triggers, req.Region)
	})
	report.Stats.Attempts = attempts
	report.Stats.Duration = h.clock().Sub(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status := "failed"
		if retry.IsQuotaError(err) {
			status = "quota"
		}
		metrics.RecordHunt(status, report.Stats.Duration.Seconds())
		logger.Error("Hunt failed", zap.Int("attempts", attempts), zap.Error(err))
		return nil, err
	}

	report.Plan = &outcome.plan
	report.Signals = outcome.verified.Signals
	report.Stats.Tasks = len(outcome.plan.Tasks)
	report.Stats.FailedTasks = outcome.failed
	report.Stats.Claims = outcome.verified.Claims
	report.Stats.Chunks = outcome.verified.Chunks
	report.Stats.Rejections = outcome.verified.Rejections

	if h.cache != nil {
		if err := h.cache.Put(ctx, key, report.Signals, h.cacheTTL); err != nil {
			logger.Warn("Hunt cache store failed", zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int("hunt.signals", len(report.Signals)))
	metrics.RecordHunt("ok", report.Stats.Duration.Seconds())
	logger.Info("Hunt completed",
		zap.Int("signals", len(report.Signals)),
		zap.Int("tasks", report.Stats.Tasks),
		zap.Int("failed_tasks", report.Stats.FailedTasks),
		zap.Int("claims", report.Stats.Claims),
		zap.Int("attempts", attempts),
		zap.Duration("duration", report.Stats.Duration),
	)
	return report, nil
}

type attempt struct {
	plan     tasks.Plan
	verified verify.Outcome
	failed   int
}

func (h *Hunter) attempt(ctx context.Context, profile models.BusinessProfile, triggers []models.SalesTrigger, region string) (*attempt, error) {
	plan, err := h.builder.Build(profile, triggers, region)
	if err != nil {
		return nil, fmt.Errorf("build search plan: %w", err)
	}
	results, err := h.executor.Gather(ctx, plan.Tasks)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, r := range results {
		if r == nil {
			failed++
		}
	}
	verified := h.verifier.Verify(results, verify.Options{
		SitesMode: plan.SitesMode,
		Whitelist: plan.Sites,
		Region:    plan.Region,
	})
	return &attempt{plan: plan, verified: verified, failed: failed}, nil
}
