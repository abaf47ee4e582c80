// Package workflows runs hunts durably on Temporal.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/hunt"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/search"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/verify"
)

// HuntWorkflowName is the registered workflow type.
const HuntWorkflowName = "HuntWorkflow"

// HuntInput is a hunt request plus the knobs a worker would otherwise take
// from its own configuration.
type HuntInput struct {
	Request        hunt.Request  `json:"request"`
	RecencyDays    int           `json:"recencyDays,omitempty"`
	ResultsPerTask int           `json:"resultsPerTask,omitempty"`
	MaxAttempts    int           `json:"maxAttempts,omitempty"`
	BaseDelay      time.Duration `json:"baseDelay,omitempty"`
	MaxJitter      time.Duration `json:"maxJitter,omitempty"`
	// TaskTimeout bounds one search activity. Zero means 10 minutes.
	TaskTimeout time.Duration `json:"taskTimeout,omitempty"`
}

func (in HuntInput) policy() retry.Policy {
	p := retry.DefaultPolicy()
	if in.MaxAttempts > 0 {
		p.MaxAttempts = in.MaxAttempts
	}
	if in.BaseDelay > 0 {
		p.BaseDelay = in.BaseDelay
	}
	if in.MaxJitter > 0 {
		p.MaxJitter = in.MaxJitter
	}
	return p
}

// HuntWorkflow plans a hunt on the worker, runs every search task as a parallel activity,
// then verifies the pooled results. A hunt where every task failed on quota
// is retried as a whole with the hunt backoff, using durable timers.
func HuntWorkflow(ctx workflow.Context, input HuntInput) (*hunt.Report, error) {
	logger := workflow.GetLogger(ctx)
	huntID := workflow.GetInfo(ctx).WorkflowExecution.ID
	start := workflow.Now(ctx)

	if err := input.Request.Profile.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "NoProfile", err)
	}
	triggers := models.ApprovedTriggers(input.Request.Triggers)

	taskTimeout := input.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 10 * time.Minute
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: taskTimeout,
		// Quota retries are handled by our own policy.
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	policy := input.policy()

	for attempt := 1; ; attempt++ {
		var plan tasks.Plan
		err := workflow.ExecuteActivity(ctx, activities.PlanHuntName, activities.PlanInput{
			HuntID:         huntID,
			Profile:        input.Request.Profile,
			Triggers:       triggers,
			Region:         input.Request.Region,
			RecencyDays:    input.RecencyDays,
			ResultsPerTask: input.ResultsPerTask,
		}).Get(ctx, &plan)
		if err != nil {
			return nil, fmt.Errorf("plan hunt: %w", err)
		}
		logger.Info("Hunt attempt started", "hunt_id", huntID, "attempt", attempt, "tasks", len(plan.Tasks))

		results, failed, unreachable := runSearches(ctx, huntID, plan.Tasks)
		if len(plan.Tasks) > 0 && len(unreachable) == len(plan.Tasks) {
			err := fmt.Errorf("%w: %w", search.ErrAllTasksFailed, retry.QuotaOrLast(unreachable))
			if !retry.IsQuotaError(err) || attempt >= policy.MaxAttempts {
				logger.Error("Hunt failed", "hunt_id", huntID, "attempt", attempt, "error", err)
				return nil, err
			}
			delay := policy.Backoff(attempt) + jitter(ctx, policy.MaxJitter)
			logger.Warn("Quota error, backing off", "hunt_id", huntID, "attempt", attempt, "delay", delay)
			if err := workflow.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		var outcome verify.Outcome
		err = workflow.ExecuteActivity(ctx, activities.VerifyHuntName, activities.VerifyInput{
			HuntID:  huntID,
			Results: results,
			Options: verify.Options{SitesMode: plan.SitesMode, Whitelist: plan.Sites, Region: plan.Region},
		}).Get(ctx, &outcome)
		if err != nil {
			return nil, fmt.Errorf("verify hunt: %w", err)
		}
		if outcome.Signals == nil {
			outcome.Signals = []models.MarketSignal{}
		}

		report := &hunt.Report{
			HuntID:  huntID,
			Signals: outcome.Signals,
			Plan:    &plan,
			Stats: hunt.Stats{
				Tasks:       len(plan.Tasks),
				FailedTasks: failed,
				Claims:      outcome.Claims,
				Chunks:      outcome.Chunks,
				Rejections:  outcome.Rejections,
				Attempts:    attempt,
				Duration:    workflow.Now(ctx).Sub(start),
			},
		}
		logger.Info("Hunt completed", "hunt_id", huntID, "signals", len(report.Signals), "attempts", attempt)
		return report, nil
	}
}

// runSearches launches every task before waiting on any of them. Failed
// tasks leave nil results. unreachable holds the errors of tasks that never
// got an answer from the oracle.
func runSearches(ctx workflow.Context, huntID string, searchTasks []tasks.SearchTask) (results []*search.TaskResult, failed int, unreachable []error) {
	futures := make([]workflow.Future, len(searchTasks))
	for i, task := range searchTasks {
		futures[i] = workflow.ExecuteActivity(ctx, activities.SearchTaskName, activities.SearchTaskInput{
			HuntID: huntID,
			Task:   task,
		})
	}

	results = make([]*search.TaskResult, len(searchTasks))
	for i, f := range futures {
		var out activities.SearchTaskResult
		if err := f.Get(ctx, &out); err != nil {
			failed++
			unreachable = append(unreachable, err)
			continue
		}
		switch {
		case out.Error != "":
			failed++
			unreachable = append(unreachable, errors.New(out.Error))
		case out.Result == nil:
			failed++
		default:
			results[i] = out.Result
		}
	}
	return results, failed, unreachable
}

func jitter(ctx workflow.Context, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var d time.Duration
	encoded := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		return retry.Policy{MaxJitter: max}.Jitter()
	})
	if err := encoded.Get(&d); err != nil {
		return 0
	}
	return d
}
