// Package activities holds the Temporal activities of a durable hunt.
package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/oracle"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/search"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/verify"
)

// Activity names as registered with the worker.
const (
	PlanHuntName   = "PlanHunt"
	SearchTaskName = "SearchTask"
	VerifyHuntName = "VerifyHunt"
)

// PlanInput asks for the search plan of one hunt attempt. Zero RecencyDays
// or ResultsPerTask keep the worker's configured values.
type PlanInput struct {
	HuntID         string                 `json:"huntId"`
	Profile        models.BusinessProfile `json:"profile"`
	Triggers       []models.SalesTrigger  `json:"triggers"`
	Region         string                 `json:"region,omitempty"`
	RecencyDays    int                    `json:"recencyDays,omitempty"`
	ResultsPerTask int                    `json:"resultsPerTask,omitempty"`
}

// SearchTaskInput is one search task of a hunt.
type SearchTaskInput struct {
	HuntID string           `json:"huntId"`
	Task   tasks.SearchTask `json:"task"`
}

// SearchTaskResult carries the task outcome. Oracle failures are reported in
// Error rather than as an activity error so the workflow can treat them as
// task-local.
type SearchTaskResult struct {
	Result *search.TaskResult `json:"result,omitempty"`
	Status string             `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// VerifyInput is everything the verifier needs for one hunt.
type VerifyInput struct {
	HuntID  string               `json:"huntId"`
	Results []*search.TaskResult `json:"results"`
	Options verify.Options       `json:"options"`
}

// HuntActivities binds the planner, oracle and verifier to Temporal
// activities.
type HuntActivities struct {
	builder  *tasks.Builder
	oracle   oracle.Oracle
	verifier *verify.Verifier
	logger   *zap.Logger
}

// NewHuntActivities creates the activities. builder carries the worker's
// prompt templates; nil uses the embedded ones. o should already carry the
// per-task retry policy.
func NewHuntActivities(builder *tasks.Builder, o oracle.Oracle, verifier *verify.Verifier, logger *zap.Logger) *HuntActivities {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = &tasks.Builder{}
	}
	if verifier == nil {
		verifier = verify.New(logger)
	}
	return &HuntActivities{builder: builder, oracle: o, verifier: verifier, logger: logger}
}

// PlanHunt renders the search plan with the worker's templates, so async
// hunts send the same prompts as in-process ones.
func (a *HuntActivities) PlanHunt(ctx context.Context, in PlanInput) (tasks.Plan, error) {
	b := *a.builder
	if in.RecencyDays > 0 {
		b.RecencyDays = in.RecencyDays
	}
	if in.ResultsPerTask > 0 {
		b.ResultsPerTask = in.ResultsPerTask
	}
	plan, err := b.Build(in.Profile, in.Triggers, in.Region)
	if err != nil {
		return tasks.Plan{}, fmt.Errorf("build search plan: %w", err)
	}
	activity.GetLogger(ctx).Info("Hunt planned", "hunt_id", in.HuntID, "tasks", len(plan.Tasks))
	return plan, nil
}

// SearchTask runs one task against the oracle.
func (a *HuntActivities) SearchTask(ctx context.Context, in SearchTaskInput) (SearchTaskResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running search task", "hunt_id", in.HuntID, "task", in.Task.ID)

	result, status, err := search.Execute(ctx, a.oracle, in.Task, a.logger.With(zap.String("hunt_id", in.HuntID)))
	out := SearchTaskResult{Result: result, Status: status}
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Error = err.Error()
	}
	return out, nil
}

// VerifyHunt runs the grounding verification pass. It lives in an activity
// because signal IDs and detection times are not deterministic.
func (a *HuntActivities) VerifyHunt(ctx context.Context, in VerifyInput) (verify.Outcome, error) {
	logger := activity.GetLogger(ctx)
	outcome := a.verifier.Verify(in.Results, in.Options)
	logger.Info("Hunt verified",
		"hunt_id", in.HuntID,
		"claims", outcome.Claims,
		"chunks", outcome.Chunks,
		"signals", len(outcome.Signals),
	)
	return outcome, nil
}
