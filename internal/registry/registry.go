// Package registry registers the hunt workflow and its activities on a
// Temporal worker.
package registry

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/workflows"
)

// Registry is the subset of worker.Worker used for registration.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

var _ Registry = (worker.Worker)(nil)

// HuntRegistry registers hunt workflows and activities.
type HuntRegistry struct {
	acts   *activities.HuntActivities
	logger *zap.Logger
}

// NewHuntRegistry creates a registry for acts.
func NewHuntRegistry(acts *activities.HuntActivities, logger *zap.Logger) *HuntRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HuntRegistry{acts: acts, logger: logger}
}

// Register adds the hunt workflow and its activities under their stable names.
func (r *HuntRegistry) Register(w Registry) {
	w.RegisterWorkflowWithOptions(workflows.HuntWorkflow, workflow.RegisterOptions{Name: workflows.HuntWorkflowName})
	w.RegisterActivityWithOptions(r.acts.PlanHunt, activity.RegisterOptions{Name: activities.PlanHuntName})
	w.RegisterActivityWithOptions(r.acts.SearchTask, activity.RegisterOptions{Name: activities.SearchTaskName})
	w.RegisterActivityWithOptions(r.acts.VerifyHunt, activity.RegisterOptions{Name: activities.VerifyHuntName})
	r.logger.Info("Registered hunt workflow and activities",
		zap.String("workflow", workflows.HuntWorkflowName),
		zap.Strings("activities", []string{activities.PlanHuntName, activities.SearchTaskName, activities.VerifyHuntName}),
	)
}
