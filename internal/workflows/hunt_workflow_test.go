package workflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/hunt"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/oracle"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/verify"
)

var testRequest = hunt.Request{
	Profile: models.BusinessProfile{
		Name:         "Acme Hire",
		Products:     []string{"Excavators"},
		TargetGroups: []string{"Councils"},
		Geography:    []string{"NSW"},
	},
}

const tenderAnswer = `[{"headline":"Shire seeks machinery","sourceUrl":"https://www.shirehire.com.au/a","sourceTitle":"Excavator program","urgency":"HIGH"}]`

func newEnv(t *testing.T, o oracle.Oracle) *testsuite.TestWorkflowEnvironment {
	return newEnvWithBuilder(t, nil, o)
}

func newEnvWithBuilder(t *testing.T, b *tasks.Builder, o oracle.Oracle) *testsuite.TestWorkflowEnvironment {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	logger := zaptest.NewLogger(t)
	acts := activities.NewHuntActivities(b, o, verify.New(logger), logger)
	env.RegisterActivityWithOptions(acts.PlanHunt, activity.RegisterOptions{Name: activities.PlanHuntName})
	env.RegisterActivityWithOptions(acts.SearchTask, activity.RegisterOptions{Name: activities.SearchTaskName})
	env.RegisterActivityWithOptions(acts.VerifyHunt, activity.RegisterOptions{Name: activities.VerifyHuntName})
	env.RegisterWorkflow(HuntWorkflow)
	return env
}

func TestHuntWorkflowVerifiesPooledResults(t *testing.T) {
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		switch task.ID {
		case "tenders":
			return &oracle.Response{Text: tenderAnswer}, nil
		case "projects":
			return nil, errors.New("connection reset by peer")
		default:
			return &oracle.Response{
				Text:   "[]",
				Chunks: []models.GroundingChunk{{Web: models.WebChunk{URI: "https://shirehire.com.au/b", Title: "Excavator hire opportunities"}}},
			}, nil
		}
	})
	env := newEnv(t, o)

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: testRequest})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var report hunt.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	require.Len(t, report.Signals, 1)
	assert.Equal(t, "https://shirehire.com.au/b", report.Signals[0].SourceURL)
	assert.Equal(t, 3, report.Stats.Tasks)
	assert.Equal(t, 1, report.Stats.FailedTasks)
	assert.Equal(t, 1, report.Stats.Attempts)
}

func TestHuntWorkflowLaunchesTasksInParallel(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return &oracle.Response{Text: "[]"}, nil
	})
	env := newEnv(t, o)

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: testRequest})
	require.NoError(t, env.GetWorkflowError())
	assert.Greater(t, peak, 1)
}

func TestHuntWorkflowRetriesOnQuota(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		if calls.Add(1) <= 3 {
			return nil, errors.New("Error 429, Message: quota exhausted")
		}
		return &oracle.Response{Text: "[]"}, nil
	})
	env := newEnv(t, o)

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: testRequest})
	require.NoError(t, env.GetWorkflowError())

	var report hunt.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, 2, report.Stats.Attempts)
	assert.NotNil(t, report.Signals)
	assert.Empty(t, report.Signals)
	assert.Equal(t, int32(6), calls.Load())
}

func TestHuntWorkflowGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		return nil, errors.New("429 quota exceeded")
	})
	env := newEnv(t, o)

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: testRequest, MaxAttempts: 2})
	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Equal(t, int32(6), calls.Load())
}

func TestHuntWorkflowRejectsEmptyProfile(t *testing.T) {
	var calls atomic.Int32
	env := newEnv(t, oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		return &oracle.Response{Text: "[]"}, nil
	}))

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: hunt.Request{Profile: models.BusinessProfile{Name: "Nobody"}}})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Zero(t, calls.Load())
}

func TestHuntWorkflowRetriesWhenQuotaFailureIsNotLast(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		if task.ID == "industry" {
			return nil, errors.New("connection reset")
		}
		return nil, errors.New("429 quota exceeded")
	})
	env := newEnv(t, o)

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: testRequest, MaxAttempts: 2})
	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Equal(t, int32(6), calls.Load())
}

func TestHuntWorkflowUsesWorkerTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tenders.tmpl"),
		[]byte("Custom tender search for {{.Region}}"), 0o600))
	b, err := tasks.NewBuilder(14, 6, dir)
	require.NoError(t, err)

	var mu sync.Mutex
	prompts := map[string]string{}
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		mu.Lock()
		prompts[task.ID] = task.Prompt
		mu.Unlock()
		return &oracle.Response{Text: "[]"}, nil
	})
	env := newEnvWithBuilder(t, b, o)

	env.ExecuteWorkflow(HuntWorkflow, HuntInput{Request: testRequest})
	require.NoError(t, env.GetWorkflowError())

	var report hunt.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	require.NotNil(t, report.Plan)
	assert.Equal(t, "Custom tender search for NSW", prompts["tenders"])
	assert.Equal(t, "Custom tender search for NSW", report.Plan.Tasks[0].Prompt)
	assert.NotContains(t, prompts["projects"], "Custom tender search")
}
