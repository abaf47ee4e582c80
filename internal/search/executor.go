// Package search fans search tasks out to the oracle and collects what each
// task claimed and which pages grounded it.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/oracle"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/util"
)

// TaskResult is what one successful task produced.
type TaskResult struct {
	TaskID string                  `json:"taskId"`
	Site   string                  `json:"site,omitempty"`
	Claims []models.ClaimedSignal  `json:"claims"`
	Chunks []models.GroundingChunk `json:"chunks"`
}

// Executor runs every task of a hunt concurrently.
type Executor struct {
	Oracle oracle.Oracle
	Logger *zap.Logger
}

// NewExecutor returns an Executor over o.
func NewExecutor(o oracle.Oracle, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{Oracle: o, Logger: logger}
}

// ErrAllTasksFailed is returned by Gather when no task reached the oracle
// successfully.
var ErrAllTasksFailed = errors.New("all search tasks failed")

// Run starts all tasks at once and waits for every one to settle. The result
// is aligned with tasks; a task that failed or returned an unparseable answer
// leaves a nil entry.
func (e *Executor) Run(ctx context.Context, searchTasks []tasks.SearchTask) []*TaskResult {
	results, _ := e.run(ctx, searchTasks)
	return results
}

// Gather is Run for callers that must tell an outage from a quiet day. It
// returns ErrAllTasksFailed when every task failed at the oracle, wrapping a
// quota error if any task hit one and the last error otherwise. Unparseable
// answers count as reaching the oracle.
func (e *Executor) Gather(ctx context.Context, searchTasks []tasks.SearchTask) ([]*TaskResult, error) {
	results, errs := e.run(ctx, searchTasks)
	if len(searchTasks) == 0 {
		return results, nil
	}
	for _, err := range errs {
		if err == nil {
			return results, nil
		}
	}
	return results, fmt.Errorf("%w: %w", ErrAllTasksFailed, retry.QuotaOrLast(errs))
}

func (e *Executor) run(ctx context.Context, searchTasks []tasks.SearchTask) ([]*TaskResult, []error) {
	results := make([]*TaskResult, len(searchTasks))
	errs := make([]error, len(searchTasks))
	var wg sync.WaitGroup
	for i, task := range searchTasks {
		wg.Add(1)
		go func(i int, task tasks.SearchTask) {
			defer wg.Done()
			results[i], errs[i] = e.runOne(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return results, errs
}

func (e *Executor) runOne(ctx context.Context, task tasks.SearchTask) (*TaskResult, error) {
	ctx, span := tracing.StartSpan(ctx, "search.task",
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", string(task.Kind)),
	)
	defer span.End()

	result, status, err := Execute(ctx, e.Oracle, task, e.logger())
	span.SetAttributes(attribute.String("task.status", status))
	return result, err
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

const (
	StatusOK         = "ok"
	StatusFailed     = "failed"
	StatusParseError = "parse_error"
)

// Execute runs one task against o and converts any failure into a nil
// result. The returned status is one of StatusOK, StatusFailed or
// StatusParseError; the error is the oracle's, set only for StatusFailed.
func Execute(ctx context.Context, o oracle.Oracle, task tasks.SearchTask, logger *zap.Logger) (*TaskResult, string, error) {
	resp, err := o.Search(ctx, task)
	if err != nil {
		logger.Warn("Search task failed", zap.String("task", task.ID), zap.Error(err))
		metrics.RecordSearchTask(task.Mode(), StatusFailed)
		return nil, StatusFailed, err
	}
	claims, err := ParseClaims(resp.Text)
	if err != nil {
		logger.Warn("Search task returned unparseable JSON",
			zap.String("task", task.ID),
			zap.String("text", util.Truncate(resp.Text, 200, false)),
			zap.Error(err),
		)
		metrics.RecordSearchTask(task.Mode(), StatusParseError)
		return nil, StatusParseError, nil
	}
	metrics.RecordSearchTask(task.Mode(), StatusOK)
	logger.Debug("Search task completed",
		zap.String("task", task.ID),
		zap.Int("claims", len(claims)),
		zap.Int("chunks", len(resp.Chunks)),
	)
	return &TaskResult{
		TaskID: task.ID,
		Site:   task.Site,
		Claims: claims,
		Chunks: resp.Chunks,
	}, StatusOK, nil
}
