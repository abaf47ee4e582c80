// Package oracle calls the generative search backend that answers search
// tasks with claimed signals and the grounding chunks it actually retrieved.
package oracle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
)

var (
	ErrEmptyResponse = errors.New("oracle returned an empty response")
	ErrMissingAPIKey = errors.New("oracle API key is not configured")
)

// Response is the raw answer to one search task.
type Response struct {
	Text   string                  `json:"text"`
	Chunks []models.GroundingChunk `json:"chunks"`
}

// Oracle answers a single search task.
type Oracle interface {
	Search(ctx context.Context, task tasks.SearchTask) (*Response, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, task tasks.SearchTask) (*Response, error)

func (f Func) Search(ctx context.Context, task tasks.SearchTask) (*Response, error) {
	return f(ctx, task)
}

// Retrying retries quota failures of the wrapped oracle.
type Retrying struct {
	Oracle Oracle
	Policy retry.Policy
}

// WithRetry wraps o with policy.
func WithRetry(o Oracle, policy retry.Policy, logger *zap.Logger) *Retrying {
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Retrying{Oracle: o, Policy: policy}
}

func (r *Retrying) Search(ctx context.Context, task tasks.SearchTask) (*Response, error) {
	return retry.Do(ctx, r.Policy, retry.ScopeTask, func(ctx context.Context) (*Response, error) {
		return r.Oracle.Search(ctx, task)
	})
}
