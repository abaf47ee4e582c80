package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/registry"
)

// Each hunt fans out a handful of searches; leave room for several hunts.
const maxConcurrentActivities = 32

// Dial connects to host, retrying with a growing delay capped at 15s until
// ctx is done.
func Dial(ctx context.Context, host, namespace string, logger *zap.Logger) (client.Client, error) {
	for attempt := 1; ; attempt++ {
		c, err := client.Dial(client.Options{
			HostPort:  host,
			Namespace: namespace,
			Logger:    NewZapAdapter(logger),
		})
		if err == nil {
			return c, nil
		}
		delay := time.Duration(attempt) * time.Second
		if delay > 15*time.Second {
			delay = 15 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.String("host", host),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial temporal %s: %w", host, err)
		case <-time.After(delay):
		}
	}
}

// StartWorker registers the hunt workflow on queue and runs the worker until
// Stop is called on the returned worker.
func StartWorker(c client.Client, queue string, reg *registry.HuntRegistry, logger *zap.Logger) (worker.Worker, error) {
	wk := worker.New(c, queue, worker.Options{
		MaxConcurrentActivityExecutionSize:     maxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})
	reg.Register(wk)
	if err := wk.Start(); err != nil {
		return nil, fmt.Errorf("start temporal worker: %w", err)
	}
	logger.Info("Temporal worker started", zap.String("queue", queue))
	return wk, nil
}
