package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/app"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/config"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/health"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/httpapi"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/registry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/temporal"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to hunter.yaml (defaults to $HUNTER_CONFIG or ./config/hunter.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize hunter", zap.Error(err))
	}
	defer a.Close()

	hm := health.NewManager(logger)
	if err := a.RegisterHealth(hm); err != nil {
		logger.Fatal("Failed to register health checkers", zap.Error(err))
	}

	var opts []httpapi.Option
	if token := os.Getenv("HUNTER_API_TOKEN"); token != "" {
		opts = append(opts, httpapi.WithAuthToken(token))
	}

	// Async hunts need a reachable Temporal cluster; without one the API
	// still serves synchronous hunts.
	var (
		tc client.Client
		w  worker.Worker
	)
	if cfg.Temporal.Host != "" {
		dialCtx, dialCancel := context.WithTimeout(ctx, 2*time.Minute)
		tc, err = temporal.Dial(dialCtx, cfg.Temporal.Host, cfg.Temporal.Namespace, logger)
		dialCancel()
		if err != nil {
			logger.Error("Temporal unavailable; async hunts disabled", zap.Error(err))
		} else {
			defer tc.Close()
			acts := activities.NewHuntActivities(a.Builder, a.Search, a.Verifier, logger)
			w, err = temporal.StartWorker(tc, cfg.Temporal.TaskQueue, registry.NewHuntRegistry(acts, logger), logger)
			if err != nil {
				logger.Fatal("Failed to start worker", zap.Error(err))
			}
			opts = append(opts, httpapi.WithTemporal(tc, cfg.Temporal.TaskQueue, a.WorkflowTemplate()))
		}
	}

	mux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)
	httpapi.NewHuntHandler(a.Hunter, a.Builder, logger, opts...).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httpapi.NewServer(cfg.HTTP.Port, mux)
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down hunter")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	if w != nil {
		w.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown", zap.Error(err))
	}
}
