// Package httpapi exposes hunts over HTTP.
//
// Endpoints:
//
//	POST /v1/hunts        run a hunt and return its signals
//	POST /v1/hunts?async  start a durable hunt on Temporal
//	GET  /v1/hunts/{id}   result of a durable hunt
//	POST /v1/plans        show the searches a hunt would run
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/hunt"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/workflows"
)

// maxBodyBytes bounds a hunt request body.
const maxBodyBytes = 1 << 20

// Runner runs one hunt in process.
type Runner interface {
	Run(ctx context.Context, req hunt.Request) (*hunt.Report, error)
}

// HuntHandler serves the hunt endpoints.
type HuntHandler struct {
	runner    Runner
	builder   *tasks.Builder
	temporal  client.Client
	taskQueue string
	workflow  workflows.HuntInput
	authToken string
	logger    *zap.Logger
}

// Option configures a HuntHandler.
type Option func(*HuntHandler)

// WithTemporal enables asynchronous hunts on queue. template carries the
// worker-side knobs copied into every started workflow.
func WithTemporal(c client.Client, queue string, template workflows.HuntInput) Option {
	return func(h *HuntHandler) {
		h.temporal = c
		h.taskQueue = queue
		h.workflow = template
	}
}

// WithAuthToken requires "Authorization: Bearer <token>" on every request.
func WithAuthToken(token string) Option {
	return func(h *HuntHandler) { h.authToken = token }
}

// NewHuntHandler creates a new handler.
func NewHuntHandler(runner Runner, builder *tasks.Builder, logger *zap.Logger, opts ...Option) *HuntHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = &tasks.Builder{}
	}
	h := &HuntHandler{runner: runner, builder: builder, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers hunt routes on the provided mux.
func (h *HuntHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/hunts", h.authorized(h.handleHunt))
	mux.HandleFunc("GET /v1/hunts/{id}", h.authorized(h.handleHuntResult))
	mux.HandleFunc("POST /v1/plans", h.authorized(h.handlePlan))
}

func (h *HuntHandler) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.authToken {
				writeError(w, http.StatusUnauthorized, "unauthorized", false)
				return
			}
		}
		next(w, r)
	}
}

func (h *HuntHandler) decode(w http.ResponseWriter, r *http.Request) (hunt.Request, bool) {
	var req hunt.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("Hunt request decode error", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON", false)
		return req, false
	}
	return req, true
}

func (h *HuntHandler) handleHunt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if _, async := r.URL.Query()["async"]; async {
		h.startHunt(w, r, req)
		return
	}

	report, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.writeHuntError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HuntHandler) startHunt(w http.ResponseWriter, r *http.Request, req hunt.Request) {
	if h.temporal == nil {
		writeError(w, http.StatusNotImplemented, "asynchronous hunts are not enabled", false)
		return
	}
	if err := req.Profile.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), false)
		return
	}

	input := h.workflow
	input.Request = req
	id := "hunt-" + uuid.NewString()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	run, err := h.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: h.taskQueue,
	}, workflows.HuntWorkflowName, input)
	if err != nil {
		h.logger.Error("Failed to start hunt workflow", zap.String("workflow_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to start hunt", false)
		return
	}
	h.logger.Info("Hunt workflow started", zap.String("workflow_id", run.GetID()), zap.String("run_id", run.GetRunID()))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"huntId": run.GetID(),
		"runId":  run.GetRunID(),
		"status": "running",
	})
}

func (h *HuntHandler) handleHuntResult(w http.ResponseWriter, r *http.Request) {
	if h.temporal == nil {
		writeError(w, http.StatusNotImplemented, "asynchronous hunts are not enabled", false)
		return
	}
	id := r.PathValue("id")

	wait := time.Second
	if v := r.URL.Query().Get("wait"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 && secs <= 60 {
			wait = time.Duration(secs) * time.Second
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	var report hunt.Report
	err := h.temporal.GetWorkflow(ctx, id, "").Get(ctx, &report)
	switch {
	case err == nil:
		if report.Signals == nil {
			report.Signals = []models.MarketSignal{}
		}
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"huntId": id, "status": "running"})
	default:
		h.writeHuntError(w, err)
	}
}

func (h *HuntHandler) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := req.Profile.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), false)
		return
	}
	plan, err := h.builder.Build(req.Profile, req.Triggers, req.Region)
	if err != nil {
		h.logger.Error("Failed to build plan", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build plan", false)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// writeHuntError maps hunt failures to status codes. Quota failures are
// flagged so clients can offer a different credential.
func (h *HuntHandler) writeHuntError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hunt.ErrNoProfile):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), false)
	case retry.IsQuotaError(err):
		h.logger.Warn("Hunt failed on quota", zap.Error(err))
		writeError(w, http.StatusTooManyRequests, err.Error(), true)
	default:
		h.logger.Error("Hunt failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error(), false)
	}
}

func writeError(w http.ResponseWriter, code int, message string, quota bool) {
	body := map[string]interface{}{"error": message}
	if quota {
		body["quota"] = true
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// NewServer builds the service's HTTP server on port.
func NewServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
