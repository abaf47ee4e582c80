package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/ratecontrol"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tracing"
)

const DefaultModel = "gemini-2.5-flash"

// Options configure a GeminiClient.
type Options struct {
	APIKey string
	Model  string
	// Provider selects the built-in rate limit. Empty infers it from Model.
	Provider string
	// Timeout bounds a single call. Zero leaves calls unbounded.
	Timeout time.Duration
	// RPM paces calls; 0 uses the provider's built-in limit, -1 disables pacing.
	RPM int
	// StructuredOutput requests application/json with the task schema.
	StructuredOutput bool
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Transport is the base round tripper under the circuit breaker.
	Transport http.RoundTripper
	// Resolver, when set, rewrites grounding redirect links to page URLs.
	Resolver *RedirectResolver
}

// GeminiClient answers search tasks with Gemini and Google Search grounding.
type GeminiClient struct {
	client     *genai.Client
	model      string
	provider   string
	structured bool
	limiter    *rate.Limiter
	resolver   *RedirectResolver
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewGeminiClient builds a client whose HTTP traffic passes through the
// oracle circuit breaker.
func NewGeminiClient(ctx context.Context, opts Options, logger *zap.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	transport := circuitbreaker.NewTransport(opts.Transport, "oracle", "gemini",
		circuitbreaker.GetOracleConfig().ToConfig(), logger)
	httpClient := &http.Client{Transport: transport, Timeout: opts.Timeout}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	provider := ratecontrol.ResolveProvider(opts.Provider, opts.Model)
	return &GeminiClient{
		client:     client,
		model:      opts.Model,
		provider:   provider,
		structured: opts.StructuredOutput,
		limiter:    ratecontrol.LimiterFor(provider, opts.RPM),
		resolver:   opts.Resolver,
		breaker:    transport.Breaker(),
		logger:     logger,
	}, nil
}

// Breaker exposes the oracle circuit breaker for health checks.
func (c *GeminiClient) Breaker() *circuitbreaker.CircuitBreaker { return c.breaker }

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Provider returns the provider whose rate limit paces this client.
func (c *GeminiClient) Provider() string { return c.provider }

func (c *GeminiClient) Search(ctx context.Context, task tasks.SearchTask) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "oracle.search",
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", string(task.Kind)),
		attribute.String("oracle.model", c.model),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if c.structured {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = task.Schema
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(task.Prompt), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generate content for task %s: %w", task.ID, err)
	}

	out := &Response{Text: resp.Text(), Chunks: groundingChunks(resp)}
	if c.resolver != nil {
		c.resolver.Resolve(ctx, out.Chunks)
	}
	span.SetAttributes(attribute.Int("oracle.chunks", len(out.Chunks)))
	c.logger.Debug("Oracle answered",
		zap.String("task", task.ID),
		zap.Int("chunks", len(out.Chunks)),
		zap.Int("text_bytes", len(out.Text)),
		zap.Duration("duration", time.Since(start)),
	)
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrEmptyResponse)
	}
	return out, nil
}

func groundingChunks(resp *genai.GenerateContentResponse) []models.GroundingChunk {
	var chunks []models.GroundingChunk
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, gc := range cand.GroundingMetadata.GroundingChunks {
			if gc == nil || gc.Web == nil {
				continue
			}
			chunks = append(chunks, models.GroundingChunk{Web: models.WebChunk{
				URI:   gc.Web.URI,
				Title: gc.Web.Title,
			}})
		}
	}
	return chunks
}
