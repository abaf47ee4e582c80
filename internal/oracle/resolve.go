package oracle

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/matching"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

// RedirectHost serves the opaque grounding redirect links Gemini returns in
// place of the retrieved page URL.
const RedirectHost = "vertexaisearch.cloud.google.com"

// RedirectResolver replaces grounding redirect links with the page URL they
// point to, so chunk URIs name the real source host.
type RedirectResolver struct {
	Client  *http.Client
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewRedirectResolver returns a resolver that reads the Location header of
// each redirect link without following it.
func NewRedirectResolver(timeout time.Duration, logger *zap.Logger) *RedirectResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedirectResolver{
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		Timeout: timeout,
		Logger:  logger,
	}
}

// Resolve rewrites redirect chunk URIs in place. Chunks that cannot be
// resolved keep their original URI.
func (r *RedirectResolver) Resolve(ctx context.Context, chunks []models.GroundingChunk) {
	var wg sync.WaitGroup
	for i := range chunks {
		if !IsRedirect(chunks[i].Web.URI) {
			continue
		}
		wg.Add(1)
		go func(c *models.GroundingChunk) {
			defer wg.Done()
			if target, ok := r.location(ctx, c.Web.URI); ok {
				c.Web.URI = target
			}
		}(&chunks[i])
	}
	wg.Wait()
}

func (r *RedirectResolver) location(ctx context.Context, uri string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return "", false
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		r.Logger.Debug("Grounding redirect not resolved", zap.String("uri", uri), zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	loc := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || loc == "" {
		return "", false
	}
	target, err := resp.Request.URL.Parse(loc)
	if err != nil {
		return "", false
	}
	return target.String(), true
}

// IsRedirect reports whether uri is a grounding redirect link.
func IsRedirect(uri string) bool {
	host := matching.CanonicalHostname(uri)
	return host == RedirectHost || strings.HasSuffix(host, "."+RedirectHost)
}
