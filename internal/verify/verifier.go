// Package verify turns claimed signals into verified market signals. A claim
// is kept only when a grounding chunk returned during the same hunt supports
// it, and the signal's source is always replaced with that chunk's URI.
package verify

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/matching"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/oracle"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/search"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/util"
)

// Reason explains why a claim was discarded.
type Reason string

const (
	ReasonDuplicateDomain   Reason = "duplicate_domain"
	ReasonDuplicateHeadline Reason = "duplicate_headline"
	ReasonUngrounded        Reason = "ungrounded"
	ReasonOffWhitelist      Reason = "off_whitelist"
)

// Options are the per-hunt inputs of verification.
type Options struct {
	SitesMode bool     `json:"sitesMode"`
	Whitelist []string `json:"whitelist"`
	Region    string   `json:"region"`
}

// Outcome is the verified signal list plus counters for diagnostics.
type Outcome struct {
	Signals    []models.MarketSignal `json:"signals"`
	Rejections map[Reason]int        `json:"rejections"`
	Claims     int                   `json:"claims"`
	Chunks     int                   `json:"chunks"`
}

// Verifier checks claims against pooled grounding chunks.
type Verifier struct {
	Scorer     *matching.Scorer
	Confidence ConfidenceScorer
	Match      matching.MatchMode
	NewID      func() string
	Clock      func() time.Time
	Logger     *zap.Logger
}

// New returns a Verifier with the default scorer and confidence model.
func New(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		Scorer:     matching.DefaultScorer(),
		Confidence: DefaultConfidence(),
		Match:      matching.MatchStrict,
		NewID:      uuid.NewString,
		Clock:      time.Now,
		Logger:     logger,
	}
}

// Verify runs one sequential pass over every claim in task order. Nil
// results are skipped. Chunks from all tasks form a single pool, so a claim
// may be grounded by a chunk attached to another task.
func (v *Verifier) Verify(results []*search.TaskResult, opts Options) Outcome {
	v = v.withDefaults()

	var pool []models.GroundingChunk
	for _, r := range results {
		if r != nil {
			pool = append(pool, r.Chunks...)
		}
	}

	out := Outcome{
		Signals:    []models.MarketSignal{},
		Rejections: make(map[Reason]int),
		Chunks:     len(pool),
	}
	seenHosts := make(map[string]struct{})
	seenHeadlines := make(map[string]struct{})
	checkWhitelist := opts.SitesMode && len(opts.Whitelist) > 0
	warnedRedirect := false

	for _, r := range results {
		if r == nil {
			continue
		}
		for _, claim := range r.Claims {
			out.Claims++

			claimHost := matching.CanonicalHostname(claim.SourceURL)
			if _, dup := seenHosts[claimHost]; dup {
				v.reject(&out, ReasonDuplicateDomain, claim, zap.String("host", claimHost))
				continue
			}
			headline := normalizeHeadline(claim.Headline)
			if _, dup := seenHeadlines[headline]; dup {
				v.reject(&out, ReasonDuplicateHeadline, claim)
				continue
			}

			best, score, ok := v.bestChunk(claim, pool)
			if !ok || score <= 0 || best.Web.URI == "" {
				v.reject(&out, ReasonUngrounded, claim, zap.Int("best_score", score))
				continue
			}

			chunkHost := matching.CanonicalHostname(best.Web.URI)
			if !warnedRedirect && oracle.IsRedirect(best.Web.URI) {
				// Unresolved redirect links all share one host, so at most one
				// of them can survive the per-domain dedup.
				warnedRedirect = true
				v.Logger.Warn("Grounding chunk is an unresolved redirect; enable oracle.resolve_redirects to keep more than one signal",
					zap.String("uri", best.Web.URI),
					zap.String("headline", util.Truncate(claim.Headline, 120, true)),
				)
			}
			if checkWhitelist && !v.onWhitelist(chunkHost, opts.Whitelist) {
				v.reject(&out, ReasonOffWhitelist, claim, zap.String("chunk_host", chunkHost))
				continue
			}
			// The emitted URL is the chunk's, so its host must be unique too.
			if _, dup := seenHosts[chunkHost]; dup {
				v.reject(&out, ReasonDuplicateDomain, claim, zap.String("host", chunkHost))
				continue
			}

			seenHosts[claimHost] = struct{}{}
			seenHosts[chunkHost] = struct{}{}
			seenHeadlines[headline] = struct{}{}
			signal := v.accept(claim, best, opts.Region)
			metrics.RecordAccepted(v.Scorer.Classify(chunkHost))
			v.Logger.Debug("Claim verified",
				zap.String("headline", claim.Headline),
				zap.String("source", signal.SourceURL),
				zap.Int("match_score", score),
			)
			out.Signals = append(out.Signals, signal)
		}
	}
	return out
}

func (v *Verifier) withDefaults() *Verifier {
	c := *v
	if c.Scorer == nil {
		c.Scorer = matching.DefaultScorer()
	}
	if c.Confidence == nil {
		c.Confidence = DefaultConfidence()
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return &c
}

// bestChunk returns the highest scoring chunk; the first one wins ties.
func (v *Verifier) bestChunk(claim models.ClaimedSignal, pool []models.GroundingChunk) (models.GroundingChunk, int, bool) {
	var best models.GroundingChunk
	bestScore := 0
	found := false
	for _, chunk := range pool {
		s := v.Scorer.Score(claim, chunk)
		if !found || s > bestScore {
			best, bestScore, found = chunk, s, true
		}
	}
	return best, bestScore, found
}

func (v *Verifier) onWhitelist(host string, whitelist []string) bool {
	for _, site := range whitelist {
		if matching.HostMatchesSite(host, matching.NormalizeSite(site), v.Match) {
			return true
		}
	}
	return false
}

func (v *Verifier) accept(claim models.ClaimedSignal, chunk models.GroundingChunk, region string) models.MarketSignal {
	confidence := v.Confidence.Score(claim, chunk)
	products := claim.Products
	if products == nil {
		products = []string{}
	}
	return models.MarketSignal{
		ID:            v.NewID(),
		Headline:      claim.Headline,
		Summary:       claim.Summary,
		Importance:    claim.Importance,
		Products:      products,
		DecisionMaker: claim.DecisionMaker,
		Score:         confidence.Total,
		Urgency:       claim.Urgency,
		SourceURL:     chunk.Web.URI,
		SourceTitle:   chunk.Web.Title,
		SourceDomain:  matching.RegistrableDomain(chunk.Web.URI),
		Region:        region,
		Confidence:    confidence,
		Status:        models.StatusNew,
		DetectedAt:    v.Clock(),
	}
}

func (v *Verifier) reject(out *Outcome, reason Reason, claim models.ClaimedSignal, fields ...zap.Field) {
	out.Rejections[reason]++
	metrics.RecordRejection(string(reason))
	v.Logger.Debug("Claim rejected",
		append([]zap.Field{
			zap.String("reason", string(reason)),
			zap.String("headline", util.Truncate(claim.Headline, 120, true)),
			zap.String("claimed_url", claim.SourceURL),
		}, fields...)...,
	)
}

func normalizeHeadline(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
