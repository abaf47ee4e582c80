package matching

import (
	"strings"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

// Weights are the additive terms of a claim-to-chunk score.
type Weights struct {
	SourceTitleKeyword int `yaml:"source_title_keyword"`
	HeadlineKeyword    int `yaml:"headline_keyword"`
	ExactHost          int `yaml:"exact_host"`
	Government         int `yaml:"government"`
	News               int `yaml:"news"`
	Aggregator         int `yaml:"aggregator"`
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		SourceTitleKeyword: 15,
		HeadlineKeyword:    10,
		ExactHost:          40,
		Government:         20,
		News:               10,
		Aggregator:         -5,
	}
}

// DomainLists name the hosts that earn the news bonus or the aggregator
// penalty. Entries match by substring of the chunk hostname.
type DomainLists struct {
	News        []string `yaml:"news_domains"`
	Aggregators []string `yaml:"aggregator_domains"`
}

// DefaultDomainLists returns the built-in reputable news and tender
// aggregator domains.
func DefaultDomainLists() DomainLists {
	return DomainLists{
		News: []string{
			"abc.net.au", "smh.com.au", "afr.com", "theaustralian.com.au",
			"theage.com.au", "news.com.au", "reuters.com", "bloomberg.com",
			"theguardian.com", "itnews.com.au",
		},
		Aggregators: []string{
			"tenders.net", "tenderlink.com", "australiantenders.com.au",
			"tendersearch.com.au", "tendersinfo.com", "bidnet.com",
		},
	}
}

// Scorer rates how well a grounding chunk supports a claimed signal.
type Scorer struct {
	Weights Weights
	Domains DomainLists
}

// DefaultScorer returns a scorer with the default weights and domain lists.
func DefaultScorer() *Scorer {
	return &Scorer{Weights: DefaultWeights(), Domains: DefaultDomainLists()}
}

// Score sums lexical, exact-host and domain-authority evidence. The result
// can be negative; callers decide the acceptance floor.
func (s *Scorer) Score(claim models.ClaimedSignal, chunk models.GroundingChunk) int {
	w := s.Weights
	score := SharedKeywords(claim.SourceTitle, chunk.Web.Title) * w.SourceTitleKeyword
	score += SharedKeywords(claim.Headline, chunk.Web.Title) * w.HeadlineKeyword

	host := CanonicalHostname(chunk.Web.URI)
	if CanonicalHostname(claim.SourceURL) == host {
		score += w.ExactHost
	}
	if isGovernment(host) {
		score += w.Government
	}
	if containsAny(host, s.Domains.News) {
		score += w.News
	}
	if containsAny(host, s.Domains.Aggregators) {
		score += w.Aggregator
	}
	return score
}

func isGovernment(host string) bool {
	return strings.Contains(host, ".gov") || strings.Contains(host, ".govt")
}

func containsAny(host string, domains []string) bool {
	for _, d := range domains {
		if d != "" && strings.Contains(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

// Classify labels a chunk hostname as government, news, aggregator or other.
func (s *Scorer) Classify(host string) string {
	switch {
	case isGovernment(host):
		return "government"
	case containsAny(host, s.Domains.News):
		return "news"
	case containsAny(host, s.Domains.Aggregators):
		return "aggregator"
	default:
		return "other"
	}
}
