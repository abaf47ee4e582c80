package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("The NEW Excavator tender: Council awards $4m excavator contract (NSW)")
	assert.Equal(t, []string{"excavator", "tender", "council", "awards", "contract"}, got)

	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("a an of to in at"))
	assert.Equal(t, []string{"mining", "2026"}, ExtractKeywords("mining-2026 ... Mining"))
}

func TestSharedKeywords(t *testing.T) {
	assert.Equal(t, 2, SharedKeywords("Excavator tender released", "Council excavator TENDER"))
	assert.Equal(t, 0, SharedKeywords("", "anything here"))
	assert.Equal(t, 0, SharedKeywords("the and for", "the and for"))
}

func TestCanonicalHostname(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/path?q=1":  "example.com",
		"  example.com/news  ":              "example.com",
		"http://tenders.nsw.gov.au:8443/x":  "tenders.nsw.gov.au",
		"WWW.ABC.NET.AU":                    "abc.net.au",
		"https://user@www.www.example.org/": "example.org",
		"not a url":                         "not a url",
		"":                                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalHostname(in), "input %q", in)
	}
}

func TestCanonicalHostnameIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.example.com", "example.com", "WWW.WWW.Example.COM:80",
		"ftp://files.example.net/a/b", "not a url", "http://", "://broken",
		"www.", "foo.com:abc", "  Spaced.Example.com  ",
		"https://münchen.de/", "%zz", "tenders.nsw.gov.au/",
		"%2525?..",
	}
	for _, in := range inputs {
		once := CanonicalHostname(in)
		assert.Equal(t, once, CanonicalHostname(once), "input %q", in)
	}
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com.au", RegistrableDomain("https://news.example.com.au/a"))
	assert.Equal(t, "localhost", RegistrableDomain("localhost"))
}

func TestNormalizeSite(t *testing.T) {
	assert.Equal(t, "tenders.nsw.gov.au", NormalizeSite(" HTTPS://www.tenders.nsw.gov.au/ "))
	assert.Equal(t, "example.com", NormalizeSite("example.com//"))
}

func TestHostMatchesSite(t *testing.T) {
	site := "tenders.nsw.gov.au"

	assert.True(t, HostMatchesSite("tenders.nsw.gov.au", site, MatchStrict))
	assert.True(t, HostMatchesSite("buy.tenders.nsw.gov.au", site, MatchStrict))
	assert.False(t, HostMatchesSite("x-tenders.nsw.gov.au.evil.com", site, MatchStrict))
	assert.False(t, HostMatchesSite("nsw.gov.au", site, MatchStrict))

	assert.True(t, HostMatchesSite("x-tenders.nsw.gov.au.evil.com", site, MatchSubstring))
	assert.True(t, HostMatchesSite("nsw.gov.au", site, MatchSubstring))
	assert.False(t, HostMatchesSite("competitor-blog.com", site, MatchSubstring))

	assert.False(t, HostMatchesSite("", site, MatchSubstring))
}

func TestParseMatchMode(t *testing.T) {
	assert.Equal(t, MatchSubstring, ParseMatchMode(" Substring "))
	assert.Equal(t, MatchStrict, ParseMatchMode(""))
	assert.Equal(t, MatchStrict, ParseMatchMode("bogus"))
}

func TestScoreTerms(t *testing.T) {
	s := DefaultScorer()
	claim := models.ClaimedSignal{
		Headline:    "Council excavator tender",
		SourceTitle: "Excavator tender opens",
		SourceURL:   "https://www.example.com/story",
	}

	lexical := s.Score(claim, models.GroundingChunk{Web: models.WebChunk{
		URI: "https://elsewhere.org/a", Title: "Excavator tender opens today",
	}})
	// source title shares excavator, tender, opens; headline shares excavator, tender
	assert.Equal(t, 3*15+2*10, lexical)

	gov := s.Score(claim, models.GroundingChunk{Web: models.WebChunk{URI: "https://tenders.nsw.gov.au/x"}})
	assert.Equal(t, 20, gov)

	news := s.Score(claim, models.GroundingChunk{Web: models.WebChunk{URI: "https://www.abc.net.au/news/1"}})
	assert.Equal(t, 10, news)

	agg := s.Score(claim, models.GroundingChunk{Web: models.WebChunk{URI: "https://www.tenderlink.com/l/1"}})
	assert.Equal(t, -5, agg)
}

func TestScoreExactHostAddsForty(t *testing.T) {
	s := DefaultScorer()
	chunk := models.GroundingChunk{Web: models.WebChunk{
		URI: "https://example.com/article", Title: "Mine expansion approved",
	}}
	base := models.ClaimedSignal{Headline: "Mine expansion approved", SourceTitle: "Mine expansion", SourceURL: "https://other.org/a"}
	exact := base
	exact.SourceURL = "https://www.example.com/different-path"

	assert.Equal(t, s.Score(base, chunk)+40, s.Score(exact, chunk))
}

func TestParseCredibility(t *testing.T) {
	s, err := ParseCredibility([]byte(`
weights:
  exact_host: 50
news_domains: [example-news.com]
`))
	require.NoError(t, err)
	assert.Equal(t, 50, s.Weights.ExactHost)
	assert.Equal(t, 15, s.Weights.SourceTitleKeyword)
	assert.Equal(t, []string{"example-news.com"}, s.Domains.News)
	assert.Equal(t, DefaultDomainLists().Aggregators, s.Domains.Aggregators)

	_, err = ParseCredibility([]byte("weights: [1, 2"))
	assert.Error(t, err)
}

func TestLoadCredibility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credibility.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aggregator_domains: []\n"), 0o600))

	s, err := LoadCredibility(path)
	require.NoError(t, err)
	assert.Empty(t, s.Domains.Aggregators)

	_, err = LoadCredibility(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	s := DefaultScorer()
	for host, want := range map[string]string{
		"tenders.nsw.gov.au": "government",
		"beehive.govt.nz":    "government",
		"abc.net.au":         "news",
		"tenderlink.com":     "aggregator",
		"shirehire.com.au":   "other",
	} {
		assert.Equal(t, want, s.Classify(host), host)
	}
}
