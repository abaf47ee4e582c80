package matching

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalHostname reduces a URL or bare domain to a lowercase host without
// "www." or port. Input that does not parse to a host is returned trimmed and
// lowercased so bare strings still take part in matching. So is input whose
// host only appears after percent-decoding, which keeps the result stable when
// fed back in.
func CanonicalHostname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" || strings.Contains(u.Host, "%") {
		return strings.ToLower(trimmed)
	}
	host := strings.ToLower(u.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for strings.HasPrefix(host, "www.") {
		host = host[len("www."):]
	}
	if host == "" {
		return strings.ToLower(trimmed)
	}
	return host
}

// RegistrableDomain returns the eTLD+1 of host ("news.example.com.au" →
// "example.com.au"), or host itself when it has no public suffix.
func RegistrableDomain(host string) string {
	host = CanonicalHostname(host)
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// NormalizeSite turns a configured site restriction into a bare domain:
// scheme, "www." and trailing slashes removed, lowercased.
func NormalizeSite(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

// MatchMode selects how a host is compared with a whitelisted site.
type MatchMode string

const (
	// MatchStrict accepts the site itself or any of its subdomains.
	MatchStrict MatchMode = "strict"
	// MatchSubstring accepts containment in either direction.
	MatchSubstring MatchMode = "substring"
)

// ParseMatchMode maps a config value to a MatchMode, defaulting to strict.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(strings.TrimSpace(s))) == MatchSubstring {
		return MatchSubstring
	}
	return MatchStrict
}

// HostMatchesSite reports whether host is covered by site under mode.
func HostMatchesSite(host, site string, mode MatchMode) bool {
	host = strings.ToLower(host)
	site = strings.ToLower(site)
	if host == "" || site == "" {
		return false
	}
	if mode == MatchSubstring {
		return strings.Contains(host, site) || strings.Contains(site, host)
	}
	return host == site || strings.HasSuffix(host, "."+site)
}
