// Package search implements the pluggable search backend set: a uniform
// Provider contract over three heterogeneous external APIs (Serper, SerpAPI,
// Bing), a browser scrape fallback and a local JSON-file provider,
// rate-limited and ticked through internal/ratelimit by
// the consensus engine that calls them.
package search

import (
	"context"
	"net/url"
	"strings"
)

// Result represents a single search hit from any provider. URL is absolute
// HTTP(S) when eligible for fetch; a SERP-only preview row instead carries
// SourceKind == "search_results" and is never fetched.
type Result struct {
	Title      string
	URL        string
	Snippet    string
	Source     string // provider name, for observability
	SourceKind string // e.g. "web", "news", "shopping", "places", "images", "search_results"
	Rank       int
	Date       string
}

// SourceKind values.
const (
	SourceKindWeb          = "web"
	SourceKindNews         = "news"
	SourceKindShopping     = "shopping"
	SourceKindPlaces       = "places"
	SourceKindImages       = "images"
	SourceKindSearchResult = "search_results"
)

// Provider is the uniform contract every search backend implements:
// query -> {results, source_tag}. An empty Result slice is not an error;
// callers decide what to do with zero hits.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// DomainPolicy allows providers to filter results/requests by host.
// Denylist takes precedence over Allowlist.
type DomainPolicy struct {
	Allowlist []string
	Denylist  []string
}

// isDomainBlocked reports whether rawURL's host is excluded by policy: a
// Denylist match always blocks; a non-empty Allowlist blocks anything not
// on it.
func isDomainBlocked(rawURL string, allowlist, denylist []string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return true, "invalid url"
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range denylist {
		if hostMatches(host, d) {
			return true, "denylisted: " + d
		}
	}
	if len(allowlist) == 0 {
		return false, ""
	}
	for _, a := range allowlist {
		if hostMatches(host, a) {
			return false, ""
		}
	}
	return true, "not in allowlist"
}

func hostMatches(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
