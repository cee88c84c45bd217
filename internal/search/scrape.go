package search

import (
	"context"
	"strings"

	"github.com/clawdia-sh/research-core/internal/browser"
)

// ScrapeFallback implements Provider by driving the browser pool's
// search_google operation directly, for use when no search-provider API key
// is configured (spec §4.B backend 4).
type ScrapeFallback struct {
	Pool *browser.Pool
}

func (s *ScrapeFallback) Name() string { return "scrape" }

func (s *ScrapeFallback) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	items, err := s.Pool.SearchGoogle(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.URL) == "" {
			continue
		}
		out = append(out, Result{
			Title: it.Title, URL: it.URL, Snippet: it.Snippet,
			Source: s.Name(), SourceKind: SourceKindWeb, Rank: i + 1,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
