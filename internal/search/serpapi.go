package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clawdia-sh/research-core/internal/errkind"
)

// SerpAPI implements Provider against the secondary JSON search API
// (serpapi.com/search.json), the consensus engine's default "secondary"
// partner for Serper.
type SerpAPI struct {
	APIKey     string
	HTTPClient *http.Client
	BaseURL    string // defaults to https://serpapi.com
}

func (s *SerpAPI) Name() string { return "serpapi" }

func (s *SerpAPI) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (s *SerpAPI) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("serpapi: %w", errkind.ErrNoKey)
	}
	if limit <= 0 || limit > 8 {
		limit = 8
	}
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = "https://serpapi.com"
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("engine", "google")
	q.Set("num", strconv.Itoa(limit))
	q.Set("api_key", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("serpapi: %w: status %d", errkind.ErrHTTPStatus, resp.StatusCode)
	}
	var body struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Date    string `json:"date"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("serpapi: %w: %v", errkind.ErrParse, err)
	}
	out := make([]Result, 0, len(body.OrganicResults))
	for i, r := range body.OrganicResults {
		if r.Link == "" || r.Title == "" {
			continue
		}
		out = append(out, Result{
			Title: strings.TrimSpace(r.Title), URL: strings.TrimSpace(r.Link),
			Snippet: strings.TrimSpace(r.Snippet), Source: s.Name(),
			SourceKind: SourceKindWeb, Rank: i + 1, Date: r.Date,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
