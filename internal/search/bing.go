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

// Bing implements Provider against the Bing Web Search API, used as the
// paid web-search fallback when neither Serper nor SerpAPI is available or
// configured.
type Bing struct {
	APIKey     string
	HTTPClient *http.Client
	BaseURL    string // defaults to https://api.bing.microsoft.com
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) client() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (b *Bing) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, fmt.Errorf("bing: %w", errkind.ErrNoKey)
	}
	if limit <= 0 || limit > 8 {
		limit = 8
	}
	base := strings.TrimRight(b.BaseURL, "/")
	if base == "" {
		base = "https://api.bing.microsoft.com"
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v7.0/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.APIKey)
	resp, err := b.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bing: %w: status %d", errkind.ErrHTTPStatus, resp.StatusCode)
	}
	var body struct {
		WebPages struct {
			Value []struct {
				Name    string `json:"name"`
				URL     string `json:"url"`
				Snippet string `json:"snippet"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("bing: %w: %v", errkind.ErrParse, err)
	}
	out := make([]Result, 0, len(body.WebPages.Value))
	for i, r := range body.WebPages.Value {
		if r.URL == "" || r.Name == "" {
			continue
		}
		out = append(out, Result{
			Title: strings.TrimSpace(r.Name), URL: strings.TrimSpace(r.URL),
			Snippet: strings.TrimSpace(r.Snippet), Source: b.Name(),
			SourceKind: SourceKindWeb, Rank: i + 1,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
