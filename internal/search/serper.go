package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clawdia-sh/research-core/internal/errkind"
)

// Serper implements Provider against the primary JSON search API
// (google.serper.dev). It doubles as the concrete backend for the
// specialized news/shopping/places/images endpoints, which share the
// request/auth shape and differ only in path, result count, and response
// field names.
type Serper struct {
	APIKey     string
	HTTPClient *http.Client
	BaseURL    string // defaults to https://google.serper.dev
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) base() string {
	if strings.TrimSpace(s.BaseURL) != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return "https://google.serper.dev"
}

func (s *Serper) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Search performs the general-web endpoint.
func (s *Serper) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("serper: %w", errkind.ErrNoKey)
	}
	if limit <= 0 || limit > 8 {
		limit = 8
	}
	var body struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Date    string `json:"date"`
		} `json:"organic"`
	}
	if err := s.do(ctx, "/search", map[string]any{"q": query, "num": limit}, &body); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(body.Organic))
	for i, r := range body.Organic {
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

// SearchNews performs the /news endpoint (num defaults to 8).
func (s *Serper) SearchNews(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.specialized(ctx, "/news", query, limit, 8, SourceKindNews)
}

// SearchShopping performs the /shopping endpoint (num defaults to 10).
func (s *Serper) SearchShopping(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.specialized(ctx, "/shopping", query, limit, 10, SourceKindShopping)
}

// SearchPlaces performs the /places endpoint (num defaults to 5).
func (s *Serper) SearchPlaces(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.specialized(ctx, "/places", query, limit, 5, SourceKindPlaces)
}

// SearchImages performs the /images endpoint (num defaults to 6).
func (s *Serper) SearchImages(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.specialized(ctx, "/images", query, limit, 6, SourceKindImages)
}

func (s *Serper) specialized(ctx context.Context, path, query string, limit, defaultNum int, kind string) ([]Result, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("serper%s: %w", path, errkind.ErrNoKey)
	}
	num := defaultNum
	if limit > 0 {
		num = limit
	}
	var body struct {
		News []struct {
			Title, Link, Snippet, Date string
		} `json:"news"`
		Shopping []struct {
			Title, Link string
			Source      string `json:"source"`
		} `json:"shopping"`
		Places []struct {
			Title   string
			Address string `json:"address"`
			CID     string `json:"cid"`
		} `json:"places"`
		Images []struct {
			Title    string
			ImageURL string `json:"imageUrl"`
			Link     string `json:"link"`
		} `json:"images"`
	}
	if err := s.do(ctx, path, map[string]any{"q": query, "num": num}, &body); err != nil {
		return nil, err
	}
	var out []Result
	switch kind {
	case SourceKindNews:
		for i, r := range body.News {
			if r.Link == "" || r.Title == "" {
				continue
			}
			out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Date: r.Date, Source: s.Name(), SourceKind: kind, Rank: i + 1})
		}
	case SourceKindShopping:
		for i, r := range body.Shopping {
			if r.Link == "" || r.Title == "" {
				continue
			}
			out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Source, Source: s.Name(), SourceKind: kind, Rank: i + 1})
		}
	case SourceKindPlaces:
		for i, r := range body.Places {
			if r.Title == "" {
				continue
			}
			out = append(out, Result{Title: r.Title, URL: "https://www.google.com/maps?cid=" + r.CID, Snippet: r.Address, Source: s.Name(), SourceKind: kind, Rank: i + 1})
		}
	case SourceKindImages:
		for i, r := range body.Images {
			if r.ImageURL == "" {
				continue
			}
			out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.ImageURL, Source: s.Name(), SourceKind: kind, Rank: i + 1})
		}
	}
	if num > 0 && len(out) > num {
		out = out[:num]
	}
	return out, nil
}

func (s *Serper) do(ctx context.Context, path string, payload map[string]any, into any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serper%s: %w: %v", path, errkind.ErrParse, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base()+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.APIKey)
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("serper%s: %w: status %d", path, errkind.ErrHTTPStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("serper%s: %w: %v", path, errkind.ErrParse, err)
	}
	return nil
}
