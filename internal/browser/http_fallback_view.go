package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/clawdia-sh/research-core/internal/cache"
	"github.com/clawdia-sh/research-core/internal/extract"
	"github.com/clawdia-sh/research-core/internal/fetch"
)

// HTTPFallbackView is a browser.View adapter usable in environments without
// a real browser: it issues a retrying, scheme-validated HTTP GET via
// internal/fetch and, instead of executing JavaScript, extracts page text
// from the returned HTML with internal/extract and SERP items with a direct
// golang.org/x/net/html walk (scrapeSERPFromHTML). It honors the same two
// named scripts ChromedpView does.
type HTTPFallbackView struct {
	HTTPClient *http.Client
	UserAgent  string
	// Cache, when set, persists fetched bodies on disk and revalidates with
	// conditional GETs on subsequent loads of the same URL.
	Cache *cache.HTTPCache
	// MaxCacheAge bounds how long a cached page may be served without a
	// full refetch; see fetch.Client.MaxCacheAge.
	MaxCacheAge time.Duration

	fetcher  *fetch.Client
	lastBody []byte
}

func (h *HTTPFallbackView) client() *fetch.Client {
	if h.fetcher == nil {
		h.fetcher = &fetch.Client{
			HTTPClient:        h.HTTPClient,
			UserAgent:         h.UserAgent,
			Cache:             h.Cache,
			MaxCacheAge:       h.MaxCacheAge,
			MaxAttempts:       3,
			PerRequestTimeout: 10 * time.Second,
			MaxConcurrent:     4,
		}
	}
	return h.fetcher
}

func (h *HTTPFallbackView) LoadURL(ctx context.Context, rawURL string) error {
	body, _, err := h.client().Get(ctx, rawURL)
	if err != nil {
		return err
	}
	h.lastBody = body
	return nil
}

func (h *HTTPFallbackView) EvalJS(ctx context.Context, script string) (any, error) {
	switch script {
	case ScriptScrapeSERP:
		return scrapeSERPFromHTML(h.lastBody), nil
	case ScriptBodyText:
		doc := extract.FromHTML(h.lastBody)
		return doc.Text, nil
	default:
		return nil, fmt.Errorf("http fallback view: unsupported script %q", script)
	}
}

func (h *HTTPFallbackView) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("http fallback view: screenshot unsupported")
}

func (h *HTTPFallbackView) Close() error { return nil }

// scrapeSERPFromHTML walks raw Google SERP HTML for result anchors shaped
// "/url?q=<target>&..." or with an absolute "http..." href, pairing each
// with its link text as title, up to 4 items. Snippet
// extraction is not attempted here since Google's snippet markup is
// unstable across locales; callers relying on snippets should prefer a
// real browser adapter.
func scrapeSERPFromHTML(body []byte) []SerpItem {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}
	var out []SerpItem
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= 4 {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if target := googleRedirectTarget(href); target != "" {
				title := strings.TrimSpace(textContent(n))
				if title != "" {
					out = append(out, SerpItem{URL: target, Title: title})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func googleRedirectTarget(href string) string {
	if !strings.HasPrefix(href, "/url?") {
		if strings.HasPrefix(href, "http") {
			return href
		}
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("q")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
