package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clawdia-sh/research-core/internal/cache"
)

func TestHTTPFallbackView_LoadURLAndExtractBodyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>Hello from the fallback view.</p></body></html>"))
	}))
	defer srv.Close()

	v := &HTTPFallbackView{UserAgent: "research-core-test"}
	if err := v.LoadURL(context.Background(), srv.URL); err != nil {
		t.Fatalf("LoadURL: %v", err)
	}

	text, err := v.EvalJS(context.Background(), ScriptBodyText)
	if err != nil {
		t.Fatalf("EvalJS: %v", err)
	}
	if s, ok := text.(string); !ok || s == "" {
		t.Fatalf("expected non-empty extracted text, got %v", text)
	}
}

func TestHTTPFallbackView_RetriesTransientServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>recovered</body></html>"))
	}))
	defer srv.Close()

	v := &HTTPFallbackView{}
	v.client().MaxAttempts = 2
	if err := v.LoadURL(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected the second attempt to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestHTTPFallbackView_RejectsNonHTMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	v := &HTTPFallbackView{}
	if err := v.LoadURL(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected non-HTML content type to be rejected")
	}
}

func TestHTTPFallbackView_MaxCacheAgePropagatesToFetchClient(t *testing.T) {
	var calls int
	etag := `"v1"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") != "" {
			t.Fatalf("expected a stale cache entry to skip conditional headers entirely")
		}
		_, _ = w.Write([]byte("<html><body>v" + http.StatusText(200) + "</body></html>"))
	}))
	defer srv.Close()

	v := &HTTPFallbackView{Cache: &cache.HTTPCache{Dir: t.TempDir()}, MaxCacheAge: time.Millisecond}
	if err := v.LoadURL(context.Background(), srv.URL); err != nil {
		t.Fatalf("first LoadURL: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := v.LoadURL(context.Background(), srv.URL); err != nil {
		t.Fatalf("second LoadURL: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 full fetches once the cache entry went stale, got %d", calls)
	}
}
