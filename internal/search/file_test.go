package search

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, results []Result) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.json")
	b, err := json.Marshal(results)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFileProvider_Search_MatchesByTitleSubstring(t *testing.T) {
	path := writeFixture(t, []Result{
		{Title: "Go concurrency patterns", URL: "https://example.com/go", Snippet: "goroutines and channels"},
		{Title: "Rust ownership", URL: "https://example.com/rust", Snippet: "borrow checker"},
	})
	f := &FileProvider{Path: path}
	got, err := f.Search(context.Background(), "go", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://example.com/go" {
		t.Fatalf("expected the go result only, got %+v", got)
	}
	if got[0].Source != "file" {
		t.Fatalf("expected Source to be tagged 'file', got %q", got[0].Source)
	}
}

func TestFileProvider_Search_EmptyQueryReturnsAllUpToLimit(t *testing.T) {
	path := writeFixture(t, []Result{
		{Title: "A", URL: "https://example.com/a", Snippet: "a"},
		{Title: "B", URL: "https://example.com/b", Snippet: "b"},
		{Title: "C", URL: "https://example.com/c", Snippet: "c"},
	})
	f := &FileProvider{Path: path}
	got, err := f.Search(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit of 2 results, got %d", len(got))
	}
}

func TestFileProvider_Search_AppliesDenylist(t *testing.T) {
	path := writeFixture(t, []Result{
		{Title: "blocked example", URL: "https://blocked.example/go", Snippet: "go"},
		{Title: "allowed example", URL: "https://ok.example/go", Snippet: "go"},
	})
	f := &FileProvider{Path: path, Policy: DomainPolicy{Denylist: []string{"blocked.example"}}}
	got, err := f.Search(context.Background(), "go", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://ok.example/go" {
		t.Fatalf("expected the denylisted host to be filtered out, got %+v", got)
	}
}

func TestFileProvider_Search_MissingPathErrors(t *testing.T) {
	f := &FileProvider{}
	if _, err := f.Search(context.Background(), "go", 10); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
