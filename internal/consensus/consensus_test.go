package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clawdia-sh/research-core/internal/search"
	"github.com/clawdia-sh/research-core/internal/searchcache"
)

func newTestCache() *searchcache.Cache { return searchcache.New(10) }

type stubProvider struct {
	name    string
	results []search.Result
	err     error
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// Scenario 4: two backends return snippets containing "$19.99/mo"; consensus
// must return confidence=high with consensus_text containing "$19.99".
func TestQuery_NumericConsensus_HighConfidence(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []search.Result{
		{Title: "A", URL: "https://a.example", Snippet: "The plan is priced at $19.99/mo for members."},
	}}
	secondary := &stubProvider{name: "secondary", results: []search.Result{
		{Title: "B", URL: "https://b.example", Snippet: "Reports list the cost as $19.99/mo currently."},
	}}
	e := &Engine{Backends: []search.Provider{primary, secondary}}
	res, err := e.Query(context.Background(), "plan price", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %v", res.Confidence)
	}
	if !contains(res.ConsensusText, "$19.99") {
		t.Fatalf("expected consensus text to contain $19.99, got %q", res.ConsensusText)
	}
}

func TestQuery_OnlyPrimarySucceeds_MediumConfidence(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []search.Result{
		{Title: "A", URL: "https://a.example", Snippet: "Some unrelated content here."},
	}}
	secondary := &stubProvider{name: "secondary", err: errors.New("boom")}
	e := &Engine{Backends: []search.Provider{primary, secondary}}
	res, err := e.Query(context.Background(), "q", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confidence != ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %v", res.Confidence)
	}
	if res.Source != "p" {
		t.Fatalf("expected source 'p', got %q", res.Source)
	}
}

func TestQuery_PrimaryFails_FallsBackSequentially(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("also down")}
	tertiary := &stubProvider{name: "tertiary", results: []search.Result{
		{Title: "C", URL: "https://c.example", Snippet: "Fallback content."},
	}}
	e := &Engine{Backends: []search.Provider{primary, secondary, tertiary}}
	res, err := e.Query(context.Background(), "q", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confidence != ConfidenceLow {
		t.Fatalf("expected low confidence, got %v", res.Confidence)
	}
	if res.Source != "tertiary" {
		t.Fatalf("expected source 'tertiary', got %q", res.Source)
	}
}

func TestQuery_AllBackendsFail_ReturnsEmptyError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("down")}
	e := &Engine{Backends: []search.Provider{primary, secondary}}
	_, err := e.Query(context.Background(), "q", 5, time.Minute)
	if err == nil {
		t.Fatalf("expected an error when all backends fail")
	}
}

func TestQuery_CachesAcrossCalls(t *testing.T) {
	calls := 0
	primary := &countingProvider{name: "primary", calls: &calls, results: []search.Result{{Title: "A", URL: "https://a.example", Snippet: "x"}}}
	e := &Engine{Backends: []search.Provider{primary}, Cache: newTestCache()}
	ctx := context.Background()
	if _, err := e.Query(ctx, "Same Query", 5, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Query(ctx, "same   query", 5, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit to avoid a second backend call, got %d calls", calls)
	}
}

type countingProvider struct {
	name    string
	calls   *int
	results []search.Result
}

func (c *countingProvider) Name() string { return c.name }
func (c *countingProvider) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	*c.calls++
	return c.results, nil
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
