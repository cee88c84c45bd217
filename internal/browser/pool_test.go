package browser

import (
	"context"
	"testing"
	"time"
)

// fakeView is an in-memory View used to test Pool's slot accounting and
// batch execution without a real browser.
type fakeView struct {
	id       int
	loadedAt []string
	text     string
	serp     []SerpItem
}

func (f *fakeView) LoadURL(ctx context.Context, url string) error {
	f.loadedAt = append(f.loadedAt, url)
	return nil
}

func (f *fakeView) EvalJS(ctx context.Context, script string) (any, error) {
	switch script {
	case ScriptScrapeSERP:
		return f.serp, nil
	case ScriptBodyText:
		return f.text, nil
	}
	return nil, nil
}

func (f *fakeView) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (f *fakeView) Close() error                                  { return nil }

func TestPool_SearchGoogle_CapsAtFour(t *testing.T) {
	v := &fakeView{serp: []SerpItem{
		{URL: "a"}, {URL: "b"}, {URL: "c"}, {URL: "d"}, {URL: "e"},
	}}
	p := NewPool([]View{v}, nil, Options{})
	items, err := p.SearchGoogle(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
}

func TestPool_FetchPageText(t *testing.T) {
	v := &fakeView{text: "hello world"}
	p := NewPool(nil, []View{v}, Options{})
	text, err := p.FetchPageText(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected 'hello world', got %q", text)
	}
}

func TestPool_AcquireBlocksWhenSlotsExhausted(t *testing.T) {
	v := &fakeView{text: "x"}
	p := NewPool(nil, []View{v}, Options{})
	ctx := context.Background()

	held, err := p.acquire(ctx, CategoryEvidence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = p.acquire(timeoutCtx, CategoryEvidence)
	if err == nil {
		t.Fatalf("expected acquire to block until cancellation, but it returned")
	}

	p.release(CategoryEvidence, held)
}

func TestPool_Execute_DoesNotAbortOnSingleFailure(t *testing.T) {
	v := &fakeView{text: "some content"}
	p := NewPool(nil, []View{v}, Options{MaxConcurrency: 2})
	results := p.Execute(context.Background(), []Op{
		{URL: "https://a.example", Type: OpExtract},
		{URL: "https://b.example", Type: OpScreenshot},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Err == nil {
		t.Fatalf("expected unsupported-op error for screenshot")
	}
}

func TestCompress_BoundsLengthAtParagraphBoundary(t *testing.T) {
	text := "Para one.\n\nPara two is a bit longer than the first.\n\nPara three."
	out, fragments := Compress(text, 20)
	if len(out) > 30 { // allow for the truncation marker
		t.Fatalf("expected compression near the limit, got %d chars: %q", len(out), out)
	}
	if len(fragments) == 0 {
		t.Fatalf("expected at least one fragment")
	}
}
