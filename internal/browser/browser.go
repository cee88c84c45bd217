// Package browser implements the bounded-concurrency headless browser pool:
// two slot categories (discovery for SERP loads, evidence for article
// reads), a capability-style View interface the pool drives through
// navigate->eval->release, and a content compressor bounding what crosses
// into the page cache / LLM context.
package browser

import "context"

// Category is a page-pool slot category. Slots never steal across
// categories: a discovery acquire never draws from the evidence pool.
type Category string

const (
	CategoryDiscovery Category = "discovery"
	CategoryEvidence  Category = "evidence"
)

// Slot describes one page-pool slot's accounting state.
type Slot struct {
	SlotID   int
	Category Category
	InUse    bool
	OwnerTask string
}

// Well-known script identifiers passed to View.EvalJS. These are named
// capabilities, not literal JavaScript source, so both the chromedp-backed
// adapter and the HTTP+extract fallback adapter can honor the same
// contract without the fallback needing a JS engine.
const (
	ScriptScrapeSERP = "scrape_serp"
	ScriptBodyText   = "body_text"
)

// SerpItem is one organic result scraped from a loaded Google SERP.
type SerpItem struct {
	URL     string
	Title   string
	Snippet string
}

// View is the headless browser capability the research core consumes:
// acquire/release handles around navigate + in-page script evaluation.
type View interface {
	LoadURL(ctx context.Context, url string) error
	EvalJS(ctx context.Context, script string) (any, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// OpType enumerates the batch operations Pool.Execute accepts. Only
// OpExtract is required by the research core; the others are accepted so a
// richer View can serve them, but an adapter that can't honor one returns a
// per-op error without aborting the batch.
type OpType string

const (
	OpExtract          OpType = "extract"
	OpScreenshot       OpType = "screenshot"
	OpPDF              OpType = "pdf"
	OpInterceptNetwork OpType = "intercept_network"
)

// Op is one requested batch operation.
type Op struct {
	URL  string
	Type OpType
}

// Fragment is a semantic chunk of extracted page content.
type Fragment struct {
	Type string // headline | paragraph | quote | list
	Text string
}

// OpResult is the outcome of one Op. Exactly one of (Content non-empty,
// Err non-nil) holds for a resolved op; the pool never aborts the batch on
// a single op's failure.
type OpResult struct {
	URL       string
	Title     string
	Content   string
	Fragments []Fragment
	Err       error
}
