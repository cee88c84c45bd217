package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/clawdia-sh/research-core/internal/errkind"
)

// Pool owns a bounded set of Views split into discovery and evidence
// categories. Views are pre-created by the caller (NewPool) and checked in
// and out through buffered channels that double as both the resource and
// its own semaphore.
type Pool struct {
	discovery chan View
	evidence  chan View

	softLoadTimeout time.Duration
	maxConcurrency  int
	compressorMax   int
}

// Options configures a Pool's soft timeouts and batch concurrency.
type Options struct {
	SoftLoadTimeout time.Duration // default 3s, per §4.E
	MaxConcurrency  int           // default 5, per §4.E
	CompressorMax   int           // default 6000 chars, per §4.E
}

// NewPool builds a pool from pre-constructed views. Slot counts equal
// len(discoveryViews)/len(evidenceViews).
func NewPool(discoveryViews, evidenceViews []View, opts Options) *Pool {
	d := make(chan View, len(discoveryViews))
	for _, v := range discoveryViews {
		d <- v
	}
	e := make(chan View, len(evidenceViews))
	for _, v := range evidenceViews {
		e <- v
	}
	if opts.SoftLoadTimeout <= 0 {
		opts.SoftLoadTimeout = 3 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 5
	}
	if opts.CompressorMax <= 0 {
		opts.CompressorMax = 6000
	}
	return &Pool{
		discovery:       d,
		evidence:        e,
		softLoadTimeout: opts.SoftLoadTimeout,
		maxConcurrency:  opts.MaxConcurrency,
		compressorMax:   opts.CompressorMax,
	}
}

func (p *Pool) chanFor(cat Category) chan View {
	if cat == CategoryDiscovery {
		return p.discovery
	}
	return p.evidence
}

// acquire blocks when every slot of the requested category is in use.
// There is no stealing across categories.
func (p *Pool) acquire(ctx context.Context, cat Category) (View, error) {
	select {
	case v := <-p.chanFor(cat):
		return v, nil
	case <-ctx.Done():
		return nil, errkind.ErrCancelled
	}
}

// release is guaranteed to run on every exit path from the pool's public
// operations, including panics recovered by the caller's defer chain.
func (p *Pool) release(cat Category, v View) {
	p.chanFor(cat) <- v
}

// softLoad loads url with a soft timeout: any load error, deadline exceeded
// or otherwise, is swallowed and the caller proceeds with whatever state the
// view holds,
// matching §4.E "a partial read is still returned if text is available".
func (p *Pool) softLoad(ctx context.Context, v View, rawURL string) {
	loadCtx, cancel := context.WithTimeout(ctx, p.softLoadTimeout)
	defer cancel()
	_ = v.LoadURL(loadCtx, rawURL)
}

// SearchGoogle acquires a discovery view, loads the Google SERP for query,
// evaluates the SERP-scraping script, and releases the view. It returns at
// most 4 entries per §4.E.
func (p *Pool) SearchGoogle(ctx context.Context, query string) ([]SerpItem, error) {
	v, err := p.acquire(ctx, CategoryDiscovery)
	if err != nil {
		return nil, err
	}
	defer p.release(CategoryDiscovery, v)

	serpURL := GoogleSERPURL(query)
	p.softLoad(ctx, v, serpURL)

	raw, err := v.EvalJS(ctx, ScriptScrapeSERP)
	if err != nil {
		return nil, fmt.Errorf("search_google: %w", err)
	}
	items, _ := raw.([]SerpItem)
	if len(items) > 4 {
		items = items[:4]
	}
	return items, nil
}

// GoogleSERPURL builds the Google SERP URL both the scrape fallback search
// backend and the page pool's search_google use, per spec §6.
func GoogleSERPURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query) + "&hl=en&num=5"
}

// FetchPageText acquires an evidence view, loads url, evaluates the
// body-text extraction script, and releases the view.
func (p *Pool) FetchPageText(ctx context.Context, rawURL string) (string, error) {
	v, err := p.acquire(ctx, CategoryEvidence)
	if err != nil {
		return "", err
	}
	defer p.release(CategoryEvidence, v)

	p.softLoad(ctx, v, rawURL)

	raw, err := v.EvalJS(ctx, ScriptBodyText)
	if err != nil {
		return "", fmt.Errorf("fetch_page_text: %w", err)
	}
	text, _ := raw.(string)
	return text, nil
}

// Execute runs up to 10 operations through a worker pool bounded by
// maxConcurrency. Each op resolves independently; the batch never aborts
// on a single op's failure.
func (p *Pool) Execute(ctx context.Context, ops []Op) []OpResult {
	if len(ops) > 10 {
		ops = ops[:10]
	}
	results := make([]OpResult, len(ops))
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(idx int, o Op) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = p.executeOne(ctx, o)
		}(i, op)
	}
	wg.Wait()
	return results
}

func (p *Pool) executeOne(ctx context.Context, op Op) OpResult {
	if op.Type != OpExtract {
		return OpResult{URL: op.URL, Err: fmt.Errorf("unsupported op type: %s", op.Type)}
	}
	v, err := p.acquire(ctx, CategoryEvidence)
	if err != nil {
		return OpResult{URL: op.URL, Err: err}
	}
	defer p.release(CategoryEvidence, v)

	p.softLoad(ctx, v, op.URL)
	raw, err := v.EvalJS(ctx, ScriptBodyText)
	if err != nil {
		return OpResult{URL: op.URL, Err: err}
	}
	text, _ := raw.(string)
	content, fragments := Compress(text, p.compressorMax)
	title := firstNonEmptyLine(text)
	return OpResult{URL: op.URL, Title: title, Content: content, Fragments: fragments}
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
