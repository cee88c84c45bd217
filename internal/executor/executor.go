// Package executor implements the research executor of spec §4.J: it
// drives a queue of planned actions through the Page Pool, tracks
// per-criterion coverage, evaluates the synthesis gate, and runs at most
// one follow-up round before returning a final result.
package executor

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clawdia-sh/research-core/internal/aggregate"
	"github.com/clawdia-sh/research-core/internal/browser"
	"github.com/clawdia-sh/research-core/internal/budget"
	"github.com/clawdia-sh/research-core/internal/followup"
	"github.com/clawdia-sh/research-core/internal/planner"
	"github.com/clawdia-sh/research-core/internal/router"
	"github.com/clawdia-sh/research-core/internal/search"
	selecter "github.com/clawdia-sh/research-core/internal/select"
)

// PageStore is the subset of pagecache.Store the executor uses to persist
// fetched bodies as it visits them, per spec §2's control flow ("visits
// top results via E, stores bodies in F"). Optional: a nil PageStore on
// Executor simply skips caching.
type PageStore interface {
	StorePage(ctx context.Context, url, title, content, contentType string, fetchedAt time.Time) (string, error)
}

// Tier is the A/B/C/D ordinal trust ranking of spec §3.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// ExecutionStatus is the per-action outcome of spec §4.J.
type ExecutionStatus string

const (
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
	StatusDiscarded ExecutionStatus = "discarded"
)

// SourcePreview is the source preview / evidence record of spec §3.
type SourcePreview struct {
	SourceID                 string
	URL                      string
	Host                     string
	Title                    string
	Snippet                  string
	SourceKind               string
	SourceTier               Tier
	EligibleForSynthesis     bool
	EligibleForPrimaryClaims bool
	DiscardReason            string
}

// ActionResult is execute_action's return value, spec §4.J.
type ActionResult struct {
	Status          string
	Previews        []SourcePreview
	Evidence        []SourcePreview
	VisitedLinks    []string
	ExecutionStatus ExecutionStatus
	Reason          string
}

// GateStatus is the synthesis-readiness verdict, spec §4.J.
type GateStatus struct {
	Eligible      bool
	EligibleCount int
	HostCount     int
	HasPrimary    bool
	Reasons       []string
}

// ProgressEvent is emitted once per dequeued action, plus a final
// checkpoint event after the loop ends.
type ProgressEvent struct {
	ActionID   string
	Result     ActionResult
	Gate       GateStatus
	Checkpoint bool
}

// Result is Run's final return value, spec §4.J step 5.
type Result struct {
	Results                 []ActionResult
	GateStatus              GateStatus
	MissingCriteria         []string
	Sources                 map[string]SourcePreview
	EstimatedEvidenceTokens int
}

// minEligibleSources and minEligibleHosts are the gate thresholds named in
// spec §4.J ("Need at least two eligible sources", "Need at least two
// hosts").
const (
	minEligibleSources = 2
	minEligibleHosts   = 2
	minSynthesisChars  = 500
	maxSnippetChars    = 300
)

// Executor runs a single logical research task against a Page Pool. Two
// concurrent executions must not share an Executor, per spec §5.
type Executor struct {
	Pool   *browser.Pool
	Domain router.Domain
	// Pages, when set, receives every successfully fetched page body for
	// content-addressed persistence, per spec's Page Cache (component F).
	Pages PageStore

	// ModelName sizes the evidence token budget against a downstream
	// synthesis model's context window (internal/budget). Empty falls back
	// to budget.ModelContextTokens's conservative default.
	ModelName string

	coverageKeywords map[string][]string
	coverageHits     map[string]map[string]struct{}
	sourceMap        map[string]SourcePreview
	followUpRound    int

	serpHistory   [][]search.Result
	visitedURLs   map[string]struct{}
	evidenceChars int
}

// Run executes spec's TaskSpec through the full protocol of §4.J,
// emitting a ProgressEvent per dequeued action (and a final checkpoint
// event) on progress. progress is never closed by Run; the caller owns it.
func (e *Executor) Run(ctx context.Context, spec planner.TaskSpec, progress chan<- ProgressEvent) Result {
	e.reset(spec.SuccessCriteria)

	queue := make([]planner.Action, len(spec.PlannedActions))
	copy(queue, spec.PlannedActions)

	var results []ActionResult
	budgetUsed := len(spec.PlannedActions)

	for len(queue) > 0 {
		action := queue[0]
		queue = queue[1:]

		res := e.executeAction(ctx, action)
		results = append(results, res)
		e.recordPreviews(res)
		e.updateCoverage(res)

		gate := e.evaluateGate()
		if progress != nil {
			progress <- ProgressEvent{ActionID: action.ID, Result: res, Gate: gate}
		}

		if len(queue) == 0 && e.followUpRound == 0 {
			missing := e.missingCriteria()
			remaining := spec.Budget.MaxActions - budgetUsed
			withinTokenBudget := budget.FitsInContext(e.ModelName, 0, budget.EstimateTokensFromChars(e.evidenceChars))
			if !withinTokenBudget {
				log.Warn().Str("model", e.ModelName).Int("evidence_chars", e.evidenceChars).
					Msg("evidence already fills the model's context budget; skipping follow-up round")
			}
			if (len(missing) > 0 || !gate.Eligible) && remaining > 0 && withinTokenBudget {
				limit := remaining
				if limit > 2 {
					limit = 2
				}
				existingHosts := e.knownHosts()
				queries := followup.BuildFollowUpQueries(spec.Domain, missing, existingHosts, limit)
				for i, q := range queries {
					queue = append(queue, planner.Action{
						ID:       fmt.Sprintf("followup-%d", i+1),
						Type:     "search",
						Source:   "google",
						Query:    q,
						Priority: 1,
					})
				}
				budgetUsed += len(queue)
				e.followUpRound = 1
			}
		}
	}

	finalGate := e.evaluateGate()
	missing := e.missingCriteria()
	if progress != nil {
		progress <- ProgressEvent{Checkpoint: true, Gate: finalGate}
	}

	return Result{
		Results:                 results,
		GateStatus:              finalGate,
		MissingCriteria:         missing,
		Sources:                 e.sourceMap,
		EstimatedEvidenceTokens: budget.EstimateTokensFromChars(e.evidenceChars),
	}
}

func (e *Executor) reset(criteria []string) {
	e.coverageKeywords = make(map[string][]string, len(criteria))
	e.coverageHits = make(map[string]map[string]struct{}, len(criteria))
	for _, c := range criteria {
		e.coverageKeywords[c] = followup.DeriveCriterionKeywords(e.Domain, c)
		e.coverageHits[c] = make(map[string]struct{})
	}
	e.sourceMap = make(map[string]SourcePreview)
	e.followUpRound = 0
	e.serpHistory = nil
	e.visitedURLs = make(map[string]struct{})
	e.evidenceChars = 0
}

// executeAction runs Page Pool search_google then fetch_page_text over up
// to 3 result URLs, per spec §4.J.
func (e *Executor) executeAction(ctx context.Context, action planner.Action) ActionResult {
	serpURL := browser.GoogleSERPURL(action.Query)
	running := SourcePreview{
		SourceID:   sourceIDForURL(serpURL),
		URL:        serpURL,
		Host:       hostOf(serpURL),
		Title:      action.Query,
		SourceKind: "search_results",
	}

	items, err := e.Pool.SearchGoogle(ctx, action.Query)
	if err != nil {
		return ActionResult{
			Status:          "failed",
			Previews:        []SourcePreview{running},
			ExecutionStatus: StatusFailed,
			Reason:          err.Error(),
		}
	}

	previews := []SourcePreview{running}
	var evidence []SourcePreview
	var visited []string

	// Fold this round's SERP items into the cross-action history and
	// de-dupe/normalize against everything seen so far (internal/aggregate),
	// so a follow-up round doesn't re-surface a URL a prior round already
	// visited under a different query.
	round := make([]search.Result, 0, len(items))
	for _, it := range items {
		round = append(round, search.Result{URL: it.URL, Title: it.Title, Snippet: it.Snippet, SourceKind: "search_results"})
	}
	e.serpHistory = append(e.serpHistory, round)
	merged := aggregate.MergeAndNormalize(e.serpHistory)

	fresh := make([]search.Result, 0, len(merged))
	for _, r := range merged {
		if _, done := e.visitedURLs[r.URL]; done {
			continue
		}
		fresh = append(fresh, r)
	}

	// Pick a host-diverse top-3 (internal/select) rather than a naive
	// positional slice, so the gate's distinct-host requirement isn't
	// starved by a SERP dominated by one domain.
	picked := selecter.Select(fresh, selecter.Options{MaxTotal: 3, PerDomain: 1, PreferPrimary: true})

	for _, item := range picked {
		e.visitedURLs[item.URL] = struct{}{}
		text, ferr := e.Pool.FetchPageText(ctx, item.URL)
		visited = append(visited, item.URL)
		if ferr != nil {
			log.Warn().Err(ferr).Str("url", item.URL).Msg("fetch failed; skipping source")
			continue
		}
		if e.Pages != nil {
			_, _ = e.Pages.StorePage(ctx, item.URL, item.Title, text, "text/plain", time.Now())
		}
		ev := e.classify(item.URL, item.Title, text)
		previews = append(previews, ev)
		evidence = append(evidence, ev)
		e.evidenceChars += len(text)
	}

	return ActionResult{
		Status:          "ok",
		Previews:        previews,
		Evidence:        evidence,
		VisitedLinks:    visited,
		ExecutionStatus: StatusSucceeded,
	}
}

func (e *Executor) classify(rawURL, title, text string) SourcePreview {
	host := hostOf(rawURL)
	path := pathOf(rawURL)
	kind, tier, primary := classifyHost(e.Domain, host, path)
	snippet := snippetOf(text)

	ev := SourcePreview{
		SourceID:                 sourceIDForURL(rawURL),
		URL:                      rawURL,
		Host:                     host,
		Title:                    title,
		Snippet:                  snippet,
		SourceKind:               kind,
		SourceTier:               tier,
		EligibleForPrimaryClaims: primary,
	}
	if len(text) >= minSynthesisChars {
		ev.EligibleForSynthesis = true
	} else {
		ev.DiscardReason = "Content too compact"
	}
	return ev
}

func (e *Executor) recordPreviews(res ActionResult) {
	for _, p := range res.Previews {
		if _, ok := e.sourceMap[p.SourceID]; !ok {
			e.sourceMap[p.SourceID] = p
		}
	}
}

// updateCoverage grows a criterion's hit set by an evidence item's
// source_id iff the lower-cased snippet (the first maxSnippetChars of the
// fetched page text, see snippetOf) contains at least min(2, |keywords|) of
// the criterion's derived keywords.
func (e *Executor) updateCoverage(res ActionResult) {
	for _, ev := range res.Evidence {
		if !ev.EligibleForSynthesis {
			continue
		}
		lower := strings.ToLower(ev.Snippet)
		for criterion, keywords := range e.coverageKeywords {
			need := len(keywords)
			if need > 2 {
				need = 2
			}
			if need == 0 {
				continue
			}
			hits := 0
			for _, kw := range keywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					hits++
				}
			}
			if hits >= need {
				e.coverageHits[criterion][ev.SourceID] = struct{}{}
			}
		}
	}
}

func (e *Executor) missingCriteria() []string {
	var out []string
	for criterion, hits := range e.coverageHits {
		if len(hits) == 0 {
			out = append(out, criterion)
		}
	}
	return out
}

func (e *Executor) knownHosts() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range e.sourceMap {
		if p.Host == "" {
			continue
		}
		if _, ok := seen[p.Host]; ok {
			continue
		}
		seen[p.Host] = struct{}{}
		out = append(out, p.Host)
	}
	return out
}

// evaluateGate considers only synthesis-eligible sources, per spec §4.J.
func (e *Executor) evaluateGate() GateStatus {
	hosts := map[string]struct{}{}
	count := 0
	hasPrimary := false
	for _, p := range e.sourceMap {
		if !p.EligibleForSynthesis {
			continue
		}
		count++
		if p.Host != "" {
			hosts[p.Host] = struct{}{}
		}
		if p.EligibleForPrimaryClaims {
			hasPrimary = true
		}
	}

	var reasons []string
	if count < minEligibleSources {
		reasons = append(reasons, "Need at least two eligible sources")
	}
	if len(hosts) < minEligibleHosts {
		reasons = append(reasons, "Need at least two hosts")
	}

	return GateStatus{
		Eligible:      len(reasons) == 0,
		EligibleCount: count,
		HostCount:     len(hosts),
		HasPrimary:    hasPrimary,
		Reasons:       reasons,
	}
}

func snippetOf(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if len(collapsed) <= maxSnippetChars {
		return collapsed
	}
	return collapsed[:maxSnippetChars] + "…"
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// pathOf returns the URL path, needed alongside the host for classification
// rules that distinguish by path shape (e.g. a github.com repo vs. any
// other github.com page).
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func sourceIDForURL(rawURL string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(rawURL))
	return fmt.Sprintf("src-%x", h.Sum64())
}

var (
	docsHostRe       = regexp.MustCompile(`(?i)docs\.|developer|readthedocs`)
	githubHostRe     = regexp.MustCompile(`(?i)^github\.com$`)
	githubRepoPathRe = regexp.MustCompile(`^/[^/]+/[^/]+/?$`)
	eduGovRe         = regexp.MustCompile(`(?i)\.edu$|\.gov$|extension|standards`)
	newsRe           = regexp.MustCompile(`(?i)news|reuters|bloomberg|apnews`)
	helpLearnRe      = regexp.MustCompile(`(?i)docs|help|learn`)
)

// classifyHost implements spec §4.J's per-domain host → (kind, tier,
// is_primary) rules. Classification is a pure function of (host, path,
// domain) and is never mutated after the fact. path matters for the
// SOFTWARE-domain github.com rule: a repo page (github.com/<owner>/<repo>)
// is TierA/primary, any other github.com page (e.g. /trending, the bare
// root) is TierB.
func classifyHost(domain router.Domain, host, path string) (kind string, tier Tier, primary bool) {
	lower := strings.ToLower(host)
	switch domain {
	case router.DomainSoftware:
		if docsHostRe.MatchString(lower) {
			return "docs", TierA, true
		}
		if githubHostRe.MatchString(lower) {
			if githubRepoPathRe.MatchString(path) {
				return "repository", TierA, true
			}
			return "repository", TierB, false
		}
	case router.DomainPhysicalProcess:
		if eduGovRe.MatchString(lower) {
			return "authoritative", TierA, true
		}
		if strings.Contains(lower, "wikipedia") {
			return "reference", TierA, true
		}
		if newsRe.MatchString(lower) {
			return "news", TierB, false
		}
	default: // GENERAL
		if eduGovRe.MatchString(lower) || strings.Contains(lower, "wikipedia") {
			return "reference", TierA, true
		}
		if helpLearnRe.MatchString(lower) {
			return "help", TierB, false
		}
	}
	return "web", TierD, false
}
