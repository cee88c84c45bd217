// Package consensus implements the consensus engine (spec §4.C): races a
// primary and secondary search backend, falls back sequentially across the
// remaining configured backends on primary failure, and computes an
// agreement-based confidence score when both succeed.
package consensus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawdia-sh/research-core/internal/errkind"
	"github.com/clawdia-sh/research-core/internal/ratelimit"
	"github.com/clawdia-sh/research-core/internal/search"
	"github.com/clawdia-sh/research-core/internal/searchcache"
)

// Confidence is the agreement-strength verdict on a Result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Result is the consensus result record of spec §3.
type Result struct {
	Primary       []search.Result
	Secondary     []search.Result
	Source        string // "p+s", "p", or the fallback backend's Name()
	ConsensusText string
	Confidence    Confidence
}

// TTL policy by query kind, spec §4.C ("Policy").
const (
	TTLGeneral      = 5 * time.Minute
	TTLSpecialized  = 30 * time.Minute
	TTLNews         = time.Hour
)

// Engine races Backends[0] (primary) against Backends[1] (secondary),
// falling back sequentially over Backends[2:] when the primary fails.
type Engine struct {
	Backends []search.Provider
	Limiter  *ratelimit.Registry
	Cache    *searchcache.Cache
}

// Query runs the full consensus protocol for query, using ttl to cache the
// result under the normalized query fingerprint.
func (e *Engine) Query(ctx context.Context, query string, limit int, ttl time.Duration) (Result, error) {
	key := searchcache.Normalize(query)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(key); ok {
			if res, ok := cached.(Result); ok {
				return res, nil
			}
		}
	}
	if len(e.Backends) == 0 {
		return Result{}, fmt.Errorf("consensus: no backends configured: %w", errkind.ErrEmpty)
	}

	primary := e.Backends[0]
	var secondary search.Provider
	if len(e.Backends) > 1 {
		secondary = e.Backends[1]
	}

	var primaryRes, secondaryRes []search.Result
	var primaryErr, secondaryErr error

	var g errgroup.Group
	g.Go(func() error {
		if err := e.acquire(ctx); err != nil {
			primaryErr = err
			return nil
		}
		primaryRes, primaryErr = primary.Search(ctx, query, limit)
		return nil
	})
	if secondary != nil {
		g.Go(func() error {
			if err := e.acquire(ctx); err != nil {
				secondaryErr = err
				return nil
			}
			secondaryRes, secondaryErr = secondary.Search(ctx, query, limit)
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	switch {
	case primaryErr == nil && secondary != nil && secondaryErr == nil:
		result = computeAgreement(primaryRes, secondaryRes)
	case primaryErr == nil:
		conf := ConfidenceMedium
		if len(primaryRes) == 0 {
			conf = ConfidenceLow
		}
		result = Result{Primary: primaryRes, Source: "p", Confidence: conf}
	default:
		fallback, err := e.sequentialFallback(ctx, query, limit, secondary, secondaryRes, secondaryErr)
		if err != nil {
			return Result{}, err
		}
		result = fallback
	}

	if e.Cache != nil {
		e.Cache.Set(key, result, ttl)
	}
	return result, nil
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.Limiter == nil {
		return nil
	}
	return e.Limiter.Acquire(ctx, "search")
}

// sequentialFallback is invoked when the primary backend failed. It reuses
// the secondary's already-in-flight result if one succeeded, otherwise
// tries the remaining configured backends one at a time in preference
// order until one succeeds.
func (e *Engine) sequentialFallback(ctx context.Context, query string, limit int, secondary search.Provider, secondaryRes []search.Result, secondaryErr error) (Result, error) {
	if secondary != nil && secondaryErr == nil {
		return Result{Secondary: secondaryRes, Source: secondary.Name(), Confidence: ConfidenceLow}, nil
	}
	if len(e.Backends) > 2 {
		for _, b := range e.Backends[2:] {
			if err := e.acquire(ctx); err != nil {
				continue
			}
			res, err := b.Search(ctx, query, limit)
			if err == nil {
				return Result{Secondary: res, Source: b.Name(), Confidence: ConfidenceLow}, nil
			}
		}
	}
	return Result{}, fmt.Errorf("consensus: all backends failed: %w", errkind.ErrEmpty)
}

// computeAgreement implements spec §4.C.5: numeric tokens, then key-fact
// sentences, then top-snippet Jaccard overlap, then low confidence.
func computeAgreement(primary, secondary []search.Result) Result {
	base := Result{Primary: primary, Secondary: secondary, Source: "p+s", Confidence: ConfidenceLow}
	primarySnippets := snippetsOf(primary)
	secondarySnippets := snippetsOf(secondary)
	if len(primarySnippets) == 0 || len(secondarySnippets) == 0 {
		return base
	}

	// a. numeric/price/percent/time/date token intersection.
	shared := intersect(tokenSet(primarySnippets), tokenSet(secondarySnippets))
	if len(shared) > 0 {
		for _, ps := range primarySnippets {
			for tok := range shared {
				if strings.Contains(ps, tok) {
					base.ConsensusText = ps
					base.Confidence = ConfidenceHigh
					return base
				}
			}
		}
	}

	// b. key-fact sentence overlap.
	if sentence, ok := keyFactMatch(primarySnippets, secondarySnippets); ok {
		base.ConsensusText = sentence
		base.Confidence = ConfidenceHigh
		return base
	}

	// c. top-snippet Jaccard overlap.
	pset := wordSet(primarySnippets[0])
	sset := wordSet(secondarySnippets[0])
	if jaccard(pset, sset) >= 0.5 {
		base.ConsensusText = primarySnippets[0]
		base.Confidence = ConfidenceMedium
		return base
	}

	// d. otherwise: low confidence, no consensus text.
	return base
}

func snippetsOf(results []search.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Snippet) != "" {
			out = append(out, r.Snippet)
		}
	}
	return out
}
