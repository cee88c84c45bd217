// Package planner implements the task-spec assembly half of spec §4.H: it
// turns a user prompt and a router.Result into a TaskSpec whose planned
// actions are generated by the strategy pack matching (domain, intent).
package planner

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clawdia-sh/research-core/internal/followup"
	"github.com/clawdia-sh/research-core/internal/router"
)

// Domain mirrors router.Domain; TaskSpec.Domain is typed in terms of the
// router's classification so callers never juggle two domain enums.
type Domain = router.Domain

// Budget bounds how much work a single execution may do, spec §3.
type Budget struct {
	MaxActions     int
	MaxBatches     int
	MaxTimeSeconds int
}

// DefaultBudget matches the conservative defaults implied by spec §4.J's
// "remaining budget" follow-up gate (at least one follow-up round must be
// affordable after the initial plan).
var DefaultBudget = Budget{MaxActions: 6, MaxBatches: 3, MaxTimeSeconds: 120}

// Action is a planned search action, spec §3.
type Action struct {
	ID       string
	Type     string // always "search"
	Source   string // always "google"
	Query    string
	Priority int
	Reason   string
}

// TaskSpec is the planner's output, spec §3. Invariant:
// len(PlannedActions) <= Budget.MaxActions.
type TaskSpec struct {
	UserGoal          string
	SuccessCriteria   []string
	DeliverableSchema string
	Budget            Budget
	PlannedActions    []Action
	Domain            Domain
}

// Plan produces a TaskSpec for prompt using routed's classification. The
// action list is generated by the strategy pack matching (domain,
// time_intent); every generated query passes through the followup
// sanitizer before being placed into an action.
func Plan(prompt string, routed router.Result, criteria []string, budget Budget) TaskSpec {
	goal := strings.TrimSpace(prompt)
	if budget.MaxActions <= 0 {
		budget = DefaultBudget
	}

	queries := strategyQueries(goal, routed)
	queries = sanitizeAll(queries, routed.Domain)
	if len(queries) == 0 {
		queries = []string{followup.Sanitize(goal, routed.Domain)}
	}
	if len(queries) > budget.MaxActions {
		queries = queries[:budget.MaxActions]
	}

	actions := make([]Action, 0, len(queries))
	for i, q := range queries {
		actions = append(actions, Action{
			ID:       fmt.Sprintf("a%d", i+1),
			Type:     "search",
			Source:   "google",
			Query:    q,
			Priority: 0,
		})
	}

	log.Debug().Str("domain", string(routed.Domain)).Int("actions", len(actions)).Msg("planner produced task spec")

	return TaskSpec{
		UserGoal:        goal,
		SuccessCriteria: criteria,
		Budget:          budget,
		PlannedActions:  actions,
		Domain:          routed.Domain,
	}
}

func sanitizeAll(queries []string, domain router.Domain) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		s := followup.Sanitize(q, domain)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// strategyQueries dispatches to the general/local/tech strategy pack of
// spec §4.H. There is no separate "local" domain in the router's
// classification, so local intent is detected here directly from phrasing
// ("near me", "nearby") the same way time intent is detected in router.
func strategyQueries(goal string, routed router.Result) []string {
	lower := strings.ToLower(goal)
	switch {
	case isLocalIntent(lower):
		return localStrategy(goal, lower, routed)
	case routed.Domain == router.DomainSoftware:
		return techStrategy(goal, routed)
	default:
		return generalStrategy(goal, lower)
	}
}

var localIntentMarkers = []string{"near me", "nearby", "close to me", "in my area"}

func isLocalIntent(lower string) bool {
	for _, m := range localIntentMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func generalStrategy(goal, lower string) []string {
	queries := []string{goal}
	switch {
	case isPurchaseOrTroubleshootingIntent(lower):
		queries = append(queries, "how to "+goal)
	default:
		queries = append(queries, goal+" overview")
	}
	return queries
}

var purchaseOrTroubleshootingMarkers = []string{"buy", "price", "fix", "troubleshoot", "not working", "error", "broken"}

func isPurchaseOrTroubleshootingIntent(lower string) bool {
	for _, m := range purchaseOrTroubleshootingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func localStrategy(goal, lower string, routed router.Result) []string {
	place := "me"
	queries := []string{goal + " near " + place}
	if routed.TimeIntent == router.TimeImmediate || routed.TimeIntent == router.TimeFuture {
		queries = append(queries, goal+" hours reviews this weekend")
	} else {
		queries = append(queries, goal+" hours reviews")
	}
	return queries
}

func techStrategy(goal string, routed router.Result) []string {
	if len(routed.EntityHint) == 0 {
		return []string{goal}
	}
	entity := routed.EntityHint[0]
	queries := []string{
		fmt.Sprintf("site:docs.* %s (install OR docs OR getting started)", entity),
		fmt.Sprintf("site:github.com %s README", entity),
	}
	lower := strings.ToLower(goal)
	if containsSafetyKeyword(lower) {
		queries = append(queries, goal+" (security OR sandbox OR permissions)")
	}
	return queries
}

var safetyKeywords = []string{"security", "sandbox", "permission", "vulnerab", "exploit", "privilege"}

func containsSafetyKeyword(lower string) bool {
	for _, kw := range safetyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
