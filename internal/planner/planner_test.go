package planner

import (
	"strings"
	"testing"

	"github.com/clawdia-sh/research-core/internal/router"
)

func TestPlan_GeneralStrategyProducesOverviewQuery(t *testing.T) {
	routed := router.Result{Domain: router.DomainGeneral, TimeIntent: router.TimeUnknown}
	spec := Plan("capital of France", routed, []string{"identify the capital"}, Budget{})
	if len(spec.PlannedActions) == 0 {
		t.Fatalf("expected at least one planned action")
	}
	found := false
	for _, a := range spec.PlannedActions {
		if strings.Contains(a.Query, "overview") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an overview query among %v", spec.PlannedActions)
	}
}

func TestPlan_TechStrategyUsesEntityHint(t *testing.T) {
	routed := router.Result{Domain: router.DomainSoftware, EntityHint: []string{"Stripe"}}
	spec := Plan("install Stripe SDK", routed, nil, Budget{})
	if len(spec.PlannedActions) < 2 {
		t.Fatalf("expected at least two tech actions, got %d", len(spec.PlannedActions))
	}
	joined := ""
	for _, a := range spec.PlannedActions {
		joined += a.Query + " | "
	}
	if !strings.Contains(joined, "github.com") {
		t.Fatalf("expected a github.com query, got %q", joined)
	}
}

func TestPlan_LocalStrategyDetectedFromNearMePhrase(t *testing.T) {
	routed := router.Result{Domain: router.DomainGeneral}
	spec := Plan("coffee shops near me", routed, nil, Budget{})
	found := false
	for _, a := range spec.PlannedActions {
		if strings.Contains(a.Query, "near me") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 'near me' query, got %v", spec.PlannedActions)
	}
}

func TestPlan_FallsBackToRawGoalWhenStrategyYieldsNothing(t *testing.T) {
	routed := router.Result{Domain: router.DomainSoftware, EntityHint: nil}
	spec := Plan("   ", routed, nil, Budget{})
	if len(spec.PlannedActions) == 0 {
		t.Fatalf("expected a fallback raw-goal action even for an empty-ish prompt")
	}
}

func TestPlan_RespectsMaxActionsBudget(t *testing.T) {
	routed := router.Result{Domain: router.DomainSoftware, EntityHint: []string{"Docker"}}
	spec := Plan("install Docker and check security sandbox permissions", routed, nil, Budget{MaxActions: 1})
	if len(spec.PlannedActions) > 1 {
		t.Fatalf("expected at most 1 planned action under a budget of 1, got %d", len(spec.PlannedActions))
	}
	if len(spec.PlannedActions) > spec.Budget.MaxActions {
		t.Fatalf("invariant violated: |planned_actions| > budget.max_actions")
	}
}
