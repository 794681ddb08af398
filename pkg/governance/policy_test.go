package governance

import (
	"context"
	"testing"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/core"
)

func TestRuleSetEvaluate(t *testing.T) {
	rules := []Rule{
		{ID: "no-student-events", Effect: "deny", Role: core.RoleStudent, Tool: "*_event*", Reason: "blocked"},
		{ID: "deletes", Effect: "allow", Tool: "delete_*"},
	}
	engine := NewRuleSet(rules)

	decision := engine.Evaluate(context.Background(), Action{Role: core.RoleAdmin, Tool: "delete_event"})
	if !decision.Allowed {
		t.Fatalf("expected allowed")
	}
	decision = engine.Evaluate(context.Background(), Action{Role: core.RoleStudent, Tool: "get_event"})
	if decision.Allowed {
		t.Fatalf("expected denied")
	}
	if decision.Reason != "blocked" {
		t.Fatalf("unexpected reason: %s", decision.Reason)
	}
	decision = engine.Evaluate(context.Background(), Action{Role: core.RoleTeacher, Tool: "mark_attendance"})
	if !decision.IsAllowed() || decision.RuleID != "" {
		t.Fatalf("expected default allow, got %+v", decision)
	}
}

func TestRuleSetFromConfig(t *testing.T) {
	cfg := config.GovernanceConfig{
		Policies: []config.PolicyRuleConfig{
			{Effect: "deny", Role: "Teacher", Tool: "delete_*", Reason: "blocked"},
		},
	}
	engine := RuleSetFromConfig(cfg)
	decision := engine.Evaluate(context.Background(), Action{Role: core.RoleTeacher, Tool: "delete_result"})
	if decision.Allowed {
		t.Fatalf("expected denied decision")
	}
	if decision.RuleID != "rule" {
		t.Fatalf("unexpected rule id: %s", decision.RuleID)
	}
}
