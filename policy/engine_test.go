package policy

import (
	"context"
	"testing"
)

func TestDefaultPolicyAllowsNamedUser(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, err := e.Evaluate(ctx, map[string]interface{}{"user_id": "u1"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionAllow {
		t.Fatalf("expected allow, got %s", decision)
	}
}

func TestDefaultPolicyBlocksEmptyUser(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, err := e.Evaluate(ctx, map[string]interface{}{"user_id": ""})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionBlock {
		t.Fatalf("expected block, got %s", decision)
	}
}
