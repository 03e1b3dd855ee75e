// Package policy evaluates session admission policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by Evaluate.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA admission policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.admission.decision"),
		rego.Module("admission.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the admission policy for a user. Input is a map with at
// least user_id. Returns allow or block; an empty result defaults to allow.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy is the default admission policy content. Blocked users are
// refused before quota evaluation and their connections close with the
// lifecycle-blocked code.
const DefaultPolicy = `
package admission

import rego.v1

default decision := "allow"

decision := "block" if {
	input.user_id == ""
}

decision := "block" if {
	input.user_id in data.blocked_users
}
`
