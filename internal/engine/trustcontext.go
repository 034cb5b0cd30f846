package engine

import (
	"context"

	"github.com/ts-31/archestra-sub000/internal/policy"
)

// ComputeTrustContext scores the tool outputs already present in a
// conversation and reports whether the context is currently trusted: true
// only when every prior output is trusted. A conversation with no prior
// tool outputs is trusted. The per-output verdicts are returned alongside
// so the caller can drop or replace blocked outputs before they re-enter
// context.
func (e *TrustedDataEvaluator) ComputeTrustContext(ctx context.Context, agentID string, events []policy.ToolOutputEvent) (bool, []policy.TrustedDataResult, error) {
	if len(events) == 0 {
		return true, nil, nil
	}

	results, err := e.EvaluateToolOutputs(ctx, agentID, events)
	if err != nil {
		return false, nil, err
	}

	for _, r := range results {
		if !r.Trusted {
			return false, results, nil
		}
	}
	return true, results, nil
}
