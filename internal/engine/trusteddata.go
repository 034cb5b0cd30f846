package engine

import (
	"context"
	"fmt"

	"github.com/ts-31/archestra-sub000/internal/attrpath"
	"github.com/ts-31/archestra-sub000/internal/policy"
	"go.uber.org/zap"
)

// TrustedDataEvaluator decides whether a tool's returned data may be
// treated as trusted, must be blocked, or must be routed through dual-LLM
// sanitization before re-entering the conversation.
type TrustedDataEvaluator struct {
	repo   policy.Repository
	logger *zap.Logger
}

// NewTrustedDataEvaluator creates an evaluator backed by the given policy
// repository.
func NewTrustedDataEvaluator(repo policy.Repository, logger *zap.Logger) *TrustedDataEvaluator {
	return &TrustedDataEvaluator{repo: repo, logger: logger}
}

// EvaluateToolOutputs scores a batch of tool outputs and returns one
// verdict per event, index-aligned with the input. Policies, treatment
// defaults and registration state for every distinct tool name in the
// batch are fetched in one bulk read.
func (e *TrustedDataEvaluator) EvaluateToolOutputs(ctx context.Context, agentID string, events []policy.ToolOutputEvent) ([]policy.TrustedDataResult, error) {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.ToolName)
	}

	var set *policy.TrustedDataPolicySet
	if distinct := distinctToolNames(names); len(distinct) > 0 {
		var err error
		set, err = e.repo.LoadTrustedDataPolicies(ctx, agentID, distinct)
		if err != nil {
			return nil, fmt.Errorf("EvaluateToolOutputs: %w", err)
		}
	}

	results := make([]policy.TrustedDataResult, len(events))
	for i, ev := range events {
		results[i] = e.evaluateOutput(set, ev)
	}
	return results, nil
}

// evaluateOutput produces the verdict for a single tool output.
//
// Precedence: built-in bypass, unregistered fail-closed, zero-policy
// default, block pass (any extracted value matching blocks, with absolute
// precedence over trust and sanitize), trust/sanitize pass (first policy
// whose path yields at least one value with every value matching wins),
// then the tool's treatment default.
func (e *TrustedDataEvaluator) evaluateOutput(set *policy.TrustedDataPolicySet, ev policy.ToolOutputEvent) policy.TrustedDataResult {
	if IsBuiltinTool(ev.ToolName) {
		return policy.TrustedDataResult{Trusted: true, Reason: "built-in tool"}
	}

	if !set.Registered(ev.ToolName) {
		return policy.TrustedDataResult{
			Reason: fmt.Sprintf("Tool %q is not registered for this agent", ev.ToolName),
		}
	}

	policies := set.ToolPolicies(ev.ToolName)
	if len(policies) == 0 {
		return treatmentVerdict(set.Treatment(ev.ToolName))
	}

	// Block pass: a block rule matching any extracted value wins outright.
	for _, p := range policies {
		if p.Action != policy.DataBlockAlways {
			continue
		}
		values := attrpath.Resolve(ev.Output, p.AttributePath)
		if anyMatch(e.logger, values, p.Operator, p.Value) {
			reason := p.Description
			if reason == "" {
				reason = genericViolationReason
			}
			return policy.TrustedDataResult{Blocked: true, Reason: reason}
		}
	}

	// Trust/sanitize pass: stored order, first fully matching policy wins.
	// The path must yield at least one value and every value must match;
	// an empty value set fails closed.
	for _, p := range policies {
		if p.Action == policy.DataBlockAlways {
			continue
		}
		values := attrpath.Resolve(ev.Output, p.AttributePath)
		if !allMatch(e.logger, values, p.Operator, p.Value) {
			continue
		}
		switch p.Action {
		case policy.DataMarkTrusted:
			reason := p.Description
			if reason == "" {
				reason = "Matched trust policy"
			}
			return policy.TrustedDataResult{Trusted: true, Reason: reason}
		case policy.DataSanitize:
			reason := p.Description
			if reason == "" {
				reason = "Matched sanitization policy"
			}
			return policy.TrustedDataResult{Sanitize: true, Reason: reason}
		}
	}

	return treatmentVerdict(set.Treatment(ev.ToolName))
}

// treatmentVerdict maps a tool's default result treatment to a verdict.
// Anything outside the known treatments is untrusted.
func treatmentVerdict(t policy.ResultTreatment) policy.TrustedDataResult {
	switch t {
	case policy.TreatmentTrusted:
		return policy.TrustedDataResult{Trusted: true, Reason: "Tool results are trusted by default"}
	case policy.TreatmentSanitize:
		return policy.TrustedDataResult{Sanitize: true, Reason: "Tool results are sanitized by default"}
	case policy.TreatmentUntrusted:
		return policy.TrustedDataResult{Reason: "Tool results are untrusted by default"}
	default:
		return policy.TrustedDataResult{Reason: "no matching trust policy"}
	}
}
