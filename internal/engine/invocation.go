package engine

import (
	"context"
	"fmt"

	"github.com/ts-31/archestra-sub000/internal/attrpath"
	"github.com/ts-31/archestra-sub000/internal/policy"
	"go.uber.org/zap"
)

// genericViolationReason is used when a matching block rule carries no
// explicit reason.
const genericViolationReason = "Policy violation"

// InvocationEvaluator decides whether model-proposed tool calls may
// execute given the current trust state of the conversation.
type InvocationEvaluator struct {
	repo   policy.Repository
	logger *zap.Logger
}

// NewInvocationEvaluator creates an evaluator backed by the given policy
// repository.
func NewInvocationEvaluator(repo policy.Repository, logger *zap.Logger) *InvocationEvaluator {
	return &InvocationEvaluator{repo: repo, logger: logger}
}

// EvaluateToolCalls checks a batch of proposed tool calls in input order
// and returns the first blocking violation, or an overall allow.
//
// Per call: built-in tools always pass. Each of the tool's policies is
// evaluated in stored order against the value extracted at its argument
// path. A matching block_always rule rejects the whole batch immediately.
// A matching allow_when_context_is_untrusted rule records an explicit
// allow but does not short-circuit, so later block rules still apply. A
// rule whose argument path yields no value is skipped when it is a block
// rule or when the tool's default already allows untrusted usage;
// otherwise the missing data is a failure to justify the call and it is
// rejected. Finally, under an untrusted context the call passes only if
// the tool's default allows untrusted usage or an explicit allow matched.
//
// Policies and defaults for the whole batch are fetched in one bulk read.
func (e *InvocationEvaluator) EvaluateToolCalls(ctx context.Context, agentID string, calls []policy.ToolCall, contextTrusted bool) (policy.InvocationResult, error) {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
	}

	var set *policy.InvocationPolicySet
	if distinct := distinctToolNames(names); len(distinct) > 0 {
		var err error
		set, err = e.repo.LoadInvocationPolicies(ctx, agentID, distinct)
		if err != nil {
			return policy.InvocationResult{}, fmt.Errorf("EvaluateToolCalls: %w", err)
		}
	}

	for _, call := range calls {
		if IsBuiltinTool(call.Name) {
			continue
		}

		allowedByDefault := set.AllowWhenUntrusted(call.Name)
		explicitAllow := false

		for _, p := range set.ToolPolicies(call.Name) {
			values := attrpath.Resolve(call.Arguments, p.ArgumentPath)

			if len(values) == 0 {
				if p.Action == policy.InvocationBlockAlways {
					continue // absence cannot trigger a block
				}
				if allowedByDefault {
					continue
				}
				return policy.InvocationResult{
					Allowed:      false,
					Reason:       "Missing required argument: " + p.ArgumentPath,
					ToolCallName: call.Name,
				}, nil
			}

			switch p.Action {
			case policy.InvocationBlockAlways:
				if anyMatch(e.logger, values, p.Operator, p.Value) {
					reason := p.Reason
					if reason == "" {
						reason = genericViolationReason
					}
					return policy.InvocationResult{
						Allowed:      false,
						Reason:       reason,
						ToolCallName: call.Name,
					}, nil
				}
			case policy.InvocationAllowWhenUntrusted:
				if allMatch(e.logger, values, p.Operator, p.Value) {
					explicitAllow = true
				}
			}
		}

		if !contextTrusted && !allowedByDefault && !explicitAllow {
			return policy.InvocationResult{
				Allowed:      false,
				Reason:       fmt.Sprintf("Tool %q cannot be used while untrusted data is present in the conversation", call.Name),
				ToolCallName: call.Name,
			}, nil
		}
	}

	return policy.InvocationResult{Allowed: true}, nil
}
