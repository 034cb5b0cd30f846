// Package engine implements the two rule evaluators of the trust engine:
// the tool invocation policy evaluator, which decides whether
// model-proposed tool calls may execute given the conversation's trust
// state, and the trusted data policy evaluator, which decides whether tool
// outputs are trusted, blocked, or must be sanitized. Both are pure
// functions of a policy snapshot and an input batch, performing exactly
// one bulk repository read per invocation, and fail closed under missing
// data or configuration.
package engine

import (
	"github.com/ts-31/archestra-sub000/internal/policy"
	"go.uber.org/zap"
)

// matchValue evaluates one extracted value against a rule's condition.
// Malformed rule expressions (bad regex, unknown operator) are logged and
// treated as a non-match so a single broken rule never fails the request.
func matchValue(logger *zap.Logger, value any, op policy.Operator, literal string) bool {
	ok, err := policy.Match(value, op, literal)
	if err != nil {
		logger.Warn("condition evaluation failed, treating as non-match",
			zap.String("operator", string(op)),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// anyMatch reports whether at least one value satisfies the condition.
// An empty value set matches nothing.
func anyMatch(logger *zap.Logger, values []any, op policy.Operator, literal string) bool {
	for _, v := range values {
		if matchValue(logger, v, op, literal) {
			return true
		}
	}
	return false
}

// allMatch reports whether every value satisfies the condition. An empty
// value set fails: a rule cannot be satisfied by data that is not there.
func allMatch(logger *zap.Logger, values []any, op policy.Operator, literal string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if !matchValue(logger, v, op, literal) {
			return false
		}
	}
	return true
}

// distinctToolNames returns the unique non-built-in tool names in input
// order, for the single bulk repository read of a batch.
func distinctToolNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if IsBuiltinTool(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
