// Package policy defines the shared data model of the trust engine: the
// rule types configured per (agent, tool) assignment, the transient tool
// call / tool output values they are evaluated against, the condition
// operator vocabulary, and the bulk-read repository contract.
package policy

// Operator is the condition operator of a policy rule.
type Operator string

const (
	OpEndsWith    Operator = "endsWith"
	OpStartsWith  Operator = "startsWith"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpEqual       Operator = "equal"
	OpNotEqual    Operator = "notEqual"
	OpRegex       Operator = "regex"
)

// Valid reports whether the operator is part of the known vocabulary.
func (o Operator) Valid() bool {
	switch o {
	case OpEndsWith, OpStartsWith, OpContains, OpNotContains, OpEqual, OpNotEqual, OpRegex:
		return true
	}
	return false
}

// InvocationAction is the action of a tool invocation policy.
type InvocationAction string

const (
	// InvocationBlockAlways rejects the call whenever the rule matches,
	// regardless of the conversation's trust state.
	InvocationBlockAlways InvocationAction = "block_always"
	// InvocationAllowWhenUntrusted permits the call under an untrusted
	// context when the rule matches.
	InvocationAllowWhenUntrusted InvocationAction = "allow_when_context_is_untrusted"
)

// DataAction is the action of a trusted data policy.
type DataAction string

const (
	DataMarkTrusted DataAction = "mark_as_trusted"
	DataBlockAlways DataAction = "block_always"
	DataSanitize    DataAction = "sanitize_with_dual_llm"
)

// ResultTreatment is the per-assignment default for tool results when no
// explicit trusted data policy decides.
type ResultTreatment string

const (
	TreatmentTrusted   ResultTreatment = "trusted"
	TreatmentUntrusted ResultTreatment = "untrusted"
	TreatmentSanitize  ResultTreatment = "sanitize_with_dual_llm"
)

// ToolCall is one model-proposed tool invocation within a turn.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ToolOutputEvent is one tool result being re-admitted into context.
type ToolOutputEvent struct {
	ToolName string
	Output   any
}

// ToolInvocationPolicy is a persisted rule governing whether a proposed
// tool call may execute. Rules are evaluated in stored position order.
type ToolInvocationPolicy struct {
	ID           string
	ArgumentPath string
	Operator     Operator
	Value        string
	Action       InvocationAction
	Reason       string // empty = use the generic policy violation message
}

// TrustedDataPolicy is a persisted rule governing whether a tool's
// returned data is trusted, blocked, or sanitized. Rules are evaluated in
// stored position order; block rules take absolute precedence.
type TrustedDataPolicy struct {
	ID            string
	AttributePath string
	Operator      Operator
	Value         string
	Action        DataAction
	Description   string
}

// SecurityConfig holds the per-assignment defaults that apply
// independently of explicit rules.
type SecurityConfig struct {
	// AllowWhenUntrusted permits invoking the tool even while the
	// conversation contains untrusted data.
	AllowWhenUntrusted bool
	// ResultTreatment is the default verdict for the tool's results.
	ResultTreatment ResultTreatment
}

// InvocationResult is the outcome of evaluating a batch of tool calls.
// Evaluation stops at the first blocking violation; ToolCallName names the
// offending call when Allowed is false.
type InvocationResult struct {
	Allowed      bool
	Reason       string
	ToolCallName string
}

// TrustedDataResult is the verdict for a single tool output. Trusted,
// Blocked and Sanitize are mutually exclusive; all false means untrusted.
type TrustedDataResult struct {
	Trusted  bool
	Blocked  bool
	Sanitize bool
	Reason   string
}
