package policy

import "context"

// Repository provides bulk read access to the persisted policies and
// security configuration of an agent's tool assignments. Each Load call
// must be a single bulk read covering every requested tool name; the
// evaluators never issue one read per tool call.
type Repository interface {
	// LoadInvocationPolicies returns the invocation policies and security
	// defaults for the given (agent, tool name) pairs.
	LoadInvocationPolicies(ctx context.Context, agentID string, toolNames []string) (*InvocationPolicySet, error)

	// LoadTrustedDataPolicies returns the trusted data policies and
	// security defaults for the given (agent, tool name) pairs.
	LoadTrustedDataPolicies(ctx context.Context, agentID string, toolNames []string) (*TrustedDataPolicySet, error)
}

// InvocationPolicySet is the snapshot a single invocation batch is
// evaluated against. A tool name absent from Config has no agent-tool
// assignment and is never implicitly allowed.
type InvocationPolicySet struct {
	Policies map[string][]ToolInvocationPolicy
	Config   map[string]SecurityConfig
}

// AllowWhenUntrusted returns the tool's invocation default. Unregistered
// tools fail closed.
func (s *InvocationPolicySet) AllowWhenUntrusted(toolName string) bool {
	if s == nil {
		return false
	}
	return s.Config[toolName].AllowWhenUntrusted
}

// ToolPolicies returns the tool's invocation policies in stored order.
func (s *InvocationPolicySet) ToolPolicies(toolName string) []ToolInvocationPolicy {
	if s == nil {
		return nil
	}
	return s.Policies[toolName]
}

// TrustedDataPolicySet is the snapshot a single tool output batch is
// evaluated against.
type TrustedDataPolicySet struct {
	Policies map[string][]TrustedDataPolicy
	Config   map[string]SecurityConfig
}

// Registered reports whether the tool has an agent-tool assignment.
func (s *TrustedDataPolicySet) Registered(toolName string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Config[toolName]
	return ok
}

// Treatment returns the tool's default result treatment.
func (s *TrustedDataPolicySet) Treatment(toolName string) ResultTreatment {
	if s == nil {
		return ""
	}
	return s.Config[toolName].ResultTreatment
}

// ToolPolicies returns the tool's trusted data policies in stored order.
func (s *TrustedDataPolicySet) ToolPolicies(toolName string) []TrustedDataPolicy {
	if s == nil {
		return nil
	}
	return s.Policies[toolName]
}
