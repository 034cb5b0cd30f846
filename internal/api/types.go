package api

import "time"

// --- Evaluation endpoints ---

// ToolCallReq is one proposed tool invocation.
type ToolCallReq struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolOutputReq is one tool result being re-admitted into context.
type ToolOutputReq struct {
	ToolName string `json:"tool_name"`
	Output   any    `json:"output"`
}

// EvaluateToolCallsReq is the JSON body for POST /v1/evaluate/tool-calls.
// ContextTrusted defaults to false: an unstated trust state is untrusted.
type EvaluateToolCallsReq struct {
	Calls          []ToolCallReq `json:"calls"`
	ContextTrusted bool          `json:"context_trusted"`
}

// InvocationVerdict is the invocation evaluator's batch outcome.
type InvocationVerdict struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason"`
	ToolCallName string `json:"tool_call_name,omitempty"`
}

// EvaluateToolCallsResp is the response for POST /v1/evaluate/tool-calls.
type EvaluateToolCallsResp struct {
	InvocationVerdict
	RequestID string  `json:"request_id"`
	LatencyMs float64 `json:"latency_ms"`
}

// EvaluateToolOutputsReq is the JSON body for POST /v1/evaluate/tool-outputs.
type EvaluateToolOutputsReq struct {
	Outputs []ToolOutputReq `json:"outputs"`
}

// TrustedDataVerdict is one tool output's trust verdict. The three flags
// are mutually exclusive; all false means untrusted.
type TrustedDataVerdict struct {
	Trusted             bool   `json:"trusted"`
	Blocked             bool   `json:"blocked"`
	SanitizeWithDualLLM bool   `json:"sanitize_with_dual_llm"`
	Reason              string `json:"reason"`
}

// EvaluateToolOutputsResp is the response for POST /v1/evaluate/tool-outputs.
// Results are index-aligned with the request's outputs.
type EvaluateToolOutputsResp struct {
	Results   []TrustedDataVerdict `json:"results"`
	RequestID string               `json:"request_id"`
	LatencyMs float64              `json:"latency_ms"`
}

// EvaluateTurnReq is the JSON body for POST /v1/evaluate/turn: the full
// proxy-turn flow of scoring prior outputs, computing the trust context
// and gating the model's proposed calls.
type EvaluateTurnReq struct {
	PriorOutputs []ToolOutputReq `json:"prior_outputs,omitempty"`
	Calls        []ToolCallReq   `json:"calls,omitempty"`
}

// EvaluateTurnResp is the response for POST /v1/evaluate/turn.
type EvaluateTurnResp struct {
	ContextTrusted bool                 `json:"context_trusted"`
	OutputResults  []TrustedDataVerdict `json:"output_results,omitempty"`
	Invocation     InvocationVerdict    `json:"invocation"`
	RequestID      string               `json:"request_id"`
	LatencyMs      float64              `json:"latency_ms"`
}

// --- Agent management ---

// CreateAgentReq is the JSON body for POST /api/trust/agents.
type CreateAgentReq struct {
	Name string `json:"name"`
}

// CreateAgentResp includes the plaintext API key (shown once).
type CreateAgentResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
}

// --- Policy management ---

// SecurityConfigBody is the security defaults of an agent-tool assignment.
type SecurityConfigBody struct {
	AllowWhenUntrusted bool   `json:"allow_when_untrusted"`
	ResultTreatment    string `json:"result_treatment"`
}

// InvocationPolicyReq is the JSON body for creating an invocation policy.
type InvocationPolicyReq struct {
	ArgumentPath string `json:"argument_path"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
	Action       string `json:"action"`
	Reason       string `json:"reason,omitempty"`
}

// InvocationPolicyResp is a persisted invocation policy.
type InvocationPolicyResp struct {
	ID           string    `json:"id"`
	ArgumentPath string    `json:"argument_path"`
	Operator     string    `json:"operator"`
	Value        string    `json:"value"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason,omitempty"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}

// TrustedDataPolicyReq is the JSON body for creating a trusted data policy.
type TrustedDataPolicyReq struct {
	AttributePath string `json:"attribute_path"`
	Operator      string `json:"operator"`
	Value         string `json:"value"`
	Action        string `json:"action"`
	Description   string `json:"description,omitempty"`
}

// TrustedDataPolicyResp is a persisted trusted data policy.
type TrustedDataPolicyResp struct {
	ID            string    `json:"id"`
	AttributePath string    `json:"attribute_path"`
	Operator      string    `json:"operator"`
	Value         string    `json:"value"`
	Action        string    `json:"action"`
	Description   string    `json:"description,omitempty"`
	Position      int       `json:"position"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrorResp is the JSON error body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
