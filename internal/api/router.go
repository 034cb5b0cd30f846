// Package api exposes the trust engine over HTTP: authenticated
// evaluation endpoints consumed by the LLM proxy, and the policy
// management surface used by administrators and the policy-preview
// tooling.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ts-31/archestra-sub000/internal/engine"
	"github.com/ts-31/archestra-sub000/internal/policy"
	"github.com/ts-31/archestra-sub000/internal/storage"
	"github.com/ts-31/archestra-sub000/internal/store"
	"go.uber.org/zap"
)

// AgentAuthStore looks up agent credentials for the auth middleware.
type AgentAuthStore interface {
	LookupAgentByKeyPrefix(ctx context.Context, prefix string) (*store.AgentAuth, error)
}

// AdminStore provides the policy management queries.
type AdminStore interface {
	CreateAgent(ctx context.Context, name string) (*store.Agent, string, error)
	GetSecurityConfig(ctx context.Context, agentID, toolName string) (*policy.SecurityConfig, error)
	UpsertSecurityConfig(ctx context.Context, agentID, toolName string, cfg policy.SecurityConfig) error
	ListInvocationPolicies(ctx context.Context, agentID, toolName string) ([]store.InvocationPolicyRecord, error)
	CreateInvocationPolicy(ctx context.Context, agentID, toolName string, p policy.ToolInvocationPolicy) (*store.InvocationPolicyRecord, error)
	DeleteInvocationPolicy(ctx context.Context, agentID, toolName, id string) (bool, error)
	ListTrustedDataPolicies(ctx context.Context, agentID, toolName string) ([]store.TrustedDataPolicyRecord, error)
	CreateTrustedDataPolicy(ctx context.Context, agentID, toolName string, p policy.TrustedDataPolicy) (*store.TrustedDataPolicyRecord, error)
	DeleteTrustedDataPolicy(ctx context.Context, agentID, toolName, id string) (bool, error)
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Auth        AgentAuthStore
	Admin       AdminStore
	Invocation  *engine.InvocationEvaluator
	TrustedData *engine.TrustedDataEvaluator
	Writer      storage.EventWriter
	Logger      *zap.Logger
	CacheTTL    time.Duration
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Evaluation endpoints (auth required via Bearer agk_ key)
	mux.HandleFunc("POST /v1/evaluate/tool-calls", deps.authMiddleware(deps.handleEvaluateToolCalls))
	mux.HandleFunc("POST /v1/evaluate/tool-outputs", deps.authMiddleware(deps.handleEvaluateToolOutputs))
	mux.HandleFunc("POST /v1/evaluate/turn", deps.authMiddleware(deps.handleEvaluateTurn))

	// Agent management (no auth — dashboard auth added later)
	mux.HandleFunc("POST /api/trust/agents", deps.handleCreateAgent)

	// Policy management per agent-tool assignment (no auth)
	mux.HandleFunc("GET /api/trust/agents/{agent_id}/tools/{tool_name}/config", deps.handleGetSecurityConfig)
	mux.HandleFunc("PUT /api/trust/agents/{agent_id}/tools/{tool_name}/config", deps.handlePutSecurityConfig)
	mux.HandleFunc("GET /api/trust/agents/{agent_id}/tools/{tool_name}/invocation-policies", deps.handleListInvocationPolicies)
	mux.HandleFunc("POST /api/trust/agents/{agent_id}/tools/{tool_name}/invocation-policies", deps.handleCreateInvocationPolicy)
	mux.HandleFunc("DELETE /api/trust/agents/{agent_id}/tools/{tool_name}/invocation-policies/{policy_id}", deps.handleDeleteInvocationPolicy)
	mux.HandleFunc("GET /api/trust/agents/{agent_id}/tools/{tool_name}/trusted-data-policies", deps.handleListTrustedDataPolicies)
	mux.HandleFunc("POST /api/trust/agents/{agent_id}/tools/{tool_name}/trusted-data-policies", deps.handleCreateTrustedDataPolicy)
	mux.HandleFunc("DELETE /api/trust/agents/{agent_id}/tools/{tool_name}/trusted-data-policies/{policy_id}", deps.handleDeleteTrustedDataPolicy)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
