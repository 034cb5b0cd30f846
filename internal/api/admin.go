package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ts-31/archestra-sub000/internal/policy"
	"github.com/ts-31/archestra-sub000/internal/store"
	"go.uber.org/zap"
)

// handleCreateAgent implements POST /api/trust/agents. The plaintext API
// key is returned exactly once; only its bcrypt hash is stored.
func (d *Dependencies) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	agent, apiKey, err := d.Admin.CreateAgent(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("create agent failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create agent"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateAgentResp{
		ID:           agent.ID,
		Name:         agent.Name,
		APIKey:       apiKey,
		APIKeyPrefix: agent.APIKeyPrefix,
		CreatedAt:    agent.CreatedAt,
	})
}

// --- Security config ---

func (d *Dependencies) handleGetSecurityConfig(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")

	cfg, err := d.Admin.GetSecurityConfig(r.Context(), agentID, toolName)
	if err != nil {
		d.Logger.Error("get security config failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to load security config"})
		return
	}
	if cfg == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool is not registered for this agent"})
		return
	}

	writeJSON(w, http.StatusOK, SecurityConfigBody{
		AllowWhenUntrusted: cfg.AllowWhenUntrusted,
		ResultTreatment:    string(cfg.ResultTreatment),
	})
}

func (d *Dependencies) handlePutSecurityConfig(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")

	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body"})
		return
	}
	if detail := validatePayload(securityConfigValidator, raw); detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}
	var body SecurityConfigBody
	if err := json.Unmarshal(raw, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	cfg := policy.SecurityConfig{
		AllowWhenUntrusted: body.AllowWhenUntrusted,
		ResultTreatment:    policy.ResultTreatment(body.ResultTreatment),
	}
	if err := d.Admin.UpsertSecurityConfig(r.Context(), agentID, toolName, cfg); err != nil {
		d.Logger.Error("upsert security config failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to save security config"})
		return
	}

	writeJSON(w, http.StatusOK, SecurityConfigBody{
		AllowWhenUntrusted: cfg.AllowWhenUntrusted,
		ResultTreatment:    string(cfg.ResultTreatment),
	})
}

// --- Invocation policies ---

func (d *Dependencies) handleListInvocationPolicies(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")

	records, err := d.Admin.ListInvocationPolicies(r.Context(), agentID, toolName)
	if err != nil {
		d.Logger.Error("list invocation policies failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list policies"})
		return
	}

	resp := make([]InvocationPolicyResp, 0, len(records))
	for _, rec := range records {
		resp = append(resp, invocationPolicyResp(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleCreateInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")

	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body"})
		return
	}
	if detail := validatePayload(invocationPolicyValidator, raw); detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}
	var req InvocationPolicyReq
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	if !d.requireRegistered(w, r, agentID, toolName) {
		return
	}

	rec, err := d.Admin.CreateInvocationPolicy(r.Context(), agentID, toolName, policy.ToolInvocationPolicy{
		ArgumentPath: req.ArgumentPath,
		Operator:     policy.Operator(req.Operator),
		Value:        req.Value,
		Action:       policy.InvocationAction(req.Action),
		Reason:       req.Reason,
	})
	if err != nil {
		d.Logger.Error("create invocation policy failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create policy"})
		return
	}
	writeJSON(w, http.StatusCreated, invocationPolicyResp(*rec))
}

func (d *Dependencies) handleDeleteInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")
	policyID := r.PathValue("policy_id")

	deleted, err := d.Admin.DeleteInvocationPolicy(r.Context(), agentID, toolName, policyID)
	if err != nil {
		d.Logger.Error("delete invocation policy failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete policy"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Policy not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Trusted data policies ---

func (d *Dependencies) handleListTrustedDataPolicies(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")

	records, err := d.Admin.ListTrustedDataPolicies(r.Context(), agentID, toolName)
	if err != nil {
		d.Logger.Error("list trusted data policies failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list policies"})
		return
	}

	resp := make([]TrustedDataPolicyResp, 0, len(records))
	for _, rec := range records {
		resp = append(resp, trustedDataPolicyResp(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleCreateTrustedDataPolicy(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")

	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body"})
		return
	}
	if detail := validatePayload(trustedDataPolicyValidator, raw); detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}
	var req TrustedDataPolicyReq
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	if !d.requireRegistered(w, r, agentID, toolName) {
		return
	}

	rec, err := d.Admin.CreateTrustedDataPolicy(r.Context(), agentID, toolName, policy.TrustedDataPolicy{
		AttributePath: req.AttributePath,
		Operator:      policy.Operator(req.Operator),
		Value:         req.Value,
		Action:        policy.DataAction(req.Action),
		Description:   req.Description,
	})
	if err != nil {
		d.Logger.Error("create trusted data policy failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create policy"})
		return
	}
	writeJSON(w, http.StatusCreated, trustedDataPolicyResp(*rec))
}

func (d *Dependencies) handleDeleteTrustedDataPolicy(w http.ResponseWriter, r *http.Request) {
	agentID, toolName := r.PathValue("agent_id"), r.PathValue("tool_name")
	policyID := r.PathValue("policy_id")

	deleted, err := d.Admin.DeleteTrustedDataPolicy(r.Context(), agentID, toolName, policyID)
	if err != nil {
		d.Logger.Error("delete trusted data policy failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete policy"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Policy not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

// requireRegistered rejects policy creation for tools that were never
// registered for the agent. Policies on unregistered tools would be dead
// rows the evaluators never load.
func (d *Dependencies) requireRegistered(w http.ResponseWriter, r *http.Request, agentID, toolName string) bool {
	cfg, err := d.Admin.GetSecurityConfig(r.Context(), agentID, toolName)
	if err != nil {
		d.Logger.Error("registration check failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to check tool registration"})
		return false
	}
	if cfg == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool is not registered for this agent"})
		return false
	}
	return true
}

func invocationPolicyResp(rec store.InvocationPolicyRecord) InvocationPolicyResp {
	return InvocationPolicyResp{
		ID:           rec.ID,
		ArgumentPath: rec.ArgumentPath,
		Operator:     string(rec.Operator),
		Value:        rec.Value,
		Action:       string(rec.Action),
		Reason:       rec.Reason,
		Position:     rec.Position,
		CreatedAt:    rec.CreatedAt,
	}
}

func trustedDataPolicyResp(rec store.TrustedDataPolicyRecord) TrustedDataPolicyResp {
	return TrustedDataPolicyResp{
		ID:            rec.ID,
		AttributePath: rec.AttributePath,
		Operator:      string(rec.Operator),
		Value:         rec.Value,
		Action:        string(rec.Action),
		Description:   rec.Description,
		Position:      rec.Position,
		CreatedAt:     rec.CreatedAt,
	}
}
