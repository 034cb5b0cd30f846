package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ts-31/archestra-sub000/internal/policy"
	"github.com/ts-31/archestra-sub000/internal/storage"
	"go.uber.org/zap"
)

// handleEvaluateToolCalls implements POST /v1/evaluate/tool-calls.
// Auth middleware has already validated the Bearer key and injected the agent.
func (d *Dependencies) handleEvaluateToolCalls(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req EvaluateToolCallsReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	calls, detail := toToolCalls(req.Calls)
	if detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}

	agent := agentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing agent context"})
		return
	}

	result, err := d.Invocation.EvaluateToolCalls(r.Context(), agent.ID, calls, req.ContextTrusted)
	if err != nil {
		d.Logger.Error("tool call evaluation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Policy evaluation failed"})
		return
	}

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	// Fire-and-forget: audit every evaluated call up to the blocking one.
	d.writeInvocationEvents(agent.ID, requestID, req.ContextTrusted, calls, result, float32(latencyMs))

	writeJSON(w, http.StatusOK, EvaluateToolCallsResp{
		InvocationVerdict: invocationVerdict(result),
		RequestID:         requestID,
		LatencyMs:         latencyMs,
	})
}

// handleEvaluateToolOutputs implements POST /v1/evaluate/tool-outputs.
func (d *Dependencies) handleEvaluateToolOutputs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req EvaluateToolOutputsReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	events, detail := toToolOutputs(req.Outputs)
	if detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}

	agent := agentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing agent context"})
		return
	}

	results, err := d.TrustedData.EvaluateToolOutputs(r.Context(), agent.ID, events)
	if err != nil {
		d.Logger.Error("tool output evaluation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Policy evaluation failed"})
		return
	}

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	d.writeTrustedDataEvents(agent.ID, requestID, events, results, float32(latencyMs))

	writeJSON(w, http.StatusOK, EvaluateToolOutputsResp{
		Results:   trustedDataVerdicts(results),
		RequestID: requestID,
		LatencyMs: latencyMs,
	})
}

// handleEvaluateTurn implements POST /v1/evaluate/turn: the full proxy
// flow of one conversation turn. Prior tool outputs are scored first, the
// trust context is derived from them, and the model's proposed calls are
// then gated against that context. Exactly two bulk policy reads happen
// regardless of batch sizes.
func (d *Dependencies) handleEvaluateTurn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req EvaluateTurnReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	events, detail := toToolOutputs(req.PriorOutputs)
	if detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}
	calls, detail := toToolCalls(req.Calls)
	if detail != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: detail})
		return
	}

	agent := agentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing agent context"})
		return
	}

	contextTrusted, outputResults, err := d.TrustedData.ComputeTrustContext(r.Context(), agent.ID, events)
	if err != nil {
		d.Logger.Error("trust context computation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Policy evaluation failed"})
		return
	}

	result, err := d.Invocation.EvaluateToolCalls(r.Context(), agent.ID, calls, contextTrusted)
	if err != nil {
		d.Logger.Error("tool call evaluation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Policy evaluation failed"})
		return
	}

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	d.writeTrustedDataEvents(agent.ID, requestID, events, outputResults, float32(latencyMs))
	d.writeInvocationEvents(agent.ID, requestID, contextTrusted, calls, result, float32(latencyMs))

	writeJSON(w, http.StatusOK, EvaluateTurnResp{
		ContextTrusted: contextTrusted,
		OutputResults:  trustedDataVerdicts(outputResults),
		Invocation:     invocationVerdict(result),
		RequestID:      requestID,
		LatencyMs:      latencyMs,
	})
}

// --- request/response mapping ---

func toToolCalls(reqs []ToolCallReq) ([]policy.ToolCall, string) {
	calls := make([]policy.ToolCall, 0, len(reqs))
	for _, c := range reqs {
		if c.Name == "" {
			return nil, "every call requires a name"
		}
		calls = append(calls, policy.ToolCall{Name: c.Name, Arguments: c.Arguments})
	}
	return calls, ""
}

func toToolOutputs(reqs []ToolOutputReq) ([]policy.ToolOutputEvent, string) {
	events := make([]policy.ToolOutputEvent, 0, len(reqs))
	for _, o := range reqs {
		if o.ToolName == "" {
			return nil, "every output requires a tool_name"
		}
		events = append(events, policy.ToolOutputEvent{ToolName: o.ToolName, Output: o.Output})
	}
	return events, ""
}

func invocationVerdict(r policy.InvocationResult) InvocationVerdict {
	return InvocationVerdict{
		Allowed:      r.Allowed,
		Reason:       r.Reason,
		ToolCallName: r.ToolCallName,
	}
}

func trustedDataVerdicts(results []policy.TrustedDataResult) []TrustedDataVerdict {
	out := make([]TrustedDataVerdict, 0, len(results))
	for _, r := range results {
		out = append(out, TrustedDataVerdict{
			Trusted:             r.Trusted,
			Blocked:             r.Blocked,
			SanitizeWithDualLLM: r.Sanitize,
			Reason:              r.Reason,
		})
	}
	return out
}

// --- audit events ---

func (d *Dependencies) writeInvocationEvents(agentID, requestID string, contextTrusted bool, calls []policy.ToolCall, result policy.InvocationResult, latencyMs float32) {
	now := time.Now()
	for _, call := range calls {
		verdict := "allowed"
		reason := ""
		last := false
		if !result.Allowed && call.Name == result.ToolCallName {
			verdict = "blocked"
			reason = result.Reason
			last = true // calls after the blocking one were never evaluated
		}
		d.Writer.Write(&storage.DecisionEvent{
			RequestID:      requestID,
			AgentID:        agentID,
			Timestamp:      now,
			Kind:           storage.KindToolCall,
			ToolName:       call.Name,
			Verdict:        verdict,
			Reason:         reason,
			ContextTrusted: contextTrusted,
			LatencyMs:      latencyMs,
			Source:         "proxy",
		})
		if last {
			break
		}
	}
}

func (d *Dependencies) writeTrustedDataEvents(agentID, requestID string, events []policy.ToolOutputEvent, results []policy.TrustedDataResult, latencyMs float32) {
	now := time.Now()
	for i, ev := range events {
		if i >= len(results) {
			break
		}
		d.Writer.Write(&storage.DecisionEvent{
			RequestID:      requestID,
			AgentID:        agentID,
			Timestamp:      now,
			Kind:           storage.KindToolOutput,
			ToolName:       ev.ToolName,
			Verdict:        trustVerdictString(results[i]),
			Reason:         results[i].Reason,
			ContextTrusted: results[i].Trusted,
			LatencyMs:      latencyMs,
			Source:         "proxy",
		})
	}
}

func trustVerdictString(r policy.TrustedDataResult) string {
	switch {
	case r.Blocked:
		return "blocked"
	case r.Sanitize:
		return "sanitize"
	case r.Trusted:
		return "trusted"
	default:
		return "untrusted"
	}
}
