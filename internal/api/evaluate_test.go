package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ts-31/archestra-sub000/internal/engine"
	"github.com/ts-31/archestra-sub000/internal/policy"
	"github.com/ts-31/archestra-sub000/internal/storage"
	"github.com/ts-31/archestra-sub000/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testAPIKey = "agk_0123456789abcdef0123456789abcdef"

// --- fakes ---

type fakeRepo struct {
	invocation  *policy.InvocationPolicySet
	trustedData *policy.TrustedDataPolicySet
}

func (r *fakeRepo) LoadInvocationPolicies(_ context.Context, _ string, _ []string) (*policy.InvocationPolicySet, error) {
	return r.invocation, nil
}

func (r *fakeRepo) LoadTrustedDataPolicies(_ context.Context, _ string, _ []string) (*policy.TrustedDataPolicySet, error) {
	return r.trustedData, nil
}

type fakeAuth struct {
	agents map[string]*store.AgentAuth // by prefix
}

func (a *fakeAuth) LookupAgentByKeyPrefix(_ context.Context, prefix string) (*store.AgentAuth, error) {
	return a.agents[prefix], nil
}

type captureWriter struct {
	mu     sync.Mutex
	events []*storage.DecisionEvent
}

func (w *captureWriter) Write(event *storage.DecisionEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
}

func (w *captureWriter) Close() {}

func (w *captureWriter) all() []*storage.DecisionEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*storage.DecisionEvent, len(w.events))
	copy(out, w.events)
	return out
}

// newTestServer wires a router against in-memory fakes. The returned
// captureWriter records audit events for assertions.
func newTestServer(t *testing.T, repo *fakeRepo) (*httptest.Server, *captureWriter) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	auth := &fakeAuth{agents: map[string]*store.AgentAuth{
		testAPIKey[:8]: {ID: "agent-1", Name: "mail-bot", APIKeyHash: string(hash)},
	}}

	writer := &captureWriter{}
	logger := zap.NewNop()
	deps := &Dependencies{
		Auth:        auth,
		Invocation:  engine.NewInvocationEvaluator(repo, logger),
		TrustedData: engine.NewTrustedDataEvaluator(repo, logger),
		Writer:      writer,
		Logger:      logger,
		CacheTTL:    time.Minute,
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv, writer
}

func postJSON(t *testing.T, url, apiKey string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

// sendEmailRepo registers send_email as blocked-by-default with a block
// rule on the recipient domain.
func sendEmailRepo() *fakeRepo {
	return &fakeRepo{
		invocation: &policy.InvocationPolicySet{
			Policies: map[string][]policy.ToolInvocationPolicy{
				"send_email": {{
					ID:           "p1",
					ArgumentPath: "to",
					Operator:     policy.OpEndsWith,
					Value:        "@evil.example",
					Action:       policy.InvocationBlockAlways,
					Reason:       "External recipients are not allowed",
				}},
			},
			Config: map[string]policy.SecurityConfig{
				"send_email": {AllowWhenUntrusted: false, ResultTreatment: policy.TreatmentUntrusted},
			},
		},
		trustedData: &policy.TrustedDataPolicySet{
			Policies: map[string][]policy.TrustedDataPolicy{
				"read_email": {{
					ID:            "t1",
					AttributePath: "from",
					Operator:      policy.OpEndsWith,
					Value:         "@corp.example",
					Action:        policy.DataMarkTrusted,
				}},
			},
			Config: map[string]policy.SecurityConfig{
				"read_email": {ResultTreatment: policy.TreatmentUntrusted},
			},
		},
	}
}

// --- tests ---

func TestEvaluateToolCallsRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/tool-calls", "", EvaluateToolCallsReq{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/evaluate/tool-calls", "agk_wrongkeywrongkeywrongkey", EvaluateToolCallsReq{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvaluateToolCallsAllowed(t *testing.T) {
	srv, writer := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/tool-calls", testAPIKey, EvaluateToolCallsReq{
		Calls: []ToolCallReq{{
			Name:      "send_email",
			Arguments: map[string]any{"to": "boss@corp.example"},
		}},
		ContextTrusted: true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[EvaluateToolCallsResp](t, resp)
	if !body.Allowed {
		t.Fatalf("allowed = false (%s), want true", body.Reason)
	}
	if body.RequestID == "" {
		t.Fatal("missing request_id")
	}

	events := writer.all()
	if len(events) != 1 || events[0].Verdict != "allowed" {
		t.Fatalf("events = %+v, want one allowed event", events)
	}
}

func TestEvaluateToolCallsBlocked(t *testing.T) {
	srv, writer := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/tool-calls", testAPIKey, EvaluateToolCallsReq{
		Calls: []ToolCallReq{{
			Name:      "send_email",
			Arguments: map[string]any{"to": "attacker@evil.example"},
		}},
		ContextTrusted: true,
	})
	body := decodeBody[EvaluateToolCallsResp](t, resp)
	if body.Allowed {
		t.Fatal("allowed = true, want blocked")
	}
	if body.Reason != "External recipients are not allowed" {
		t.Fatalf("reason = %q", body.Reason)
	}
	if body.ToolCallName != "send_email" {
		t.Fatalf("tool_call_name = %q", body.ToolCallName)
	}

	events := writer.all()
	if len(events) != 1 || events[0].Verdict != "blocked" {
		t.Fatalf("events = %+v, want one blocked event", events)
	}
}

func TestEvaluateToolCallsUntrustedContextDefault(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	// context_trusted omitted: the unstated trust state is untrusted, and
	// send_email does not allow untrusted usage.
	resp := postJSON(t, srv.URL+"/v1/evaluate/tool-calls", testAPIKey, map[string]any{
		"calls": []map[string]any{{
			"name":      "send_email",
			"arguments": map[string]any{"to": "boss@corp.example"},
		}},
	})
	body := decodeBody[EvaluateToolCallsResp](t, resp)
	if body.Allowed {
		t.Fatal("allowed = true, want blocked under untrusted context")
	}
}

func TestEvaluateToolCallsRejectsUnnamedCall(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/tool-calls", testAPIKey, EvaluateToolCallsReq{
		Calls: []ToolCallReq{{Name: ""}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvaluateToolOutputs(t *testing.T) {
	srv, writer := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/tool-outputs", testAPIKey, EvaluateToolOutputsReq{
		Outputs: []ToolOutputReq{
			{ToolName: "read_email", Output: map[string]any{"from": "boss@corp.example"}},
			{ToolName: "read_email", Output: map[string]any{"from": "stranger@other.example"}},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[EvaluateToolOutputsResp](t, resp)
	if len(body.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(body.Results))
	}
	if !body.Results[0].Trusted {
		t.Fatalf("first output untrusted: %q", body.Results[0].Reason)
	}
	if body.Results[1].Trusted {
		t.Fatal("second output trusted, want untrusted fallback")
	}

	events := writer.all()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Verdict != "trusted" || events[1].Verdict != "untrusted" {
		t.Fatalf("verdicts = %q, %q", events[0].Verdict, events[1].Verdict)
	}
}

func TestEvaluateTurnTaintedContextBlocksCall(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/turn", testAPIKey, EvaluateTurnReq{
		PriorOutputs: []ToolOutputReq{
			{ToolName: "read_email", Output: map[string]any{"from": "stranger@other.example"}},
		},
		Calls: []ToolCallReq{{
			Name:      "send_email",
			Arguments: map[string]any{"to": "boss@corp.example"},
		}},
	})
	body := decodeBody[EvaluateTurnResp](t, resp)
	if body.ContextTrusted {
		t.Fatal("context trusted despite untrusted prior output")
	}
	if body.Invocation.Allowed {
		t.Fatal("send_email allowed under tainted context")
	}
}

func TestEvaluateTurnCleanContextAllowsCall(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	resp := postJSON(t, srv.URL+"/v1/evaluate/turn", testAPIKey, EvaluateTurnReq{
		PriorOutputs: []ToolOutputReq{
			{ToolName: "read_email", Output: map[string]any{"from": "boss@corp.example"}},
		},
		Calls: []ToolCallReq{{
			Name:      "send_email",
			Arguments: map[string]any{"to": "boss@corp.example"},
		}},
	})
	body := decodeBody[EvaluateTurnResp](t, resp)
	if !body.ContextTrusted {
		t.Fatal("context untrusted despite trusted prior output")
	}
	if !body.Invocation.Allowed {
		t.Fatalf("send_email blocked under trusted context: %q", body.Invocation.Reason)
	}
	if len(body.OutputResults) != 1 || !body.OutputResults[0].Trusted {
		t.Fatalf("output_results = %+v", body.OutputResults)
	}
}

func TestEvaluateInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/evaluate/tool-calls", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, sendEmailRepo())

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
