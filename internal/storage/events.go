// Package storage persists policy decision events for audit. Writes are
// asynchronous and must never block or fail the evaluation path.
package storage

import "time"

// EventWriter is the interface for writing decision events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *DecisionEvent)
	Close()
}

// Decision kinds.
const (
	KindToolCall   = "tool_call"
	KindToolOutput = "tool_output"
)

// DecisionEvent records one evaluator verdict: either a proposed tool
// call's invocation decision or a tool output's trust decision.
type DecisionEvent struct {
	RequestID      string
	AgentID        string
	Timestamp      time.Time
	Kind           string // tool_call | tool_output
	ToolName       string
	Verdict        string // allowed | blocked | trusted | untrusted | sanitize
	Reason         string
	ContextTrusted bool
	LatencyMs      float32
	Source         string
}
