package model

import "time"

// WorkerState is the busy/idle state of a WorkerSlot.
type WorkerState string

const (
	WorkerIdle WorkerState = "idle"
	WorkerBusy WorkerState = "busy"
)

// WorkerSlot is transient bookkeeping for one logical concurrency unit in
// the Dispatcher's pool.
type WorkerSlot struct {
	WorkerID         string
	State            WorkerState
	CurrentRequestID string
	CurrentService   string
	StartedAt        time.Time

	// LastServiceName supports session affinity: pickIdleWorker prefers a
	// worker whose last request was for the candidate's service.
	LastServiceName string
}

// StreamEventType discriminates the StreamEvent union delivered from an
// Agent Adapter to its caller during an invocation.
type StreamEventType string

const (
	StreamText       StreamEventType = "text"
	StreamToolUse    StreamEventType = "tool_use"
	StreamToolResult StreamEventType = "tool_result"
	StreamThinking   StreamEventType = "thinking"
	StreamStatus     StreamEventType = "status"
)

// StreamEvent is a discriminated union of adapter output delivered
// incrementally during Invoke.
type StreamEvent struct {
	Type    StreamEventType
	Text    string // Type == StreamText or StreamThinking or StreamStatus
	Input   any    // Type == StreamToolUse
	ToolUse string // Type == StreamToolUse: tool name
	Output  string // Type == StreamToolResult
	IsError bool   // Type == StreamToolResult
}

// RequestResult is what a Worker always returns from processing one
// request, success or failure — it never propagates an error to its
// caller, matching the Dispatcher's per-worker failure isolation.
type RequestResult struct {
	RequestID  string
	Success    bool
	DurationMs int64
	Error      error
}
