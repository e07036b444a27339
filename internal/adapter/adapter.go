// Package adapter implements the uniform agent invocation contract over
// three backends: OneShot (native provider SDKs), Persistent (long-lived
// per-working-directory sessions), and Shell (external CLI subprocess).
// The abstraction is grounded on the teacher pack's pkg/agent/llm.LLMClient
// interface, generalized from a single-provider completion call to a
// streaming, session-aware agent invocation.
package adapter

import (
	"context"
	"time"

	"accord/internal/model"
	"accord/pkg/logx"
)

var logger = logx.NewLogger("adapter")

// InvokeRequest is the uniform input to an Adapter invocation.
type InvokeRequest struct {
	Prompt          string
	WorkingDir      string
	Model           string
	SystemPrompt    string
	ResumeSessionID string
	Timeout         time.Duration

	// MaxTurns bounds the agent's internal tool-use loop for one
	// invocation; zero means unbounded. MaxBudgetUSD bounds projected
	// spend for the invocation; zero means unbounded.
	MaxTurns     int
	MaxBudgetUSD float64
}

// InvokeResult is the uniform output of a successful Adapter invocation.
type InvokeResult struct {
	SessionID  string
	CostUSD    float64
	NumTurns   int
	Usage      model.TokenUsage
	ModelUsage map[string]model.ModelUsage
	DurationMs int64
	Text       string
}

// Adapter is the capability set every backend implements.
type Adapter interface {
	// Invoke runs one agent turn, streaming events to onEvent as they
	// arrive, and returns the final result once a result event is
	// observed or the context is done.
	Invoke(ctx context.Context, req InvokeRequest, onEvent func(model.StreamEvent)) (InvokeResult, error)

	// SupportsResume reports whether ResumeSessionID is honored.
	SupportsResume() bool
}

// AgentError surfaces an is_error stream event or invocation-level failure
// from any backend.
type AgentError struct {
	Backend string
	Message string
}

func (e *AgentError) Error() string {
	return "agent error (" + e.Backend + "): " + e.Message
}
