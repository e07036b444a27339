package adapter

import "context"

// completionMessage is the minimal message shape passed to a provider
// client — the codec/prompt layer is responsible for producing the final
// user-turn text, so unlike the teacher's llm.CompletionMessage this
// carries only a system prompt and a single user turn per invocation.
type completionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	MaxTokens    int
	Temperature  float32
}

type completionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// providerClient is the interface every concrete provider SDK wrapper
// implements, generalized from the teacher's pkg/agent/llm.LLMClient.
type providerClient interface {
	Complete(ctx context.Context, req completionRequest) (completionResponse, error)
}
