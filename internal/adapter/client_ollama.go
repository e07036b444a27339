package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// ollamaClient wraps the Ollama local-runtime client, grounded on the
// teacher's pkg/agent/internal/llmimpl/ollama.Client.
type ollamaClient struct {
	client *api.Client
}

func newOllamaClient(hostURL string) *ollamaClient {
	parsed, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsed, _ = url.Parse("http://localhost:11434")
	}
	return &ollamaClient{client: api.NewClient(parsed, http.DefaultClient)}
}

func (c *ollamaClient) Complete(ctx context.Context, req completionRequest) (completionResponse, error) {
	var messages []api.Message
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.UserPrompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return completionResponse{}, fmt.Errorf("ollama complete: %w", err)
	}

	return completionResponse{
		Content:      response.Message.Content,
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
		StopReason:   response.DoneReason,
	}, nil
}
