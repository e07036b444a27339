package adapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// googleClient wraps the Google GenAI client, grounded on the teacher's
// pkg/agent/internal/llmimpl/google.GeminiClient. The client is created
// lazily on first use since construction requires a context.
type googleClient struct {
	apiKey string
	client *genai.Client
}

func newGoogleClient(apiKey string) *googleClient {
	return &googleClient{apiKey: apiKey}
}

func (c *googleClient) Complete(ctx context.Context, req completionRequest) (completionResponse, error) {
	if c.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return completionResponse{}, fmt.Errorf("google client init: %w", err)
		}
		c.client = client
	}

	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.UserPrompt}}}}, cfg)
	if err != nil {
		return completionResponse{}, fmt.Errorf("google complete: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return completionResponse{}, fmt.Errorf("google complete: empty response")
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}

	usage := completionResponse{Content: text}
	if result.UsageMetadata != nil {
		usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return usage, nil
}
