package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiClient wraps the official OpenAI SDK client, grounded on the
// teacher's pkg/agent/internal/llmimpl/openaiofficial.OfficialClient.
type openaiClient struct {
	client openai.Client
}

func newOpenAIClient(apiKey string) *openaiClient {
	return &openaiClient{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (c *openaiClient) Complete(ctx context.Context, req completionRequest) (completionResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(float64(req.Temperature)),
	})
	if err != nil {
		return completionResponse{}, fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return completionResponse{}, fmt.Errorf("openai complete: empty response")
	}

	choice := resp.Choices[0]
	return completionResponse{
		Content:      choice.Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		StopReason:   string(choice.FinishReason),
	}, nil
}
