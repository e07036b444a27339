package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/tiktoken-go/tokenizer"

	"accord/internal/model"
)

// Credentials carries the per-provider secrets a OneShot adapter needs.
// Absence of a key for a provider that a request resolves to produces an
// AgentError rather than a panic.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	OllamaHostURL   string
}

// OneShot invokes a fresh provider completion per call, optionally passing
// a resume session id — grounded on the teacher's pkg/agent/llm.LLMClient
// abstraction, expanded to multiplex over four concrete provider clients
// selected by model name (mirroring config.ModelProviders).
type OneShot struct {
	creds   Credentials
	retry   RetryConfig
	clients map[Provider]providerClient
	codec   tokenizer.Codec
}

// NewOneShot constructs the multiplexing OneShot adapter. Provider clients
// are created lazily on first use of that provider.
func NewOneShot(creds Credentials) *OneShot {
	codec, _ := tokenizer.Get(tokenizer.Cl100kBase)
	return &OneShot{
		creds:   creds,
		retry:   DefaultRetryConfig,
		clients: make(map[Provider]providerClient),
		codec:   codec,
	}
}

// tokenPrice is a rough, illustrative per-1000-token price used
// only for pre-flight budget checks and result reporting — not a billing
// source of truth. Input/output are priced separately since output is
// reliably the more expensive side across every wired provider.
type tokenPrice struct {
	inputPer1K  float64
	outputPer1K float64
}

var providerPricing = map[Provider]tokenPrice{
	ProviderAnthropic: {inputPer1K: 0.003, outputPer1K: 0.015},
	ProviderOpenAI:    {inputPer1K: 0.0025, outputPer1K: 0.01},
	ProviderGoogle:    {inputPer1K: 0.00125, outputPer1K: 0.005},
	ProviderOllama:    {inputPer1K: 0, outputPer1K: 0},
}

func estimateCostUSD(provider Provider, inputTokens, outputTokens int) float64 {
	price, ok := providerPricing[provider]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*price.inputPer1K + float64(outputTokens)/1000*price.outputPer1K
}

func (o *OneShot) clientFor(provider Provider) (providerClient, error) {
	if c, ok := o.clients[provider]; ok {
		return c, nil
	}

	var c providerClient
	switch provider {
	case ProviderAnthropic:
		if o.creds.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic api key not configured")
		}
		c = newAnthropicClient(o.creds.AnthropicAPIKey)
	case ProviderOpenAI:
		if o.creds.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key not configured")
		}
		c = newOpenAIClient(o.creds.OpenAIAPIKey)
	case ProviderGoogle:
		if o.creds.GoogleAPIKey == "" {
			return nil, fmt.Errorf("google api key not configured")
		}
		c = newGoogleClient(o.creds.GoogleAPIKey)
	case ProviderOllama:
		c = newOllamaClient(o.creds.OllamaHostURL)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	o.clients[provider] = c
	return c, nil
}

// estimateTokens returns a rough token count for text, used for pre-flight
// budget checks; a zero is returned if encoding fails rather than erroring
// the invocation over an estimation helper.
func (o *OneShot) estimateTokens(text string) int {
	if o.codec == nil {
		return 0
	}
	ids, _, err := o.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

// maxCompletionTokens bounds every provider call's output, used both as
// the request cap and as the worst-case basis for pre-flight budget checks.
const maxCompletionTokens = 4096

// Invoke implements Adapter. Since OneShot has no true streaming surface in
// this backend, onEvent receives a single StreamText event followed by a
// StreamStatus "result" event, matching the shape the Worker expects from
// every backend. MaxTurns is a no-op here since OneShot only ever spends
// one turn per call; MaxBudgetUSD is enforced pre-flight against the
// projected worst-case cost of the call.
func (o *OneShot) Invoke(ctx context.Context, req InvokeRequest, onEvent func(model.StreamEvent)) (InvokeResult, error) {
	provider := ResolveProvider(req.Model)
	client, err := o.clientFor(provider)
	if err != nil {
		return InvokeResult{}, &model.AdapterTransientError{Err: &AgentError{Backend: "oneshot", Message: err.Error()}}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	estimatedPromptTokens := o.estimateTokens(req.SystemPrompt + req.Prompt)

	if req.MaxBudgetUSD > 0 {
		projected := estimateCostUSD(provider, estimatedPromptTokens, maxCompletionTokens)
		if projected > req.MaxBudgetUSD {
			return InvokeResult{}, &model.AdapterFatalError{Err: fmt.Errorf(
				"projected cost $%.4f for %s exceeds max_budget_usd $%.4f", projected, req.Model, req.MaxBudgetUSD)}
		}
	}

	resp, err := withRetry(ctx, o.retry, func() (completionResponse, error) {
		return client.Complete(ctx, completionRequest{
			SystemPrompt: req.SystemPrompt,
			UserPrompt:   req.Prompt,
			Model:        req.Model,
			MaxTokens:    maxCompletionTokens,
			Temperature:  0.7,
		})
	})
	if err != nil {
		return InvokeResult{}, &model.AdapterTransientError{Err: &AgentError{Backend: string(provider), Message: err.Error()}}
	}

	if onEvent != nil {
		onEvent(model.StreamEvent{Type: model.StreamText, Text: resp.Content})
		onEvent(model.StreamEvent{Type: model.StreamStatus, Text: "result"})
	}

	inputTokens := resp.InputTokens
	if inputTokens == 0 {
		inputTokens = estimatedPromptTokens
	}

	return InvokeResult{
		SessionID:  req.ResumeSessionID,
		NumTurns:   1,
		CostUSD:    estimateCostUSD(provider, inputTokens, resp.OutputTokens),
		DurationMs: time.Since(start).Milliseconds(),
		Usage: model.TokenUsage{
			InputTokens:  int64(inputTokens),
			OutputTokens: int64(resp.OutputTokens),
		},
		ModelUsage: map[string]model.ModelUsage{
			req.Model: {
				InputTokens:  int64(inputTokens),
				OutputTokens: int64(resp.OutputTokens),
			},
		},
		Text: resp.Content,
	}, nil
}

// SupportsResume implements Adapter. OneShot always reports true per
// spec §4.4. The resume session id is not sent to the provider; it is
// only echoed back as the result's SessionID.
func (o *OneShot) SupportsResume() bool {
	return true
}
