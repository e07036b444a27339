package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveProvider(t *testing.T) {
	cases := map[string]Provider{
		"claude-sonnet-4-20250514": ProviderAnthropic,
		"gpt-5":                    ProviderOpenAI,
		"o3-mini":                  ProviderOpenAI,
		"gemini-2.0-flash":         ProviderGoogle,
		"llama3.1":                 ProviderOllama,
		"":                         ProviderOllama,
	}
	for model, want := range cases {
		assert.Equal(t, want, ResolveProvider(model), "model %s", model)
	}
}
