package adapter

import (
	"strings"
)

// Provider identifies which concrete SDK backs a model name, mirroring the
// teacher's config.ModelProviders table.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
)

// modelProviderPrefixes maps a model-name prefix to its provider. Ollama
// models are the fallback for anything unrecognized, matching local-runtime
// conventions where arbitrary model tags are pulled by the user.
var modelProviderPrefixes = []struct {
	prefix   string
	provider Provider
}{
	{"claude-", ProviderAnthropic},
	{"gpt-", ProviderOpenAI},
	{"o1-", ProviderOpenAI},
	{"o3-", ProviderOpenAI},
	{"gemini-", ProviderGoogle},
}

// ResolveProvider returns the provider backing modelName.
func ResolveProvider(modelName string) Provider {
	for _, entry := range modelProviderPrefixes {
		if strings.HasPrefix(modelName, entry.prefix) {
			return entry.provider
		}
	}
	return ProviderOllama
}
