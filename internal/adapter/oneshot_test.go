package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShotInvokeMissingCredentialsSurfacesAgentError(t *testing.T) {
	o := NewOneShot(Credentials{})
	_, err := o.Invoke(context.Background(), InvokeRequest{Model: "claude-sonnet-4-20250514", Prompt: "hi"}, nil)
	require.Error(t, err)
	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Contains(t, agentErr.Message, "anthropic api key")
}

func TestOneShotSupportsResumeTrue(t *testing.T) {
	o := NewOneShot(Credentials{})
	assert.True(t, o.SupportsResume())
}

func TestOneShotEstimateTokens(t *testing.T) {
	o := NewOneShot(Credentials{})
	n := o.estimateTokens("hello world, this is a test prompt")
	assert.Greater(t, n, 0)
}
