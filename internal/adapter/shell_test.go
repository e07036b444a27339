package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/model"
)

func TestShellInvokeSuccess(t *testing.T) {
	s := NewShell([]string{"echo"})
	var events []model.StreamEvent
	result, err := s.Invoke(context.Background(), InvokeRequest{Prompt: "hello"}, func(e model.StreamEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "hello")
	require.Len(t, events, 2)
	assert.Equal(t, model.StreamText, events[0].Type)
	assert.Equal(t, model.StreamStatus, events[1].Type)
}

func TestShellInvokeNonZeroExit(t *testing.T) {
	s := NewShell([]string{"sh", "-c", "echo failmsg >&2; exit 3"})
	_, err := s.Invoke(context.Background(), InvokeRequest{Prompt: ""}, nil)
	require.Error(t, err)
	var failure *model.ShellFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.ExitStatus)
	assert.Contains(t, failure.Stderr, "failmsg")
}

func TestShellInvokeEmptyCommand(t *testing.T) {
	s := NewShell(nil)
	_, err := s.Invoke(context.Background(), InvokeRequest{}, nil)
	require.Error(t, err)
}

func TestShellInvokeRespectsTimeout(t *testing.T) {
	s := NewShell([]string{"sleep"})
	_, err := s.Invoke(context.Background(), InvokeRequest{Prompt: "1", Timeout: 10 * time.Millisecond}, nil)
	require.Error(t, err)
}

func TestShellSupportsResumeFalse(t *testing.T) {
	s := NewShell([]string{"echo"})
	assert.False(t, s.SupportsResume())
}

func TestRingBufferBoundsContent(t *testing.T) {
	rb := &ringBuffer{}
	big := make([]byte, shellRingBufferCap+1000)
	for i := range big {
		big[i] = 'a'
	}
	_, err := rb.Write(big)
	require.NoError(t, err)
	assert.LessOrEqual(t, rb.buf.Len(), shellRingBufferCap)
}
