package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	resp, err := withRetry(context.Background(), DefaultRetryConfig, func() (completionResponse, error) {
		calls++
		return completionResponse{Content: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRetriesThenSucceeds(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2.0}
	calls := 0
	resp, err := withRetry(context.Background(), cfg, func() (completionResponse, error) {
		calls++
		if calls < 3 {
			return completionResponse{}, errors.New("transient")
		}
		return completionResponse{Content: "eventually"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "eventually", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2.0}
	calls := 0
	_, err := withRetry(context.Background(), cfg, func() (completionResponse, error) {
		calls++
		return completionResponse{}, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestWithRetryStopsOnContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2.0}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := withRetry(ctx, cfg, func() (completionResponse, error) {
		calls++
		return completionResponse{}, errors.New("always fails")
	})
	require.Error(t, err)
	assert.Less(t, calls, 6)
}
