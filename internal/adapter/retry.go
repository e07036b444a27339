package adapter

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig mirrors the teacher's pkg/agent.RetryConfig shape, carried
// here unchanged since the exponential-backoff-with-jitter policy applies
// equally to every provider client.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig matches the teacher's defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if attempt == 0 {
		return 0
	}
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter {
		jitter := (rand.Float64()*2 - 1) * 0.1 * float64(d)
		d += time.Duration(jitter)
		if d < 0 {
			d = c.InitialDelay
		}
	}
	return d
}

// withRetry runs fn up to config.MaxRetries+1 times with exponential
// backoff, stopping early if ctx is done.
func withRetry(ctx context.Context, config RetryConfig, fn func() (completionResponse, error)) (completionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return completionResponse{}, ctx.Err()
			case <-time.After(config.delay(attempt)):
			}
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return completionResponse{}, lastErr
}
