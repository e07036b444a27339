package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/adapter"
	"accord/internal/dispatch"
	"accord/internal/eventbus"
	"accord/internal/historylog"
	"accord/internal/model"
	"accord/internal/session"
	"accord/internal/worker"
)

type noopAdapter struct{ calls int }

func (n *noopAdapter) Invoke(context.Context, adapter.InvokeRequest, func(model.StreamEvent)) (adapter.InvokeResult, error) {
	n.calls++
	return adapter.InvokeResult{}, nil
}
func (n *noopAdapter) SupportsResume() bool { return false }

func writeReq(t *testing.T, dir, service, id string) {
	t.Helper()
	svcDir := filepath.Join(dir, "comms", "inbox", service)
	require.NoError(t, os.MkdirAll(svcDir, 0o755))
	path := filepath.Join(svcDir, "req-"+id+".md")
	body := "---\nid: " + id + "\nfrom: orchestrator\nto: " + service + "\npriority: high\nstatus: pending\nattempts: 0\n---\nbody\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestDispatcher(t *testing.T, dir string, ad adapter.Adapter) *dispatch.Dispatcher {
	t.Helper()
	hist, err := historylog.NewWriter(dir)
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	bus := eventbus.New()
	cfg := worker.Config{
		AccordDir: dir,
		Services:  []string{"svc-a"},
		ServiceConfigs: map[string]worker.ServiceConfig{
			"svc-a": {WorkingDir: dir, Adapter: ad},
		},
		Sessions:    session.NewManager(dir, model.RotationPolicy{MaxRequests: 10}),
		History:     hist,
		Bus:         bus,
		MaxAttempts: 3,
	}
	return dispatch.New(1, cfg, nil, bus)
}

func TestSchedulerTriggerNowRunsATick(t *testing.T) {
	dir := t.TempDir()
	writeReq(t, dir, "svc-a", "1")

	ad := &noopAdapter{}
	d := newTestDispatcher(t, dir, ad)
	bus := eventbus.New()

	var ticks int
	bus.Subscribe(eventbus.TopicSchedulerTick, func(eventbus.Event) { ticks++ })

	s := New(dir, []string{"svc-a"}, time.Hour, d, nil, bus)
	s.Start(context.Background())
	defer s.Stop()

	s.TriggerNow()
	// Start runs one tick on its own; TriggerNow must cause a second.
	assert.Eventually(t, func() bool { return ticks >= 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return ad.calls >= 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopHaltsTheLoop(t *testing.T) {
	dir := t.TempDir()
	d := newTestDispatcher(t, dir, &noopAdapter{})
	bus := eventbus.New()

	s := New(dir, []string{"svc-a"}, 5*time.Millisecond, d, nil, bus)
	s.Start(context.Background())
	s.Stop()

	var ticks int
	bus.Subscribe(eventbus.TopicSchedulerTick, func(eventbus.Event) { ticks++ })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, ticks, "no further ticks should fire once stopped")
}

func TestSchedulerContextCancellationHaltsLoop(t *testing.T) {
	dir := t.TempDir()
	d := newTestDispatcher(t, dir, &noopAdapter{})
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(dir, []string{"svc-a"}, 5*time.Millisecond, d, nil, bus)
	s.Start(ctx)
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop did not exit after context cancellation")
	}
}
