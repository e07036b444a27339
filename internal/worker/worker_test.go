package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/adapter"
	"accord/internal/eventbus"
	"accord/internal/historylog"
	"accord/internal/model"
	"accord/internal/session"
)

const sampleRequestBody = `---
id: req-1
from: orchestrator
to: backend
scope: internal
type: implement
priority: high
status: pending
created: 2026-01-01T00:00:00Z
updated: 2026-01-01T00:00:00Z
attempts: 0
---
Please implement the widget endpoint.
`

const sampleCommandBody = `---
id: req-cmd-1
from: orchestrator
to: backend
type: command
command: status
priority: medium
status: pending
created: 2026-01-01T00:00:00Z
updated: 2026-01-01T00:00:00Z
attempts: 0
---
`

func writeReqFile(t *testing.T, accordDir, service, name, content string) string {
	t.Helper()
	dir := filepath.Join(accordDir, "comms", "inbox", service)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type fakeAdapter struct {
	result adapter.InvokeResult
	err    error
}

func (f *fakeAdapter) Invoke(_ context.Context, req adapter.InvokeRequest, onEvent func(model.StreamEvent)) (adapter.InvokeResult, error) {
	if onEvent != nil {
		onEvent(model.StreamEvent{Type: model.StreamText, Text: "working"})
	}
	return f.result, f.err
}

func (f *fakeAdapter) SupportsResume() bool { return true }

func baseConfig(t *testing.T, accordDir string, ad adapter.Adapter) Config {
	t.Helper()
	hist, err := historylog.NewWriter(accordDir)
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	return Config{
		AccordDir: accordDir,
		Services:  []string{"backend"},
		ServiceConfigs: map[string]ServiceConfig{
			"backend": {WorkingDir: accordDir, Adapter: ad, Model: "claude-haiku"},
		},
		Sessions:    session.NewManager(accordDir, model.RotationPolicy{MaxRequests: 10}),
		History:     hist,
		Bus:         eventbus.New(),
		Sync:        nil,
		MaxAttempts: 3,
	}
}

func parseFrontmatterField(t *testing.T, path, field string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(data))
	prefix := field + ": "
	for _, line := range lines {
		if len(line) > len(prefix) && line[:len(prefix)] == prefix {
			return line[len(prefix):]
		}
	}
	return ""
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestProcessRequestCommandFastPath(t *testing.T) {
	dir := t.TempDir()
	path := writeReqFile(t, dir, "backend", "req-cmd-1.md", sampleCommandBody)

	cfg := baseConfig(t, dir, &fakeAdapter{})
	w := New("worker-1", cfg)
	slot := &model.WorkerSlot{WorkerID: "worker-1", State: model.WorkerIdle}

	req := &model.Request{ID: "req-cmd-1", ServiceName: "backend", Type: model.CommandType,
		Command: model.CommandStatus, Path: path, Status: model.StatusPending}

	result := w.ProcessRequest(context.Background(), slot, req)

	assert.True(t, result.Success)
	assert.Equal(t, model.WorkerIdle, slot.State)
	assert.Empty(t, slot.CurrentRequestID)

	archivedPath := filepath.Join(dir, "comms", "archive", "req-cmd-1.md")
	_, err := os.Stat(archivedPath)
	assert.NoError(t, err)
}

func TestProcessRequestAgentPathSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeReqFile(t, dir, "backend", "req-1.md", sampleRequestBody)

	ad := &fakeAdapter{result: adapter.InvokeResult{SessionID: "sess-abc", Text: "done", CostUSD: 0.01}}
	cfg := baseConfig(t, dir, ad)
	w := New("worker-1", cfg)
	slot := &model.WorkerSlot{WorkerID: "worker-1"}

	req := &model.Request{ID: "req-1", ServiceName: "backend", Path: path, Status: model.StatusPending}

	result := w.ProcessRequest(context.Background(), slot, req)

	assert.True(t, result.Success)
	_, err := os.Stat(filepath.Join(dir, "comms", "archive", "req-1.md"))
	assert.NoError(t, err)

	sess := cfg.Sessions.GetSession("backend")
	require.NotNil(t, sess)
	assert.Equal(t, "sess-abc", sess.SessionID)
}

func TestProcessRequestAgentPathFailureRetries(t *testing.T) {
	dir := t.TempDir()
	path := writeReqFile(t, dir, "backend", "req-1.md", sampleRequestBody)

	ad := &fakeAdapter{err: errors.New("timeout")}
	cfg := baseConfig(t, dir, ad)
	cfg.MaxAttempts = 3
	w := New("worker-1", cfg)
	slot := &model.WorkerSlot{WorkerID: "worker-1"}

	req := &model.Request{ID: "req-1", ServiceName: "backend", Path: path, Status: model.StatusPending}

	result := w.ProcessRequest(context.Background(), slot, req)

	assert.False(t, result.Success)
	// Request stays in the inbox, reverted to pending, since attempts (1) < maxAttempts (3).
	_, err := os.Stat(filepath.Join(dir, "comms", "archive", "req-1.md"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "pending", parseFrontmatterField(t, path, "status"))

	checkpoint := cfg.Sessions.ReadCheckpoint("req-1")
	assert.Contains(t, checkpoint, "timeout")
}

func TestProcessRequestAgentPathExhaustedEscalates(t *testing.T) {
	dir := t.TempDir()
	path := writeReqFile(t, dir, "backend", "req-1.md", sampleRequestBody)

	ad := &fakeAdapter{err: errors.New("timeout")}
	cfg := baseConfig(t, dir, ad)
	cfg.MaxAttempts = 1
	w := New("worker-1", cfg)
	slot := &model.WorkerSlot{WorkerID: "worker-1"}

	req := &model.Request{ID: "req-1", ServiceName: "backend", Path: path, Status: model.StatusPending}

	result := w.ProcessRequest(context.Background(), slot, req)

	assert.False(t, result.Success)
	_, err := os.Stat(filepath.Join(dir, "comms", "archive", "req-1.md"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "comms", "inbox", "orchestrator"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "req-escalation-")
}

func TestProcessRequestRestoresSlotOnEveryPath(t *testing.T) {
	dir := t.TempDir()
	path := writeReqFile(t, dir, "backend", "req-1.md", sampleRequestBody)

	ad := &fakeAdapter{err: errors.New("boom")}
	cfg := baseConfig(t, dir, ad)
	w := New("worker-1", cfg)
	slot := &model.WorkerSlot{WorkerID: "worker-1"}

	req := &model.Request{ID: "req-1", ServiceName: "backend", Path: path, Status: model.StatusPending}
	w.ProcessRequest(context.Background(), slot, req)

	assert.Equal(t, model.WorkerIdle, slot.State)
	assert.Empty(t, slot.CurrentRequestID)
	assert.Empty(t, slot.CurrentService)
	assert.Equal(t, "backend", slot.LastServiceName)
}
