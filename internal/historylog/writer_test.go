package historylog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/model"
)

func TestAppendWritesJSONLLine(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, w.Append(model.HistoryEntry{
		Timestamp:  ts,
		RequestID:  "req-1",
		FromStatus: model.StatusPending,
		ToStatus:   model.StatusInProgress,
		Actor:      "worker-1",
	}))

	path := filepath.Join(dir, "comms", "history", "2026-03-05-worker-1.jsonl")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry model.HistoryEntry
	require.NoError(t, json.Unmarshal(trimNewline(data), &entry))
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, model.StatusInProgress, entry.ToStatus)
}

func TestAppendRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	day1 := time.Date(2026, 3, 5, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 6, 1, 0, 0, 0, time.UTC)

	require.NoError(t, w.Append(model.HistoryEntry{Timestamp: day1, RequestID: "a", Actor: "worker-1"}))
	require.NoError(t, w.Append(model.HistoryEntry{Timestamp: day2, RequestID: "b", Actor: "worker-1"}))

	historyDir := filepath.Join(dir, "comms", "history")
	_, err = os.Stat(filepath.Join(historyDir, "2026-03-05-worker-1.jsonl"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(historyDir, "2026-03-06-worker-1.jsonl"))
	assert.NoError(t, err)
}

func TestAppendSeparatesByActor(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, w.Append(model.HistoryEntry{Timestamp: ts, RequestID: "a", Actor: "worker-1"}))
	require.NoError(t, w.Append(model.HistoryEntry{Timestamp: ts, RequestID: "b", Actor: "coordinator"}))

	historyDir := filepath.Join(dir, "comms", "history")
	entries, err := os.ReadDir(historyDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func trimNewline(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return data[:len(data)-1]
	}
	return data
}
