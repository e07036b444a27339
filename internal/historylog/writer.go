// Package historylog appends immutable HistoryEntry records to daily
// rotated JSONL files under comms/history/YYYY-MM-DD-{actor}.jsonl,
// grounded on the teacher's pkg/eventlog.Writer daily-rotation pattern,
// generalized to rotate per (date, actor) rather than per date alone.
package historylog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"accord/internal/model"
	"accord/pkg/logx"
)

var logger = logx.NewLogger("historylog")

// Writer owns one open *os.File per actor, rotating to a new file when the
// date changes.
type Writer struct {
	mu      sync.Mutex
	dir     string
	files   map[string]*openFile
}

type openFile struct {
	file *os.File
	date string
}

// NewWriter constructs a Writer appending under accordDir/comms/history.
func NewWriter(accordDir string) (*Writer, error) {
	dir := filepath.Join(accordDir, "comms", "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Writer{dir: dir, files: make(map[string]*openFile)}, nil
}

// Append writes entry as one JSON line to today's file for entry.Actor,
// rotating if the date has changed since the last write for that actor.
func (w *Writer) Append(entry model.HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	of, err := w.rotateIfNeeded(entry.Actor, entry.Timestamp)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	data = append(data, '\n')

	if _, err := of.file.Write(data); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return of.file.Sync()
}

func (w *Writer) rotateIfNeeded(actor string, ts time.Time) (*openFile, error) {
	date := ts.Format("2006-01-02")
	if of, ok := w.files[actor]; ok && of.date == date {
		return of, nil
	}

	if of, ok := w.files[actor]; ok {
		of.file.Close()
	}

	name := fmt.Sprintf("%s-%s.jsonl", date, actor)
	path := filepath.Join(w.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history file %s: %w", path, err)
	}

	of := &openFile{file: file, date: date}
	w.files[actor] = of
	return of, nil
}

// Close closes every open file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for actor, of := range w.files {
		if err := of.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close history file for %s: %w", actor, err)
		}
	}
	w.files = make(map[string]*openFile)
	return firstErr
}
