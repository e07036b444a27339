// Package session owns the live agent session table (keyed by service name)
// and the per-request checkpoint files used to carry failure context across
// retries. Persistence follows the JSON-file-per-entity pattern in the
// teacher pack's pkg/state store, generalized here to a single JSON map.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"accord/internal/model"
	"accord/pkg/logx"
)

var logger = logx.NewLogger("session")

const sessionsFileName = ".agent-sessions.json"

// Manager owns the serviceName -> Session map and the checkpoint directory.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	policy   model.RotationPolicy
	checkDir string

	// checksums tracks the last-written checkpoint fingerprint per request
	// id, so WriteCheckpoint can skip a redundant rewrite when the content
	// is unchanged.
	checksums map[string][16]byte
}

// NewManager constructs a Manager whose checkpoints live under
// accordDir/comms/sessions and whose sessions rotate per policy.
func NewManager(accordDir string, policy model.RotationPolicy) *Manager {
	return &Manager{
		sessions:  make(map[string]*model.Session),
		policy:    policy,
		checkDir:  filepath.Join(accordDir, "comms", "sessions"),
		checksums: make(map[string][16]byte),
	}
}

// GetSession returns the live session for key, or nil if none exists.
func (m *Manager) GetSession(key string) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}

// UpdateSession records sessionID as the current session for key,
// incrementing requestCount and bumping lastUsedAt. It creates the entry if
// absent.
func (m *Manager) UpdateSession(key, sessionID string, now time.Time) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		sess = &model.Session{
			SessionID:   sessionID,
			ServiceName: key,
			CreatedAt:   now,
		}
		m.sessions[key] = sess
	}
	if sessionID != "" {
		sess.SessionID = sessionID
	}
	sess.RequestCount++
	sess.LastUsedAt = now
	return sess
}

// CreateSession replaces (or creates) the session for key with a fresh one.
func (m *Manager) CreateSession(key, sessionID string, now time.Time) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := &model.Session{
		SessionID:   sessionID,
		ServiceName: key,
		CreatedAt:   now,
		LastUsedAt:  now,
	}
	m.sessions[key] = sess
	return sess
}

// ShouldRotate reports whether the session for key has exceeded its
// rotation policy. A missing key never requires rotation.
func (m *Manager) ShouldRotate(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		return false
	}
	return sess.ShouldRotate(m.policy, now)
}

// Rotate deletes the session entry for key; the caller is expected to
// construct a fresh session lazily on next use.
func (m *Manager) Rotate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	delete(m.checksums, key)
}

// SetBusy marks the session for key busy or idle — meaningful only for the
// Persistent adapter's overlap guard.
func (m *Manager) SetBusy(key string, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[key]; ok {
		sess.Busy = busy
	}
}

func (m *Manager) checkpointPath(requestID string) string {
	return filepath.Join(m.checkDir, requestID+".session.md")
}

// WriteCheckpoint persists text as the failure-context checkpoint for
// requestID. A rewrite is skipped when the first 16 bytes of the content's
// blake2b-256 fingerprint match the last write, avoiding redundant disk
// churn on repeated failures of the same kind.
func (m *Manager) WriteCheckpoint(requestID, text string) error {
	sum := blake2b.Sum256([]byte(text))
	var short [16]byte
	copy(short[:], sum[:16])

	m.mu.Lock()
	if m.checksums[requestID] == short {
		m.mu.Unlock()
		return nil
	}
	m.checksums[requestID] = short
	m.mu.Unlock()

	if err := os.MkdirAll(m.checkDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	if err := os.WriteFile(m.checkpointPath(requestID), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", requestID, err)
	}
	return nil
}

// ReadCheckpoint returns the checkpoint text for requestID, or "" if none
// exists.
func (m *Manager) ReadCheckpoint(requestID string) string {
	data, err := os.ReadFile(m.checkpointPath(requestID))
	if err != nil {
		return ""
	}
	return string(data)
}

// ClearCheckpoint removes the checkpoint for requestID, if present.
func (m *Manager) ClearCheckpoint(requestID string) {
	m.mu.Lock()
	delete(m.checksums, requestID)
	m.mu.Unlock()

	if err := os.Remove(m.checkpointPath(requestID)); err != nil && !os.IsNotExist(err) {
		logger.Warn("clear checkpoint %s: %v", requestID, err)
	}
}

// persistedSession is the JSON shape written to .agent-sessions.json —
// time.Duration fields are never part of this, only the per-session state.
type persistedSession struct {
	SessionID    string    `json:"session_id"`
	ServiceName  string    `json:"service_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
	RequestCount int       `json:"request_count"`
}

// LoadFromDisk populates the session table from dir/.agent-sessions.json.
// A missing file is not an error; any I/O or decode error is logged and
// swallowed, per the Session Manager's failure policy — sessions are a
// soft optimization, never load-bearing for correctness.
func (m *Manager) LoadFromDisk(dir string) {
	path := filepath.Join(dir, sessionsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("load sessions %s: %v", path, err)
		}
		return
	}

	var persisted map[string]persistedSession
	if err := json.Unmarshal(data, &persisted); err != nil {
		logger.Warn("decode sessions %s: %v", path, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, p := range persisted {
		m.sessions[key] = &model.Session{
			SessionID:    p.SessionID,
			ServiceName:  p.ServiceName,
			CreatedAt:    p.CreatedAt,
			LastUsedAt:   p.LastUsedAt,
			RequestCount: p.RequestCount,
		}
	}
}

// SaveToDisk serializes the session table to dir/.agent-sessions.json.
// Errors are logged and swallowed.
func (m *Manager) SaveToDisk(dir string) {
	m.mu.Lock()
	persisted := make(map[string]persistedSession, len(m.sessions))
	for key, sess := range m.sessions {
		persisted[key] = persistedSession{
			SessionID:    sess.SessionID,
			ServiceName:  sess.ServiceName,
			CreatedAt:    sess.CreatedAt,
			LastUsedAt:   sess.LastUsedAt,
			RequestCount: sess.RequestCount,
		}
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		logger.Warn("marshal sessions: %v", err)
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("create session dir %s: %v", dir, err)
		return
	}

	path := filepath.Join(dir, sessionsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warn("save sessions %s: %v", path, err)
	}
}
