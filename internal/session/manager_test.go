package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/model"
)

func policy() model.RotationPolicy {
	return model.RotationPolicy{MaxRequests: 3, MaxAge: time.Hour}
}

func TestUpdateSessionCreatesOnFirstUse(t *testing.T) {
	m := NewManager(t.TempDir(), policy())
	now := time.Now()

	sess := m.UpdateSession("backend", "sess-1", now)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.RequestCount)
	assert.Equal(t, "sess-1", sess.SessionID)

	sess = m.UpdateSession("backend", "", now.Add(time.Minute))
	assert.Equal(t, 2, sess.RequestCount)
	assert.Equal(t, "sess-1", sess.SessionID) // empty sessionID leaves prior id intact
}

func TestShouldRotateByRequestCount(t *testing.T) {
	m := NewManager(t.TempDir(), policy())
	now := time.Now()
	for i := 0; i < 3; i++ {
		m.UpdateSession("backend", "s1", now)
	}
	assert.True(t, m.ShouldRotate("backend", now))
}

func TestShouldRotateByAge(t *testing.T) {
	m := NewManager(t.TempDir(), model.RotationPolicy{MaxRequests: 100, MaxAge: time.Minute})
	now := time.Now()
	m.UpdateSession("backend", "s1", now)
	assert.False(t, m.ShouldRotate("backend", now))
	assert.True(t, m.ShouldRotate("backend", now.Add(2*time.Minute)))
}

func TestRotateDeletesSession(t *testing.T) {
	m := NewManager(t.TempDir(), policy())
	now := time.Now()
	m.UpdateSession("backend", "s1", now)
	m.Rotate("backend")
	assert.Nil(t, m.GetSession("backend"))
}

func TestCheckpointRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir(), policy())

	assert.Equal(t, "", m.ReadCheckpoint("req-1"))

	require.NoError(t, m.WriteCheckpoint("req-1", "failed: timeout"))
	assert.Equal(t, "failed: timeout", m.ReadCheckpoint("req-1"))

	m.ClearCheckpoint("req-1")
	assert.Equal(t, "", m.ReadCheckpoint("req-1"))
}

func TestWriteCheckpointSkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, policy())

	require.NoError(t, m.WriteCheckpoint("req-1", "same content"))
	path := filepath.Join(dir, "comms", "sessions", "req-1.session.md")
	info1, err := os.Stat(path)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.WriteCheckpoint("req-1", "same content"))
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestSaveAndLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, policy())
	now := time.Now().UTC().Truncate(time.Second)
	m.UpdateSession("backend", "sess-1", now)

	m.SaveToDisk(dir)

	m2 := NewManager(dir, policy())
	m2.LoadFromDisk(dir)

	sess := m2.GetSession("backend")
	require.NotNil(t, sess)
	assert.Equal(t, "sess-1", sess.SessionID)
	assert.Equal(t, 1, sess.RequestCount)
}

func TestLoadFromDiskMissingFileIsNotError(t *testing.T) {
	m := NewManager(t.TempDir(), policy())
	m.LoadFromDisk(t.TempDir())
	assert.Nil(t, m.GetSession("backend"))
}
