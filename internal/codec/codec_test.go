package codec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/model"
)

func writeTestRequest(t *testing.T, dir, service, name, content string) string {
	t.Helper()
	svcDir := filepath.Join(dir, "comms", "inbox", service)
	require.NoError(t, os.MkdirAll(svcDir, 0o755))
	path := filepath.Join(svcDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleRequest = `---
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

func TestParseRequest(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-1.md", sampleRequest)

	req := ParseRequest(path)
	require.NotNil(t, req)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "backend", req.ServiceName)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, model.PriorityHigh, req.Priority)
	assert.Contains(t, req.Body, "widget endpoint")
}

func TestParseRequestMissingFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-bad.md", "no frontmatter here\n")
	require.Nil(t, ParseRequest(path))
}

func TestParseRequestMissingID(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-bad.md", "---\nstatus: pending\n---\nbody\n")
	require.Nil(t, ParseRequest(path))
}

func TestSetStatusBumpsUpdated(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-1.md", sampleRequest)

	require.NoError(t, SetStatus(path, model.StatusInProgress))

	req := ParseRequest(path)
	require.NotNil(t, req)
	assert.Equal(t, model.StatusInProgress, req.Status)
	assert.False(t, req.Updated.IsZero())
	assert.Contains(t, req.Body, "widget endpoint")
}

func TestIncrementAttempts(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-1.md", sampleRequest)

	n, err := IncrementAttempts(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = IncrementAttempts(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateFieldPreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	content := "---\nid: req-1\nstatus: pending\ncustom_key: keep-me\n---\nbody text\n"
	path := writeTestRequest(t, dir, "backend", "req-1.md", content)

	require.NoError(t, UpdateField(path, "custom_key", "still-here"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "still-here")
	assert.Contains(t, string(raw), "body text")
}

func TestArchiveMovesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-1.md", sampleRequest)

	newPath, err := Archive(path, dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(newPath, filepath.Join("comms", "archive", "req-1.md")))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(newPath)
	assert.NoError(t, err)
}

func TestAppendResult(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRequest(t, dir, "backend", "req-1.md", sampleRequest)

	require.NoError(t, AppendResult(path, "all tests passed"))

	req := ParseRequest(path)
	require.NotNil(t, req)
	assert.Contains(t, req.Body, "## Result")
	assert.Contains(t, req.Body, "all tests passed")
	assert.Contains(t, req.Body, "widget endpoint") // original body preserved
}

func TestParseDirective(t *testing.T) {
	dir := t.TempDir()
	dirsDir := filepath.Join(dir, "directives")
	require.NoError(t, os.MkdirAll(dirsDir, 0o755))
	path := filepath.Join(dirsDir, "dir-1.md")
	content := `---
id: dir-1
title: Add widget feature
status: planning
retry_count: 0
max_retries: 3
requests: [r1, r2]
contract_proposals: [cp1]
test_requests: []
---
Directive body.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	d := ParseDirective(path)
	require.NotNil(t, d)
	assert.Equal(t, model.DirectivePlanning, d.Status)
	assert.Equal(t, []string{"r1", "r2"}, d.Requests)
	assert.Equal(t, []string{"cp1"}, d.ContractProposals)
}

func TestWriteDirectiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dirsDir := filepath.Join(dir, "directives")
	require.NoError(t, os.MkdirAll(dirsDir, 0o755))
	path := filepath.Join(dirsDir, "dir-1.md")
	content := "---\nid: dir-1\ntitle: X\nstatus: planning\nmax_retries: 3\nrequests: [r1]\n---\nbody\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	d := ParseDirective(path)
	require.NotNil(t, d)
	d.Status = model.DirectiveImplementing
	require.NoError(t, WriteDirective(d))

	reread := ParseDirective(path)
	require.NotNil(t, reread)
	assert.Equal(t, model.DirectiveImplementing, reread.Status)
}
