package hubconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accord/internal/model"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	dir := t.TempDir()

	err := Load(dir)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadMissingProjectNameIsConfigError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
services:
  - name: svc-a
    working_dir: /tmp/a
`)

	err := Load(dir)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "project.name")
}

func TestLoadEmptyServicesIsConfigError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
project:
  name: demo
services: []
`)

	err := Load(dir)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "services")
}

func TestLoadValidConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
project:
  name: demo
services:
  - name: svc-a
    working_dir: /tmp/a
    backend: oneshot
`)

	require.NoError(t, Load(dir))

	cfg, err := Get()
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, defaultTickInterval, cfg.TickInterval)
	assert.Equal(t, defaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, defaultMaxRequests, cfg.SessionPolicy.MaxRequests)
}

func TestServiceNamesReturnsConfiguredNames(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
project:
  name: demo
services:
  - name: svc-a
    working_dir: /tmp/a
  - name: svc-b
    working_dir: /tmp/b
`)
	require.NoError(t, Load(dir))

	names, err := ServiceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"svc-a", "svc-b"}, names)
}

func TestUpdateMaxAttemptsPersists(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
project:
  name: demo
services:
  - name: svc-a
    working_dir: /tmp/a
`)
	require.NoError(t, Load(dir))
	require.NoError(t, UpdateMaxAttempts(7))

	cfg, err := Get()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxAttempts)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_attempts: 7")
}

func TestUpdateMaxAttemptsRejectsNonPositive(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
project:
  name: demo
services:
  - name: svc-a
    working_dir: /tmp/a
`)
	require.NoError(t, Load(dir))

	err := UpdateMaxAttempts(0)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
