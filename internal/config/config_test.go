package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DefinitionsDir)
	assert.Equal(t, 30*time.Second, cfg.ReadinessTimeout)
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, uint64(2), cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialInterval)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flotilla.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
definitions_dir: /srv/flotilla
readiness_timeout: 45s
parallel: true
retry:
  max_attempts: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/flotilla", cfg.DefinitionsDir)
	assert.Equal(t, 45*time.Second, cfg.ReadinessTimeout)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, uint64(5), cfg.Retry.MaxAttempts)
	// Unset keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly named config file must exist")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FLOTILLA_STOP_TIMEOUT", "3s")
	t.Setenv("FLOTILLA_RETRY_MAX_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.StopTimeout)
	assert.Equal(t, uint64(7), cfg.Retry.MaxAttempts)
}
