package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	loader := NewIsolatedLoader()
	// Point the search at an empty directory so no stray thresh.yaml is
	// picked up from the developer's machine.
	loader.v.AddConfigPath(t.TempDir())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Threshold.Method, cfg.Threshold.Method)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoadWithFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresh.yaml")
	content := []byte(`
log_level: debug
threshold:
  strategy: adaptive
  method: otsu
  window_size: 64
server:
  port: 9191
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	loader := NewIsolatedLoader()
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "adaptive", cfg.Threshold.Strategy)
	assert.Equal(t, 64, cfg.Threshold.WindowSize)
	assert.Equal(t, 9191, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().Threshold.CorrectionFactor, cfg.Threshold.CorrectionFactor)
}

func TestLoadWithFileMissing(t *testing.T) {
	loader := NewIsolatedLoader()
	_, err := loader.LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadWithFileRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold:\n  method: banana\n"), 0o600))

	loader := NewIsolatedLoader()
	_, err := loader.LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("THRESH_THRESHOLD_WINDOW_SIZE", "99")

	loader := NewIsolatedLoader()
	loader.v.AddConfigPath(t.TempDir())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Threshold.WindowSize)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresh.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	loader := NewIsolatedLoader()
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Threshold.Method, cfg.Threshold.Method)
}

func TestGetConfigSearchPathsIncludesSystemDir(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/thresh")
}
