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
	// No config file anywhere: every default applies.
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(32), cfg.Upload.MaxSize)
	assert.Contains(t, cfg.Upload.AllowedTypes, ".jpg")
	assert.Contains(t, cfg.Upload.AllowedTypes, ".tiff")
	assert.Equal(t, "results", cfg.Output.Dir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 9000\n  mode: debug\noutput:\n  dir: /tmp/plates\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "/tmp/plates", cfg.Output.Dir)

	// Unset keys keep their defaults.
	assert.Equal(t, int64(32), cfg.Upload.MaxSize)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	// A broken config.yaml on the default search path must not be silently
	// ignored in favor of the defaults either.
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	_, err = Load("")
	assert.Error(t, err)
}
