package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_Defaults(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "FLAC CONVERTER 2", cfg.OutputDir)
	assert.True(t, cfg.EnableMetadata)
	assert.True(t, cfg.EnableFingerprinting)
	assert.False(t, cfg.CompatibilityMode)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadConfigFile_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flacify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: /music/flac
compatibility_mode: true
fingerprinting: false
acoustid_api_key: abc123
verbose: true
`), 0644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/music/flac", cfg.OutputDir)
	assert.True(t, cfg.CompatibilityMode)
	assert.False(t, cfg.EnableFingerprinting)
	assert.True(t, cfg.EnableMetadata, "unset keys keep their defaults")
	assert.Equal(t, "abc123", cfg.AcoustIDAPIKey)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfigFile_EnvFallbackForKeys(t *testing.T) {
	t.Setenv("ACOUSTID_API_KEY", "env-acoustid")
	t.Setenv("LASTFM_API_KEY", "env-lastfm")

	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-acoustid", cfg.AcoustIDAPIKey)
	assert.Equal(t, "env-lastfm", cfg.LastfmAPIKey)
}

func TestLoadConfigFile_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("LASTFM_API_KEY", "env-lastfm")

	path := filepath.Join(t.TempDir(), "flacify.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lastfm_api_key: from-file\n"), 0644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.LastfmAPIKey)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flacify.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: [unclosed"), 0644))

	_, err := LoadConfigFile(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.OutputDir = ""
	assert.ErrorContains(t, cfg.Validate(), "output_dir")

	cfg = DefaultConfig()
	cfg.ListenAddr = ""
	assert.ErrorContains(t, cfg.Validate(), "listen_addr")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.OutputDir = "/tmp/out"
	cfg.LastfmAPIKey = "k"
	require.NoError(t, SaveConfigFile(cfg, path))

	loaded, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.OutputDir, loaded.OutputDir)
	assert.Equal(t, "k", loaded.LastfmAPIKey)
}
