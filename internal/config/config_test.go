package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoadFile_Overrides(t *testing.T) {
	path := writeFile(t, `
client:
  server_url: https://keys.example.com
  session_cache_ttl: -1s
  file_compression: lz4
log:
  level: "-1"
  no_color: true
`)
	cfg, err := config.LoadFile(path, false)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://keys.example.com", cfg.Client.ServerURL)
	assert.Equal(t, -time.Second, cfg.Client.SessionCacheTTL)
	assert.Equal(t, "lz4", cfg.Client.FileCompression)
	assert.Equal(t, "sealkit-dev", cfg.Client.AppID)
	assert.True(t, cfg.Log.NoColor)

	opts, err := cfg.LogOptions("test")
	require.NoError(t, err)
	assert.Equal(t, zerolog.TraceLevel, opts.Level)
	assert.Equal(t, "test", opts.InstanceName)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := writeFile(t, "client:\n  srever_url: x\n")
	_, err := config.LoadFile(path, false)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := config.LoadFile(missing, true)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Client, cfg.Client)

	_, err = config.LoadFile(missing, false)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Client.ServerURL = "not a url"
	cfg.Client.FileCompression = "rar"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")
	assert.Contains(t, err.Error(), "file_compression")
	assert.Contains(t, err.Error(), "log.level")
}

func TestValidateServer_Secret(t *testing.T) {
	cfg := config.Default()
	cfg.Server.JWTSecret = "short"
	assert.Error(t, cfg.ValidateServer())

	cfg.Server.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.ValidateServer())
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Client.InstanceName = "laptop"
	require.NoError(t, cfg.Save(filepath.Join(dir, config.FileName)))

	loaded, err := config.LoadHome(dir)
	require.NoError(t, err)
	assert.Equal(t, "laptop", loaded.Client.InstanceName)
}
