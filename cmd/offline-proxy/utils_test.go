package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("OFFLINE_PROXY_CONFIG_FILE", "")
	t.Setenv("OFFLINE_PROXY_MANIFEST_FILE", "")
	t.Setenv("CACHE_KEYDB_URL_FILE", "")
	os.Unsetenv("OFFLINE_PROXY_CONFIG_FILE")
	os.Unsetenv("OFFLINE_PROXY_MANIFEST_FILE")
	os.Unsetenv("CACHE_KEYDB_URL_FILE")

	e, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "/app/config.yaml", e.ConfigFile)
	assert.Equal(t, "/app/manifest.yaml", e.ManifestFile)
	assert.Equal(t, "/app/.keydb-url", e.KeyDBURLFile)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("OFFLINE_PROXY_CONFIG_FILE", "/etc/proxy/config.yaml")
	t.Setenv("OFFLINE_PROXY_MANIFEST_FILE", "/etc/proxy/manifest.yaml")
	t.Setenv("OFFLINE_PROXY_SOCKET_PATH", "/run/proxy.sock")
	t.Setenv("KEYDB_URL", "redis://localhost:6380")

	e, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "/etc/proxy/config.yaml", e.ConfigFile)
	assert.Equal(t, "/etc/proxy/manifest.yaml", e.ManifestFile)
	assert.Equal(t, "/run/proxy.sock", e.SocketPath)
	assert.Equal(t, "redis://localhost:6380", e.KeyDBURL)
}

func TestGetKeyDBURL_Priority(t *testing.T) {
	logger := zap.NewNop()
	file := filepath.Join(t.TempDir(), ".keydb-url")
	require.NoError(t, os.WriteFile(file, []byte("  redis://from-file:6379\n"), 0600))

	// env wins over file
	e := &Env{KeyDBURL: "redis://from-env:6379", KeyDBURLFile: file}
	assert.Equal(t, "redis://from-env:6379", GetKeyDBURL(e, logger))

	// file wins over default
	e.KeyDBURL = ""
	assert.Equal(t, "redis://from-file:6379", GetKeyDBURL(e, logger))

	// default when neither is set
	e.KeyDBURLFile = filepath.Join(t.TempDir(), "missing")
	assert.Equal(t, defaultKeyDBURL, GetKeyDBURL(e, logger))
}
