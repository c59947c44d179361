package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"BACKEND_URL", "PORT", "DATA_DIR", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_CreatesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ythm.config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, "http://localhost:8000/loadData", cfg.Upload.Endpoint)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data", "staging"), cfg.GetStagingDir())

	// Round trip through the file that was just written.
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Upload, again.Upload)
	assert.Equal(t, cfg.Session, again.Session)
}

func TestLoadConfig_XML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ythm.config.xml")
	content := `<?xml version="1.0" encoding="UTF-8"?>
<YouTubeHistoryMetrics>
  <Server>
    <Port>9090</Port>
    <BindAddress>127.0.0.1</BindAddress>
  </Server>
  <Upload>
    <Endpoint>https://metrics.example.com/api/load-data</Endpoint>
  </Upload>
  <Storage>
    <StagingDirectory>/var/lib/ythm/staging</StagingDirectory>
    <MaxStagedSize>10MB</MaxStagedSize>
  </Storage>
</YouTubeHistoryMetrics>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.GetServerAddr())
	assert.Equal(t, "https://metrics.example.com/api/load-data", cfg.Upload.Endpoint)
	assert.Equal(t, "/var/lib/ythm/staging", cfg.GetStagingDir())
	// Unset sections keep their defaults.
	assert.Equal(t, "ythm_session", cfg.Session.CookieName)

	limit, err := cfg.MaxStagedBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), limit)
}

func TestLoadConfig_YAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ythm.yaml")
	content := `
server:
  port: 4000
upload:
  endpoint: http://backend:8000/loadData
  relayCookies: false
advanced:
  logLevel: debug
  logFormat: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "http://backend:8000/loadData", cfg.Upload.Endpoint)
	assert.False(t, cfg.Upload.RelayCookies)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, "json", cfg.Advanced.LogFormat)
}

func TestLoadConfig_YAMLDefaultIsWritten(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ythm.yml")

	_, err := LoadConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "endpoint: http://localhost:8000/loadData")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "https://override.example.com/loadData")
	t.Setenv("PORT", "8181")
	t.Setenv("LOG_LEVEL", "warn")
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "ythm.config.xml"))
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com/loadData", cfg.Upload.Endpoint)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Advanced.LogLevel)
	assert.Equal(t, filepath.Join(dataDir, "staging"), cfg.GetStagingDir())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		env     string
	}{
		{name: "malformed xml", file: "c.xml", content: "<YouTubeHistoryMetrics><Server>"},
		{name: "malformed yaml", file: "c.yaml", content: "server: [unterminated"},
		{name: "bad endpoint scheme", file: "c.yaml", content: "upload:\n  endpoint: ftp://x/loadData\n"},
		{name: "bad port", file: "c.yaml", content: "server:\n  port: 70000\n"},
		{name: "bad size", file: "c.yaml", content: "storage:\n  maxStagedSize: lots\n"},
		{name: "bad endpoint from env", file: "c.yaml", content: "server:\n  port: 3000\n", env: "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.env != "" {
				t.Setenv("BACKEND_URL", tt.env)
			}
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "data")
	cfg.Storage.StagingDirectory = filepath.Join(dir, "data", "staging")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.GetStagingDir())
}
