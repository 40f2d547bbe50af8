package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, ":8888", cfg.Server.Addr)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.Retention)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Simulator.FlowsPerTick)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "netguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: "https://file.example.com/api/"
poll:
  interval: 2s
redis:
  addr: "localhost:6379"
log:
  level: warn
`), 0o644))

	t.Setenv("NETGUARD_API_BASE_URL", "https://env.example.com/api")
	t.Setenv("NETGUARD_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.Redis.SnapshotTTL, "unset keys keep defaults")
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := map[string]func(c *Config){
		"bad scheme":     func(c *Config) { c.API.BaseURL = "ftp://x" },
		"zero interval":  func(c *Config) { c.Poll.Interval = 0 },
		"bad log level":  func(c *Config) { c.Log.Level = "loud" },
		"bad gin mode":   func(c *Config) { c.Server.Mode = "prod" },
		"attack percent": func(c *Config) { c.Simulator.AttackPercent = 101 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.API.Token = "secret-token"

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))
	assert.NotContains(t, buf.String(), "secret-token")
	assert.Equal(t, "secret-token", cfg.API.Token)

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, cfg.API.BaseURL, back.API.BaseURL)
	assert.Equal(t, cfg.Poll.Interval, back.Poll.Interval)
}
