package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
	assert.Equal(t, 250.0, cfg.Layout.Spacing)
	assert.Equal(t, 30*time.Second, cfg.Session.LockTTL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stepgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  kind: redis
  redis:
    addr: redis:6379
    db: "2"
  breaker:
    enabled: true
    timeout: 2s
log:
  level: debug
session:
  distributed_lock: true
  lock_ttl: 10s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "stepgraph:flow:", cfg.Store.Redis.Prefix, "unset keys keep defaults")
	assert.True(t, cfg.Store.Breaker.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Store.Breaker.Timeout)
	assert.Equal(t, uint32(3), cfg.Store.Breaker.ConsecutiveFailures)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Session.LockTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestFromMap_Env(t *testing.T) {
	env := map[string]string{
		"STEPGRAPH_STORE_KIND": "loam",
		"STEPGRAPH_STORE_PATH": "/data/flows",
		"STEPGRAPH_HTTP_ADDR":  ":9090",
		"STEPGRAPH_LOG_LEVEL":  " ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := FromMap(map[string]any{"store": map[string]any{"kind": "memory"}}, lookup)
	require.NoError(t, err)
	assert.Equal(t, StoreLoam, cfg.Store.Kind, "environment wins over the file")
	assert.Equal(t, "/data/flows", cfg.Store.Path)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level, "blank values are ignored")
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantErr string
	}{
		{"unknown key", map[string]any{"stor": map[string]any{}}, "invalid config"},
		{"bad kind", map[string]any{"store": map[string]any{"kind": "mongo"}}, "must be one of"},
		{"file without path", map[string]any{"store": map[string]any{"kind": "file", "path": ""}}, "Path is required"},
		{"bad level", map[string]any{"log": map[string]any{"level": "loud"}}, "must be one of"},
		{"zero spacing", map[string]any{"layout": map[string]any{"spacing": 0}}, "Spacing is invalid"},
		{"lock without redis", map[string]any{"session": map[string]any{"distributed_lock": true}}, "requires store.kind redis"},
		{"bad duration", map[string]any{"session": map[string]any{"lock_ttl": "soon"}}, "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.raw, noEnv)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`# local overrides
STEPGRAPH_STORE_KIND=memory
STEPGRAPH_HTTP_ADDR=":7070"
STEPGRAPH_LOG_LEVEL=debug
`), 0644))
	t.Setenv("STEPGRAPH_LOG_LEVEL", "warn")

	cfg, err := LoadWithEnvFile("", envFile)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Kind)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "warn", cfg.Log.Level, "process environment wins over the env file")

	_, ok := os.LookupEnv("STEPGRAPH_HTTP_ADDR")
	assert.False(t, ok, "the env file must not leak into the process environment")
}

func TestLoadWithEnvFile_Missing(t *testing.T) {
	_, err := LoadWithEnvFile("", filepath.Join(t.TempDir(), "nope.env"))
	assert.ErrorContains(t, err, "failed to read env file")
}
