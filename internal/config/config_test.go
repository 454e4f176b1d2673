package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
conversation_id: demo
catalog: ./skills.yaml
store:
  backend: redis
  redis:
    addr: redis:6379
    db: "2"
    ttl: 1h
  redact: [password]
notify:
  interval: 30s
  skill: weather
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.ConversationID)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, "parley:conversation:", cfg.Store.Redis.Prefix, "unset fields keep their default")
	assert.Equal(t, []string{"password"}, cfg.Store.Redact)
	assert.Equal(t, 30*time.Second, cfg.Notify.Interval)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Unknown Key", "colour: red\n"},
		{"Bad Duration", "notify:\n  interval: soon\n"},
		{"Bad Backend", "store:\n  backend: etcd\n"},
		{"Bad YAML", "store: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoad_DefaultPathMayBeMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PARLEY_STORE":           "redis",
		"PARLEY_REDIS_TTL":       "10m",
		"PARLEY_REDIS_DB":        "3",
		"PARLEY_NOTIFY_INTERVAL": "1s",
		"PARLEY_STORE_KEY":       "new-key",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Store.Keys = []string{"old-key"}
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, []string{"new-key", "old-key"}, cfg.Store.Keys, "the env key becomes active")
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Store.Redis.TTL)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, time.Second, cfg.Notify.Interval)

	env["PARLEY_REDIS_DB"] = "three"
	assert.Error(t, applyEnv(&cfg, lookup))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PARLEY_HTTP_ADDR", "127.0.0.1:9000")
	cfg, err := Load(writeConfig(t, "http:\n  addr: :7000\n"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
}
