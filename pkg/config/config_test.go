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
	t.Setenv("DATABASE", "")
	t.Setenv("AUTH", "")
	t.Setenv("PORT", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database)
	assert.Equal(t, "single_user", cfg.Auth)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.WorkerCount)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("DATABASE", "")
	t.Setenv("PORT", "")
	dir := t.TempDir()
	content := `
server:
  port: 9090
queue:
  worker_count: 2
  execution_timeout: 5m
review:
  max_parallel: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFile), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, 5*time.Minute, cfg.Queue.ExecutionTimeout)
	assert.Equal(t, 3, cfg.Review.MaxParallel)
	// Untouched sections keep their defaults.
	assert.Equal(t, "memory", cfg.Database)
	assert.Equal(t, 30*time.Second, cfg.Queue.HeartbeatInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFile),
		[]byte("database: memory\n"), 0o644))
	t.Setenv("DATABASE", "postgres")
	t.Setenv("PORT", "7000")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("DATABASE", "mongodb")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")

	t.Run("expands template variables", func(t *testing.T) {
		out := ExpandEnv([]byte("host: {{.TEST_DB_HOST}}"))
		assert.Equal(t, "host: db.internal", string(out))
	})

	t.Run("leaves dollar signs alone", func(t *testing.T) {
		out := ExpandEnv([]byte(`pattern: "^secret.*$"`))
		assert.Equal(t, `pattern: "^secret.*$"`, string(out))
	})

	t.Run("missing variables become empty", func(t *testing.T) {
		out := ExpandEnv([]byte("key: {{.DOES_NOT_EXIST_XYZ}}"))
		assert.Equal(t, "key: ", string(out))
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	t.Run("orphan threshold must exceed heartbeat", func(t *testing.T) {
		bad := Default()
		bad.Queue.OrphanThreshold = bad.Queue.HeartbeatInterval
		assert.Error(t, bad.Validate())
	})

	t.Run("auth mode", func(t *testing.T) {
		bad := Default()
		bad.Auth = "oauth"
		assert.Error(t, bad.Validate())
	})
}
