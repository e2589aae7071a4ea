package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Storage.Dir)
	assert.Equal(t, 0.6, cfg.Extraction.MinConfidence)
	assert.Equal(t, 5*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 1, cfg.Service.MaxRetries)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
  format: console
storage:
  dir: /var/lib/profiled/conversations
extraction:
  min_confidence: 0.7
service:
  url: http://nlu.internal:8000/parse
  model: fallback-small
  timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/profiled/conversations", cfg.Storage.Dir)
	assert.Equal(t, 0.7, cfg.Extraction.MinConfidence)
	assert.Equal(t, "http://nlu.internal:8000/parse", cfg.Service.URL)
	assert.Equal(t, "fallback-small", cfg.Service.Model)
	assert.Equal(t, 3*time.Second, cfg.Service.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	t.Setenv("LOGGING_LEVEL", "warn")
	t.Setenv("SERVICE_URL", "http://localhost:9999/parse")
	t.Setenv("SERVICE_MODEL", "tiny")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:9999/parse", cfg.Service.URL)
	assert.Equal(t, "tiny", cfg.Service.Model)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: shouting\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("confidence out of range", func(t *testing.T) {
		cfg := base()
		cfg.Extraction.MinConfidence = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := base()
		cfg.Service.MaxRetries = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing storage dir", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Dir = ""
		assert.Error(t, cfg.Validate())
	})
}
