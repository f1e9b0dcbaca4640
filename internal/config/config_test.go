package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults when no file exists", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "redacted_output.csv", cfg.Output.Path)
		assert.Equal(t, "gazetteer", cfg.NER.Backend)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.False(t, cfg.Cache.Enabled)
		assert.False(t, cfg.Audit.Enabled)
	})

	t.Run("explicit file overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "piiscan.yaml")
		body := []byte(`
logging:
  level: debug
  format: console
output:
  path: out/clean.csv
ner:
  backend: http
  url: http://ner:8001
  timeout: 3s
  rate_limit: 20
`)
		require.NoError(t, os.WriteFile(path, body, 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
		assert.Equal(t, "out/clean.csv", cfg.Output.Path)
		assert.Equal(t, "http", cfg.NER.Backend)
		assert.Equal(t, "http://ner:8001", cfg.NER.URL)
		assert.Equal(t, 3*time.Second, cfg.NER.Timeout)
		assert.InDelta(t, 20.0, cfg.NER.RateLimit, 0.001)
		// untouched sections keep their defaults
		assert.Equal(t, 500, cfg.Pipeline.BatchSize)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("PIISCAN_OUTPUT_PATH", "env_output.csv")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "env_output.csv", cfg.Output.Path)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ner:\n  backend: spacy\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid ner backend")
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "invalid log level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "invalid log format"},
		{name: "empty output", mutate: func(c *Config) { c.Output.Path = " " }, wantErr: "output path"},
		{name: "zero batch", mutate: func(c *Config) { c.Pipeline.BatchSize = 0 }, wantErr: "batch size"},
		{name: "http without url", mutate: func(c *Config) { c.NER.Backend = "http"; c.NER.URL = "" }, wantErr: "ner url"},
		{name: "cache without url", mutate: func(c *Config) { c.Cache.Enabled = true; c.Cache.RedisURL = "" }, wantErr: "redis_url"},
		{name: "audit without url", mutate: func(c *Config) { c.Audit.Enabled = true; c.Audit.DatabaseURL = "" }, wantErr: "database_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
