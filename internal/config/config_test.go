package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/vocab"
)

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "novelreader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
log:
  level: "debug"
  format: "json"

storage:
  backend: "file"
  path: "/tmp/reader.db"
  file_path: "/tmp/words.json"

vocab:
  exposure_rate: 0.2
  staleness_window: "168h"

difficulty:
  easy_below: 0.3
  moderate_below: 0.7

explain:
  provider: "ollama"
  model: "llama3"
  timeout: "30s"
  difficult_only: false

report:
  format: "yaml"
  dir: "out"

ingest:
  workers: 8
`

func TestLoad_ValidYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/words.json", cfg.Storage.FilePath)
	assert.Equal(t, 0.2, cfg.Vocab.ExposureRate)
	assert.Equal(t, 168*time.Hour, cfg.Vocab.StalenessWindow)
	assert.Equal(t, 0.3, cfg.Difficulty.EasyBelow)
	assert.Equal(t, ProviderOllama, cfg.Explain.Provider)
	assert.Equal(t, 30*time.Second, cfg.Explain.Timeout)
	assert.False(t, cfg.Explain.DifficultOnly)
	assert.Equal(t, "yaml", cfg.Report.Format)
	assert.Equal(t, 8, cfg.Ingest.Workers)

	// Unset fields keep their defaults.
	assert.Equal(t, 0.6, cfg.Vocab.KnownBoost)
	assert.Equal(t, 0.75, cfg.Difficulty.RarityWeight)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("INGEST_WORKERS", "2")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "novelreader.db", cfg.Storage.Path)
	assert.Equal(t, ProviderNone, cfg.Explain.Provider)
	assert.True(t, cfg.Explain.DifficultOnly)
	assert.Equal(t, vocab.DefaultPolicy(), cfg.Vocab.Policy())
	assert.Equal(t, difficulty.DefaultConfig(), cfg.Difficulty.Analyzer())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"empty path", func(c *Config) { c.Storage.Path = "" }},
		{"thresholds out of order", func(c *Config) { c.Vocab.FamiliarAt = 0.9 }},
		{"floor above max", func(c *Config) { c.Vocab.Floor = 1.5 }},
		{"weights do not sum to one", func(c *Config) { c.Difficulty.RarityWeight = 0.9 }},
		{"anthropic without key", func(c *Config) { c.Explain.Provider = ProviderAnthropic }},
		{"unknown provider", func(c *Config) { c.Explain.Provider = "gpt" }},
		{"unknown report format", func(c *Config) { c.Report.Format = "pdf" }},
		{"no workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"negative min words", func(c *Config) { c.Document.MinWords = -1 }},
	}

	t.Chdir(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AnthropicWithKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EXPLAIN_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Explain.APIKey)
}
