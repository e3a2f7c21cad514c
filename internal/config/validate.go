package config

import (
	"fmt"
	"strings"

	"github.com/japaniel/novelreader/pkg/report"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be sqlite, file or memory (got %q)", c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}

	if err := c.Vocab.Policy().Validate(); err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	if err := c.Difficulty.Analyzer().Validate(); err != nil {
		return fmt.Errorf("difficulty: %w", err)
	}

	switch strings.ToLower(c.Explain.Provider) {
	case ProviderNone, "":
	case ProviderOllama:
	case ProviderAnthropic:
		if c.Explain.APIKey == "" {
			return fmt.Errorf("explain.api_key is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("explain.provider must be none, anthropic or ollama (got %q)", c.Explain.Provider)
	}
	if c.Explain.Timeout < 0 {
		return fmt.Errorf("explain.timeout must be >= 0 (got %v)", c.Explain.Timeout)
	}

	if c.Document.MinWords < 0 {
		return fmt.Errorf("document.min_words must be >= 0 (got %d)", c.Document.MinWords)
	}
	if _, err := report.New(report.Format(c.Report.Format), c.Report.Dir); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be > 0 (got %d)", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be > 0 (got %d)", c.Ingest.BatchSize)
	}
	return nil
}
