package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/japaniel/novelreader/internal/config"
	"github.com/japaniel/novelreader/pkg/db"
	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/explain"
	"github.com/japaniel/novelreader/pkg/frequency"
	"github.com/japaniel/novelreader/pkg/ingest"
	"github.com/japaniel/novelreader/pkg/lexical"
	"github.com/japaniel/novelreader/pkg/report"
	"github.com/japaniel/novelreader/pkg/session"
	"github.com/japaniel/novelreader/pkg/vocab"
)

// App holds the long-lived components of one reader process.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DB         *sql.DB
	Store      *vocab.Store
	Normalizer *lexical.Normalizer
	Analyzer   *difficulty.Analyzer
	Explainer  explain.Provider
	Journal    *ingest.Journal
}

// New opens the database, restores the vocabulary and builds the analyzer
// and explanation provider described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := db.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.InitDBContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, DB: conn, Normalizer: lexical.NewNormalizer()}
	if err := a.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	a.Journal = ingest.NewJournal(conn, cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval, logger)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	repo, err := a.repository()
	if err != nil {
		return err
	}
	a.Store, err = vocab.NewStore(repo, a.Config.Vocab.Policy())
	if err != nil {
		return fmt.Errorf("vocabulary: %w", err)
	}
	a.Store.Logger = a.Logger.With("component", "vocab")
	if err := a.Store.Restore(ctx); err != nil {
		return fmt.Errorf("restore vocabulary: %w", err)
	}

	freq, err := a.Frequencies(ctx)
	if err != nil {
		return err
	}
	a.Analyzer, err = difficulty.NewAnalyzer(a.Config.Difficulty.Analyzer(), a.Normalizer, freq)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}

	a.Explainer = a.provider()
	a.Logger.Info("reader ready",
		slog.String("version", BuildVersion()),
		slog.String("storage", a.Config.Storage.Backend),
		slog.Int("known_words", a.Store.AggregateStats().TotalWords),
		slog.Int("frequency_words", freq.Len()),
		slog.String("explainer", a.Config.Explain.Provider),
	)
	return nil
}

func (a *App) repository() (vocab.Repository, error) {
	switch strings.ToLower(a.Config.Storage.Backend) {
	case config.BackendFile:
		repo, err := vocab.NewFileRepository(a.Config.Storage.FilePath)
		if err != nil {
			return nil, fmt.Errorf("vocabulary file: %w", err)
		}
		return repo, nil
	case config.BackendMemory:
		return vocab.NewMemoryRepository(), nil
	default:
		return db.NewWordRepository(a.DB), nil
	}
}

// Frequencies returns the imported frequency table, or the built-in one when
// nothing was imported.
func (a *App) Frequencies(ctx context.Context) (*frequency.Table, error) {
	words, err := db.LoadFrequencyTable(ctx, a.DB)
	if err != nil {
		return nil, fmt.Errorf("load frequency table: %w", err)
	}
	if len(words) == 0 {
		return frequency.Default(), nil
	}
	return frequency.New(words, frequency.DefaultCoreSize), nil
}

// ImportFrequencies reads an NGSL-style CSV, or a plain list for any other
// extension, and stores it for later runs. An http(s) source is downloaded
// once into a cache file beside the database.
func (a *App) ImportFrequencies(ctx context.Context, src string) (int, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		cached, err := a.downloadFrequencies(ctx, src)
		if err != nil {
			return 0, err
		}
		src = cached
	}
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var words []string
	if strings.EqualFold(filepath.Ext(src), ".csv") {
		words, err = frequency.ParseNGSL(f)
	} else {
		words, err = frequency.ParseList(f)
	}
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", src, err)
	}
	if err := db.SaveFrequencyTable(ctx, a.DB, words); err != nil {
		return 0, fmt.Errorf("save frequency table: %w", err)
	}
	return len(words), nil
}

func (a *App) downloadFrequencies(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("frequency url: %w", err)
	}
	name := strings.TrimSuffix(strings.TrimSuffix(path.Base(u.Path), ".gz"), ".tgz")
	ext := ".csv"
	if strings.EqualFold(filepath.Ext(name), ".txt") {
		ext = ".txt"
	}
	cached := filepath.Join(filepath.Dir(a.Config.Storage.Path), "frequency"+ext)
	downloaded, err := frequency.Ensure(ctx, nil, cached, rawURL)
	if err != nil {
		return "", err
	}
	a.Logger.Info("frequency list ready", slog.String("path", cached), slog.Bool("downloaded", downloaded))
	return cached, nil
}

func (a *App) provider() explain.Provider {
	c := a.Config.Explain
	var p explain.Provider
	switch strings.ToLower(c.Provider) {
	case config.ProviderAnthropic:
		var opts []option.RequestOption
		if c.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.BaseURL))
		}
		p = explain.NewAnthropic(c.APIKey, c.Model, a.Logger, opts...)
	case config.ProviderOllama:
		p = explain.NewOllama(c.BaseURL, c.Model, a.Logger)
	default:
		return nil
	}
	return explain.WithTimeout(p, c.Timeout)
}

// Loader returns the document loader configured for this process.
func (a *App) Loader() document.FileLoader {
	return document.FileLoader{
		Segmenter: document.Segmenter{MinWords: a.Config.Document.MinWords},
		MaxBytes:  a.Config.Document.MaxBytes,
	}
}

// Fetcher returns the web chapter loader configured for this process.
func (a *App) Fetcher() document.Fetcher {
	return document.Fetcher{
		Segmenter: document.Segmenter{MinWords: a.Config.Document.MinWords},
		MaxBytes:  a.Config.Document.MaxBytes,
	}
}

// NewSession creates a reading session journaled to the database.
func (a *App) NewSession(resume bool) *session.Coordinator {
	return session.New(a.Store, a.Analyzer, a.Normalizer, session.Options{
		Explainer:     a.Explainer,
		DifficultOnly: a.Config.Explain.DifficultOnly,
		Detailed:      a.Config.Explain.Detailed,
		Journal:       a.Journal,
		Resume:        resume,
		Logger:        a.Logger.With("component", "session"),
	})
}

// Digest creates a whole-document digest runner.
func (a *App) Digest() *ingest.Digest {
	pre := ingest.NewPreprocessor(a.Analyzer)
	pre.Workers = a.Config.Ingest.Workers
	pre.Logger = a.Logger
	return &ingest.Digest{
		Preprocessor:  pre,
		Explainer:     a.Explainer,
		DifficultOnly: a.Config.Explain.DifficultOnly,
		Detailed:      a.Config.Explain.Detailed,
		Workers:       a.Config.Ingest.Workers,
		Logger:        a.Logger.With("component", "digest"),
	}
}

// Exporter returns the report exporter configured for this process.
func (a *App) Exporter() (report.Exporter, error) {
	return report.New(report.Format(a.Config.Report.Format), a.Config.Report.Dir)
}

// Close flushes the journal and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil && !errors.Is(err, ingest.ErrBatchWriterClosed) {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
