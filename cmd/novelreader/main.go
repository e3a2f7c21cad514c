package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/japaniel/novelreader/internal/app"
	"github.com/japaniel/novelreader/internal/config"
	"github.com/japaniel/novelreader/pkg/db"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/vocab"
)

func main() {
	fileFlag := flag.String("file", "", "Novel to read (.txt, .md, .html, .epub)")
	urlFlag := flag.String("url", "", "Web page to read instead of a file")
	dbFlag := flag.String("db", "", "Path to SQLite database (overrides storage.path)")
	configFlag := flag.String("config", "", "Path to YAML config (default $CONFIG_PATH or ./novelreader.yaml)")
	autoFlag := flag.Bool("auto", false, "Acknowledge every segment without prompting")
	resumeFlag := flag.Bool("resume", false, "Continue after the last segment read in this document")
	freqFlag := flag.String("import-freq", "", "Path to a frequency list (.csv NGSL-style or one word per line) to import")
	statsFlag := flag.Bool("stats", false, "Print vocabulary statistics and recent sessions")
	digestFlag := flag.Bool("digest", false, "Score and explain the whole document and write a report")
	reportDirFlag := flag.String("report-dir", "", "Directory for reports (overrides report.dir)")
	formatFlag := flag.String("format", "", "Report format: markdown, json or yaml (overrides report.format)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(app.BuildVersion())
		return
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbFlag != "" {
		cfg.Storage.Path = *dbFlag
	}
	if *reportDirFlag != "" {
		cfg.Report.Dir = *reportDirFlag
	}
	if *formatFlag != "" {
		cfg.Report.Format = *formatFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := app.NewLogger(cfg.Log)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := run(ctx, a, os.Stdin, os.Stdout, options{
		file:   *fileFlag,
		url:    *urlFlag,
		auto:   *autoFlag,
		resume: *resumeFlag,
		freq:   *freqFlag,
		stats:  *statsFlag,
		digest: *digestFlag,
	}); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}
}

type options struct {
	file, url, freq             string
	auto, resume, stats, digest bool
}

func run(ctx context.Context, a *app.App, in io.Reader, out io.Writer, o options) error {
	if o.freq != "" {
		n, err := a.ImportFrequencies(ctx, o.freq)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported %d words into the frequency table.\n", n)
		return nil
	}

	if o.stats {
		return printStats(ctx, a, out)
	}

	var (
		doc *document.Document
		err error
	)
	switch {
	case o.url != "":
		fmt.Fprintf(out, "Fetching %s...\n", o.url)
		doc, err = a.Fetcher().Fetch(ctx, o.url)
	case o.file != "":
		doc, err = a.Loader().Load(ctx, o.file)
	default:
		return fmt.Errorf("please provide -file, -url, -import-freq or -stats")
	}
	if err != nil {
		return err
	}

	if o.digest {
		_, err := a.RunDigest(ctx, doc, out)
		return err
	}
	_, err = a.Read(ctx, doc, app.ReadOptions{Auto: o.auto, Resume: o.resume, In: in, Out: out})
	return err
}

func printStats(ctx context.Context, a *app.App, out io.Writer) error {
	s := a.Store.AggregateStats()
	fmt.Fprintf(out, "Words:            %d\n", s.TotalWords)
	fmt.Fprintf(out, "Mastered:         %d\n", s.MasteredCount)
	fmt.Fprintf(out, "Mean proficiency: %.2f\n", s.MeanProficiency)
	for _, st := range []vocab.Status{vocab.StatusNew, vocab.StatusLearning, vocab.StatusFamiliar, vocab.StatusMastered} {
		fmt.Fprintf(out, "  %-9s %d\n", st, s.ByStatus[st])
	}

	sessions, err := db.ListSessions(ctx, a.DB, 5)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nRecent sessions:")
	for _, rs := range sessions {
		fmt.Fprintf(out, "  %s  %3d segments  %5d words  %3d new  %s\n",
			rs.StartedAt.Local().Format(time.DateTime), rs.SegmentsRead, rs.WordsEncountered,
			rs.NewWordsLearned, rs.Elapsed.Round(time.Second))
	}
	return nil
}
