package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/ingest"
	"github.com/japaniel/novelreader/pkg/report"
	"github.com/japaniel/novelreader/pkg/session"
)

// ReadOptions controls an interactive reading session.
type ReadOptions struct {
	// Auto acknowledges every segment without waiting for input.
	Auto   bool
	Resume bool
	In     io.Reader
	Out    io.Writer
}

// ReadResult is the outcome of Read.
type ReadResult struct {
	Stats      session.Stats
	ReportPath string
}

// Read runs a reading session over doc. Each segment is shown with its
// difficulty; the reader answers with a line of words, "+word" for known
// and "-word" or a bare word for unknown, an empty line to continue, or "q"
// to stop. The session is finished and exported when the loop ends.
func (a *App) Read(ctx context.Context, doc *document.Document, opts ReadOptions) (ReadResult, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	in := bufio.NewScanner(strings.NewReader(""))
	if opts.In != nil {
		in = bufio.NewScanner(opts.In)
	}

	a.printOverview(ctx, out, doc)

	c := a.NewSession(opts.Resume)
	if _, err := c.Start(ctx, doc); err != nil {
		return ReadResult{}, err
	}
	total := len(doc.Segments)

loop:
	for {
		seg, score, err := c.NextSegment(ctx)
		switch {
		case errors.Is(err, session.ErrOutOfSegments):
			fmt.Fprintln(out, "End of document.")
			break loop
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			break loop
		case err != nil && seg.RawText == "":
			return ReadResult{}, err
		case err != nil:
			// Unscorable segment: show it but skip feedback.
			a.Logger.Warn("segment skipped", slog.Int("segment", seg.Index), slog.String("error", err.Error()))
			fmt.Fprintf(out, "\n[%d/%d] (could not be scored)\n", seg.Index+1, total)
			continue
		}

		fmt.Fprintf(out, "\n[%d/%d] %s (%.2f), %d words, %.0f%% familiar\n",
			seg.Index+1, total, score.Label, score.Raw, score.TotalWords, score.Coverage*100)
		fmt.Fprintln(out, seg.RawText)
		if len(score.DifficultWords) > 0 {
			fmt.Fprintf(out, "Difficult words: %s\n", strings.Join(score.DifficultWords, ", "))
		}
		if text, err := c.Explain(ctx, seg, score); err == nil && text != "" {
			fmt.Fprintf(out, "\n%s\n", text)
		} else if err != nil {
			fmt.Fprintln(out, "(explanation unavailable)")
		}

		var known, unknown []string
		if !opts.Auto {
			fmt.Fprint(out, "> ")
			if !in.Scan() {
				break loop
			}
			var quit bool
			known, unknown, quit = parseFeedback(in.Text())
			if quit {
				break loop
			}
		}
		if err := c.AcknowledgeSegment(ctx, seg, known, unknown); err != nil {
			return ReadResult{}, fmt.Errorf("acknowledge segment %d: %w", seg.Index, err)
		}
	}

	// Saving gets its own deadline so an interrupted session still saves.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	stats, err := c.Finish(finishCtx)
	if err != nil {
		a.Logger.Warn("retrying vocabulary save", slog.String("error", err.Error()))
		if stats, err = c.Finish(finishCtx); err != nil {
			return ReadResult{Stats: stats}, err
		}
	}
	res := ReadResult{Stats: stats}
	printStats(out, stats)

	if stats.SegmentsRead == 0 {
		return res, nil
	}
	path, err := a.export(finishCtx, report.Report{
		Title:       doc.Title,
		Stats:       stats,
		Vocabulary:  a.Store.AggregateStats(),
		Segments:    c.Annotated(),
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		return res, err
	}
	res.ReportPath = path
	fmt.Fprintf(out, "Report written to %s\n", path)
	return res, nil
}

// RunDigest scores and explains the whole of doc and exports the result.
func (a *App) RunDigest(ctx context.Context, doc *document.Document, out io.Writer) (string, error) {
	rep, err := a.Digest().Run(ctx, doc, a.Store)
	if err != nil {
		return "", err
	}
	path, err := a.export(ctx, rep)
	if err != nil {
		return "", err
	}
	if out != nil {
		fmt.Fprintf(out, "Digest of %q: %d segments, %d explained, %d failed.\nReport written to %s\n",
			doc.Title, rep.Stats.SegmentsRead, rep.Stats.Explanations, rep.Stats.ExplanationFailures, path)
	}
	return path, nil
}

func (a *App) export(ctx context.Context, r report.Report) (string, error) {
	exp, err := a.Exporter()
	if err != nil {
		return "", err
	}
	return exp.Export(ctx, r)
}

func (a *App) printOverview(ctx context.Context, out io.Writer, doc *document.Document) {
	pre := ingest.NewPreprocessor(a.Analyzer)
	pre.Workers = a.Config.Ingest.Workers
	scored, err := pre.ScoreAll(ctx, doc.Segments, a.Store.Snapshot())
	if err != nil {
		a.Logger.Warn("overview unavailable", slog.String("error", err.Error()))
		return
	}
	o := ingest.Summarize(scored, a.Analyzer.Config())
	fmt.Fprintf(out, "%s: %d segments, %d words, overall %s (%.2f), about %s to read\n",
		doc.Title, o.Segments, o.TotalWords, o.Label, o.MeanRaw, o.ReadingTime.Round(time.Minute))
	fmt.Fprintf(out, "Segments: %d easy, %d moderate, %d hard\n",
		o.Labels[difficulty.Easy], o.Labels[difficulty.Moderate], o.Labels[difficulty.Hard])
}

func printStats(out io.Writer, s session.Stats) {
	fmt.Fprintf(out, "\nSession %s\n", s.ID)
	fmt.Fprintf(out, "Segments read:     %d\n", s.SegmentsRead)
	fmt.Fprintf(out, "Words encountered: %d\n", s.WordsEncountered)
	fmt.Fprintf(out, "New words:         %d\n", s.NewWordsLearned)
	fmt.Fprintf(out, "Time:              %s\n", s.Elapsed.Round(time.Second))
	if s.Explanations+s.ExplanationFailures > 0 {
		fmt.Fprintf(out, "Explanations:      %d (%d failed)\n", s.Explanations, s.ExplanationFailures)
	}
}

// parseFeedback reads one answer line. Words prefixed with '+' are known;
// '-' and bare words are unknown. A lone "q" quits.
func parseFeedback(line string) (known, unknown []string, quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 1 && strings.EqualFold(fields[0], "q") {
		return nil, nil, true
	}
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "+"):
			if w := strings.TrimPrefix(f, "+"); w != "" {
				known = append(known, w)
			}
		case strings.HasPrefix(f, "-"):
			if w := strings.TrimPrefix(f, "-"); w != "" {
				unknown = append(unknown, w)
			}
		default:
			unknown = append(unknown, f)
		}
	}
	return known, unknown, false
}
