package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/explain"
	"github.com/japaniel/novelreader/pkg/report"
	"github.com/japaniel/novelreader/pkg/session"
	"github.com/japaniel/novelreader/pkg/vocab"
)

// Digest analyses a whole document at once: every segment is scored, the
// selected ones are explained concurrently, and the result is a report.
// It reads the vocabulary but records no exposures.
type Digest struct {
	Preprocessor *Preprocessor
	Explainer    explain.Provider
	// DifficultOnly limits explanations to segments labeled hard.
	DifficultOnly bool
	Detailed      bool
	// Workers bounds concurrent explanation calls.
	Workers int
	Logger  *slog.Logger
	Now     func() time.Time
}

func (d *Digest) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (d *Digest) wants(s Scored) bool {
	if d.Explainer == nil || s.Err != nil || s.Score.Degenerate || s.Score.TotalWords == 0 {
		return false
	}
	return !d.DifficultOnly || s.Score.Label == difficulty.Hard
}

// Run digests doc for the reader described by store.
func (d *Digest) Run(ctx context.Context, doc *document.Document, store *vocab.Store) (report.Report, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	started := now()

	snap := store.Snapshot()
	scored, err := d.Preprocessor.ScoreAll(ctx, doc.Segments, snap)
	if err != nil {
		return report.Report{}, err
	}

	annotated := make([]session.AnnotatedSegment, len(scored))
	stats := session.Stats{ID: uuid.NewString(), Document: doc.Title, StartedAt: started.UTC()}
	for i, s := range scored {
		annotated[i] = session.AnnotatedSegment{Segment: s.Segment, Score: s.Score}
		stats.SegmentsRead++
		stats.WordsEncountered += s.Score.TotalWords
	}

	var ok, failed int64
	if d.Explainer != nil {
		workers := max(1, d.Workers)
		wp := NewWorkerPool(workers, workers*2)
		wp.Start(ctx)

		// Explanations run without any store lock; each job owns one slot.
		var mu sync.Mutex
		var submitErr error
		for i, s := range scored {
			if !d.wants(s) {
				continue
			}
			i, s := i, s
			err := wp.SubmitCtx(ctx, func(ctx context.Context) error {
				text, err := d.Explainer.Explain(ctx, explain.Request{Text: s.Segment.RawText, Score: s.Score, Detailed: d.Detailed})
				if err != nil {
					atomic.AddInt64(&failed, 1)
					d.logger().Warn("explanation failed", slog.Int("segment", s.Segment.Index), slog.String("error", err.Error()))
					return nil
				}
				atomic.AddInt64(&ok, 1)
				mu.Lock()
				annotated[i].Explanation = text
				mu.Unlock()
				return nil
			})
			if err != nil {
				submitErr = err
				break
			}
		}
		wp.Close()
		if submitErr != nil && !errors.Is(submitErr, ErrPoolClosed) {
			return report.Report{}, submitErr
		}
	}

	stats.Explanations = int(ok)
	stats.ExplanationFailures = int(failed)
	stats.Elapsed = now().Sub(started)

	d.logger().Info("digest complete",
		slog.String("document", doc.Title),
		slog.Int("segments", len(scored)),
		slog.Int("explanations", stats.Explanations),
		slog.Int("failures", stats.ExplanationFailures),
	)
	return report.Report{
		Title:       doc.Title,
		Stats:       stats,
		Vocabulary:  snap.Stats(),
		Segments:    annotated,
		GeneratedAt: now().UTC(),
	}, nil
}
