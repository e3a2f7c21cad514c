// Package ingest holds the concurrent machinery around reading sessions:
// a worker pool, a batched SQLite writer, the reading journal, whole-document
// scoring and the digest mode.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
)

// Scored is one segment with its difficulty for a given snapshot.
type Scored struct {
	Segment document.Segment
	Score   difficulty.Score
	// Err is a scoring failure confined to this segment.
	Err error
}

// Preprocessor scores every segment of a document on a worker pool and
// returns the results in document order.
type Preprocessor struct {
	Analyzer *difficulty.Analyzer
	Workers  int
	// OnProgress is called in document order with the number of segments
	// scored so far and the total.
	OnProgress func(current, total int)
	Logger     *slog.Logger

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewPreprocessor creates a Preprocessor with four workers.
func NewPreprocessor(analyzer *difficulty.Analyzer) *Preprocessor {
	return &Preprocessor{Analyzer: analyzer, Workers: 4}
}

func (p *Preprocessor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (p *Preprocessor) pool() WorkerPoolInterface {
	workers := max(1, p.Workers)
	if p.PoolFactory != nil {
		return p.PoolFactory(workers, workers*2)
	}
	return NewWorkerPool(workers, workers*2)
}

type scoredAt struct {
	pos int
	Scored
}

// ScoreAll scores segments against snap. Scoring errors are reported per
// segment; the returned error is a cancellation or a pool failure.
func (p *Preprocessor) ScoreAll(ctx context.Context, segments []document.Segment, snap difficulty.Snapshot) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := len(segments)
	if total == 0 {
		return nil, nil
	}
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := p.pool()
	wp.Start(ctx)
	resultCh := make(chan scoredAt, max(1, p.Workers)*2)
	doneCh := make(chan error, 1)
	out := make([]Scored, total)

	// Consumer: reassemble out-of-order results and report progress in order.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]Scored)
		next := 0
		for next < total {
			select {
			case <-ctx.Done():
				doneCh <- ctx.Err()
				return
			case res := <-resultCh:
				buffer[res.pos] = res.Scored
			}
			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				out[next] = item
				next++
				if p.OnProgress != nil {
					p.OnProgress(next, total)
				}
			}
		}
		doneCh <- nil
	}()

	var submitErr error
Loop:
	for i, seg := range segments {
		pos, seg := i, seg
		job := func(ctx context.Context) error {
			score, err := p.Analyzer.Score(seg.RawText, snap)
			select {
			case resultCh <- scoredAt{pos: pos, Scored: Scored{Segment: seg, Score: score, Err: err}}:
			case <-ctx.Done():
			}
			return nil
		}
		// Submit job to the worker pool but remain responsive to context cancellation.
		if err := wp.SubmitCtx(ctx, job); err != nil {
			submitErr = err
			cancel()
			break Loop
		}
	}

	consumerErr := <-doneCh
	cancel()
	wp.Close()

	if submitErr != nil {
		return nil, submitErr
	}
	if consumerErr != nil {
		return nil, consumerErr
	}
	p.logger().Debug("document scored", slog.Int("segments", total), slog.Duration("took", time.Since(start)))
	return out, nil
}

// Overview summarizes a scored document.
type Overview struct {
	Segments    int
	TotalWords  int
	MeanRaw     float64
	Label       difficulty.Label
	Labels      map[difficulty.Label]int
	ReadingTime time.Duration
	Failed      int
}

// Summarize computes the document-level difficulty, labeling the mean raw
// score with cfg.
func Summarize(scored []Scored, cfg difficulty.Config) Overview {
	o := Overview{Segments: len(scored), Labels: make(map[difficulty.Label]int)}
	var sum float64
	n := 0
	for _, s := range scored {
		if s.Err != nil {
			o.Failed++
			continue
		}
		o.TotalWords += s.Score.TotalWords
		o.ReadingTime += s.Score.ReadingTime
		o.Labels[s.Score.Label]++
		sum += s.Score.Raw
		n++
	}
	if n > 0 {
		o.MeanRaw = sum / float64(n)
	}
	o.Label = cfg.LabelFor(o.MeanRaw)
	return o
}
