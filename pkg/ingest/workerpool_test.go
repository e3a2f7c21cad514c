package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/lexical"
)

// scoreJob scores seg into out[seg.Index].
func scoreJob(a *difficulty.Analyzer, seg document.Segment, out []difficulty.Score) Job {
	return func(ctx context.Context) error {
		s, err := a.Score(seg.RawText, emptySnapshot())
		if err != nil {
			return err
		}
		out[seg.Index] = s
		return nil
	}
}

func TestWorkerPoolScoresEverySegment(t *testing.T) {
	a := newAnalyzer(t)
	doc := novel(60)
	scores := make([]difficulty.Score, len(doc.Segments))

	p := NewWorkerPool(4, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	for _, seg := range doc.Segments {
		if err := p.Submit(scoreJob(a, seg, scores)); err != nil {
			t.Fatalf("submit segment %d: %v", seg.Index, err)
		}
	}
	p.Close()

	for i, s := range scores {
		if s.TotalWords == 0 {
			t.Fatalf("segment %d was not scored", i)
		}
		if i%2 == 1 && s.Label != difficulty.Hard {
			t.Fatalf("segment %d: expected hard, got %s", i, s.Label)
		}
	}
}

func TestWorkerPoolRejectsAfterClose(t *testing.T) {
	a := newAnalyzer(t)
	doc := novel(1)
	scores := make([]difficulty.Score, 1)

	p := NewWorkerPool(1, 2)
	p.Start(context.Background())
	p.Close()
	if err := p.Submit(scoreJob(a, doc.Segments[0], scores)); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if scores[0].TotalWords != 0 {
		t.Fatal("a rejected job must not run")
	}
}

func TestWorkerPoolCloseReleasesBlockedSubmit(t *testing.T) {
	a := newAnalyzer(t)
	doc := novel(2)
	scores := make([]difficulty.Score, 2)

	// No workers, queue of one: the second submit blocks until Close.
	p := NewWorkerPool(1, 1)
	if err := p.Submit(scoreJob(a, doc.Segments[0], scores)); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- p.Submit(scoreJob(a, doc.Segments[1], scores)) }()
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case err := <-done:
		if err != ErrPoolClosed {
			t.Fatalf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked submit was not released by Close")
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestWorkerPoolStopsOnCancel(t *testing.T) {
	p := NewWorkerPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Close blocked after the context was cancelled")
	}
}

func TestWorkerPoolSubmitCtxDeadline(t *testing.T) {
	a := newAnalyzer(t)
	doc := novel(2)
	scores := make([]difficulty.Score, 2)

	p := NewWorkerPool(1, 1)
	defer p.Close()
	if err := p.Submit(scoreJob(a, doc.Segments[0], scores)); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.SubmitCtx(ctx, scoreJob(a, doc.Segments[1], scores)); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerPoolReportsScoringErrors(t *testing.T) {
	a := newAnalyzer(t)
	segs := make([]document.Segment, 10)
	for i := range segs {
		segs[i] = document.Segment{Index: i, RawText: "The dog sat by the door."}
		if i%2 == 0 {
			segs[i].RawText = "bad \xff bytes"
		}
	}
	scores := make([]difficulty.Score, len(segs))

	var mu sync.Mutex
	var encodingErrors int
	var other atomic.Int32
	p := NewWorkerPool(3, 4)
	p.OnError = func(err error) {
		var encErr *lexical.EncodingError
		if !errors.As(err, &encErr) {
			other.Add(1)
			return
		}
		mu.Lock()
		encodingErrors++
		mu.Unlock()
	}
	p.Start(context.Background())
	for _, seg := range segs {
		if err := p.Submit(scoreJob(a, seg, scores)); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	p.Close()

	if encodingErrors != 5 || other.Load() != 0 {
		t.Fatalf("expected 5 encoding errors, got %d (and %d others)", encodingErrors, other.Load())
	}
	for i := 1; i < len(segs); i += 2 {
		if scores[i].TotalWords == 0 {
			t.Fatalf("segment %d should have been scored", i)
		}
	}
}
