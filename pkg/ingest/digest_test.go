package ingest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/explain"
	"github.com/japaniel/novelreader/pkg/vocab"
)

func newStore(t *testing.T) *vocab.Store {
	t.Helper()
	store, err := vocab.NewStore(vocab.NewMemoryRepository(), vocab.DefaultPolicy())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestDigestExplainsDifficultSegments(t *testing.T) {
	var calls int64
	d := &Digest{
		Preprocessor: NewPreprocessor(newAnalyzer(t)),
		Explainer: explain.Func(func(ctx context.Context, req explain.Request) (string, error) {
			atomic.AddInt64(&calls, 1)
			if req.Score.Label != difficulty.Hard {
				t.Errorf("explained a %s segment", req.Score.Label)
			}
			return "explained: " + req.Text, nil
		}),
		DifficultOnly: true,
		Workers:       3,
	}
	doc := novel(10)
	store := newStore(t)

	rep, err := d.Run(context.Background(), doc, store)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected 5 explanation calls, got %d", calls)
	}
	if rep.Stats.Explanations != 5 || rep.Stats.ExplanationFailures != 0 {
		t.Fatalf("unexpected stats: %+v", rep.Stats)
	}
	if rep.Stats.SegmentsRead != 10 || rep.Title != "novel" || rep.Stats.ID == "" {
		t.Fatalf("unexpected stats: %+v", rep.Stats)
	}
	for i, seg := range rep.Segments {
		if seg.Segment.Index != i {
			t.Fatalf("segment %d out of order", i)
		}
		if i%2 == 1 && !strings.HasPrefix(seg.Explanation, "explained: Quixotic") {
			t.Fatalf("segment %d missing explanation: %q", i, seg.Explanation)
		}
		if i%2 == 0 && seg.Explanation != "" {
			t.Fatalf("segment %d should not be explained", i)
		}
	}
	// Digest never records exposures.
	if len(store.Records()) != 0 {
		t.Fatalf("digest modified the vocabulary: %d records", len(store.Records()))
	}
}

func TestDigestCountsFailures(t *testing.T) {
	d := &Digest{
		Preprocessor: NewPreprocessor(newAnalyzer(t)),
		Explainer:    explain.Static{Err: explain.ErrProviderUnavailable},
	}
	rep, err := d.Run(context.Background(), novel(4), newStore(t))
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if rep.Stats.Explanations != 0 || rep.Stats.ExplanationFailures != 4 {
		t.Fatalf("unexpected stats: %+v", rep.Stats)
	}
	for _, seg := range rep.Segments {
		if seg.Explanation != "" {
			t.Fatalf("failed explanation should leave segment unexplained, got %q", seg.Explanation)
		}
	}
}

func TestDigestWithoutExplainer(t *testing.T) {
	start := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	clock := start
	d := &Digest{
		Preprocessor: NewPreprocessor(newAnalyzer(t)),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	rep, err := d.Run(context.Background(), novel(3), newStore(t))
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if rep.Stats.Explanations != 0 || rep.Stats.ExplanationFailures != 0 {
		t.Fatalf("unexpected stats: %+v", rep.Stats)
	}
	if rep.Stats.WordsEncountered == 0 {
		t.Fatal("expected words to be counted")
	}
	if !rep.Stats.StartedAt.Equal(start.Add(time.Second)) || rep.Stats.Elapsed != time.Second {
		t.Fatalf("unexpected timing: started %v elapsed %v", rep.Stats.StartedAt, rep.Stats.Elapsed)
	}
}

func TestDigestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Digest{Preprocessor: NewPreprocessor(newAnalyzer(t)), Explainer: explain.Static{}}
	if _, err := d.Run(ctx, novel(3), newStore(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
