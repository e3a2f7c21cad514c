package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/explain"
	"github.com/japaniel/novelreader/pkg/lexical"
	"github.com/japaniel/novelreader/pkg/vocab"
)

// Options configures a Coordinator. The zero value reads without
// explanations or a journal.
type Options struct {
	// Explainer, if set, explains segments on request.
	Explainer explain.Provider
	// DifficultOnly skips explanations for segments not labeled hard.
	DifficultOnly bool
	// Detailed requests long-form explanations.
	Detailed bool

	Journal Journal
	// Resume starts after the last segment the journal saw acknowledged.
	Resume bool

	Logger *slog.Logger
	Now    func() time.Time
}

// Coordinator runs a single reading session. It is safe for concurrent use,
// though a session is naturally driven by one goroutine.
//
// The coordinator never mutates word records itself; all changes go through
// the vocabulary store. Explanation calls run without holding any lock.
type Coordinator struct {
	store      *vocab.Store
	analyzer   *difficulty.Analyzer
	normalizer *lexical.Normalizer
	opts       Options
	log        *slog.Logger

	mu        sync.Mutex
	state     State
	doc       *document.Document
	next      int
	stats     Stats
	annotated []AnnotatedSegment
	byIndex   map[int]int // segment index -> position in annotated
}

// New creates a coordinator over the given store and analyzer.
func New(store *vocab.Store, analyzer *difficulty.Analyzer, normalizer *lexical.Normalizer, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		store:      store,
		analyzer:   analyzer,
		normalizer: normalizer,
		opts:       opts,
		log:        log.With("component", "session"),
		byIndex:    make(map[int]int),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins reading doc. With Options.Resume and a journal, reading
// continues after the last segment acknowledged in an earlier session.
func (c *Coordinator) Start(ctx context.Context, doc *document.Document) (Stats, error) {
	c.mu.Lock()
	switch c.state {
	case InProgress:
		c.mu.Unlock()
		return Stats{}, ErrAlreadyStarted
	case Completed:
		c.mu.Unlock()
		return Stats{}, ErrSessionClosed
	}
	c.doc = doc
	c.stats = Stats{
		ID:        uuid.NewString(),
		Document:  doc.Title,
		StartedAt: c.opts.Now().UTC(),
	}
	c.state = InProgress
	id := c.stats.ID
	c.mu.Unlock()

	if c.opts.Journal != nil {
		last, err := c.opts.Journal.Open(ctx, id, doc)
		if err != nil {
			c.log.WarnContext(ctx, "journal open failed", slog.String("document", doc.Title), slog.String("error", err.Error()))
		} else if c.opts.Resume && last >= 0 {
			c.mu.Lock()
			c.next = last + 1
			c.mu.Unlock()
			c.log.InfoContext(ctx, "resuming document", slog.String("document", doc.Title), slog.Int("segment", last+1))
		}
	}

	c.log.InfoContext(ctx, "session started",
		slog.String("session_id", id),
		slog.String("document", doc.Title),
		slog.Int("segments", len(doc.Segments)),
	)
	return c.Stats(), nil
}

func (c *Coordinator) checkOpen() error {
	switch c.state {
	case NotStarted:
		return ErrNotStarted
	case Completed:
		return ErrSessionClosed
	}
	return nil
}

// NextSegment advances to the next segment and scores it against the
// reader's current vocabulary. It returns ErrOutOfSegments once the
// document is exhausted. A scoring failure still advances; the segment is
// returned with the error so the caller may skip or acknowledge it.
func (c *Coordinator) NextSegment(ctx context.Context) (document.Segment, difficulty.Score, error) {
	if err := ctx.Err(); err != nil {
		return document.Segment{}, difficulty.Score{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return document.Segment{}, difficulty.Score{}, err
	}
	if c.next >= len(c.doc.Segments) {
		return document.Segment{}, difficulty.Score{}, ErrOutOfSegments
	}
	seg := c.doc.Segments[c.next]
	c.next++

	score, err := c.analyzer.Score(seg.RawText, c.store.Snapshot())
	c.byIndex[seg.Index] = len(c.annotated)
	c.annotated = append(c.annotated, AnnotatedSegment{Segment: seg, Score: score})
	if err != nil {
		return seg, difficulty.Score{}, fmt.Errorf("score segment %d: %w", seg.Index, err)
	}
	return seg, score, nil
}

// Explain asks the configured provider about seg. Degenerate segments, and
// non-hard ones with DifficultOnly, are skipped with an empty result.
// Provider failures are counted and returned; the segment can still be
// acknowledged.
func (c *Coordinator) Explain(ctx context.Context, seg document.Segment, score difficulty.Score) (string, error) {
	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.mu.Unlock()

	if c.opts.Explainer == nil || score.Degenerate || score.TotalWords == 0 {
		return "", nil
	}
	if c.opts.DifficultOnly && score.Label != difficulty.Hard {
		return "", nil
	}

	text, err := c.opts.Explainer.Explain(ctx, explain.Request{Text: seg.RawText, Score: score, Detailed: c.opts.Detailed})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.ExplanationFailures++
		c.log.WarnContext(ctx, "explanation failed", slog.Int("segment", seg.Index), slog.String("error", err.Error()))
		return "", err
	}
	c.stats.Explanations++
	if i, ok := c.byIndex[seg.Index]; ok {
		c.annotated[i].Explanation = text
	}
	return text, nil
}

// AcknowledgeSegment records that the reader has read seg. Every token is
// recorded as an exposure of its lemma; words in known and unknown receive
// explicit feedback afterwards.
func (c *Coordinator) AcknowledgeSegment(ctx context.Context, seg document.Segment, known, unknown []string) error {
	c.mu.Lock()
	err := c.checkOpen()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	tokens, err := c.normalizer.Normalize(seg.RawText)
	if err != nil {
		return fmt.Errorf("acknowledge segment %d: %w", seg.Index, err)
	}

	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return err
	}
	pos, served := c.byIndex[seg.Index]
	if !served {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrSegmentNotServed, seg.Index)
	}
	if c.annotated[pos].Acknowledged {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrAlreadyAcknowledged, seg.Index)
	}

	now := c.opts.Now()
	fresh := make(map[string]bool)
	for _, tok := range tokens {
		if _, seen := fresh[tok.Lemma]; !seen {
			fresh[tok.Lemma] = !c.store.Contains(tok.Lemma)
		}
	}

	events := make([]Event, 0, len(tokens)+len(known)+len(unknown))
	for _, tok := range tokens {
		if _, err := c.store.RecordExposure(tok.Lemma, now); err != nil {
			c.mu.Unlock()
			return err
		}
		events = append(events, Event{Word: tok.Lemma, Kind: EventExposure, SegmentIndex: seg.Index, At: now})
	}
	for _, fb := range []struct {
		words []string
		known bool
		kind  EventKind
	}{{known, true, EventKnown}, {unknown, false, EventUnknown}} {
		for _, lemma := range c.lemmas(fb.words) {
			if _, err := c.store.RecordFeedback(lemma, fb.known, now); err != nil {
				c.mu.Unlock()
				return err
			}
			events = append(events, Event{Word: lemma, Kind: fb.kind, SegmentIndex: seg.Index, At: now})
		}
	}

	learned := 0
	for _, isNew := range fresh {
		if isNew {
			learned++
		}
	}
	c.stats.WordsEncountered += len(tokens)
	c.stats.NewWordsLearned += learned
	c.stats.SegmentsRead++
	c.annotated[pos].Acknowledged = true
	id := c.stats.ID
	c.mu.Unlock()

	if c.opts.Journal != nil {
		if err := c.opts.Journal.Acknowledged(ctx, id, seg.Index, events); err != nil {
			c.log.WarnContext(ctx, "journal write failed", slog.Int("segment", seg.Index), slog.String("error", err.Error()))
		}
	}
	c.log.DebugContext(ctx, "segment acknowledged",
		slog.Int("segment", seg.Index),
		slog.Int("tokens", len(tokens)),
		slog.Int("new_words", learned),
	)
	return nil
}

// lemmas normalizes reader-supplied words, dropping duplicates and
// anything without letters.
func (c *Coordinator) lemmas(words []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		toks, err := c.normalizer.Normalize(w)
		if err != nil {
			continue
		}
		for _, t := range toks {
			if !seen[t.Lemma] {
				seen[t.Lemma] = true
				out = append(out, t.Lemma)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Finish writes the words changed during the session and closes it. Other
// stores sharing the repository keep their records; a version conflict is
// merged and retried once by the store. If saving fails the session stays
// open with its progress intact, and Finish may be called again.
func (c *Coordinator) Finish(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return Stats{}, err
	}
	c.mu.Unlock()

	if err := c.store.Flush(ctx); err != nil {
		c.log.WarnContext(ctx, "vocabulary not saved", slog.String("error", err.Error()))
		return c.Stats(), err
	}

	c.mu.Lock()
	if c.state == Completed {
		c.mu.Unlock()
		return Stats{}, ErrSessionClosed
	}
	c.stats.Elapsed = c.opts.Now().Sub(c.stats.StartedAt)
	c.state = Completed
	stats := c.stats
	c.mu.Unlock()

	if c.opts.Journal != nil {
		if err := c.opts.Journal.Finished(ctx, stats); err != nil {
			c.log.WarnContext(ctx, "journal finish failed", slog.String("error", err.Error()))
		}
	}
	c.log.InfoContext(ctx, "session finished",
		slog.String("session_id", stats.ID),
		slog.Int("segments_read", stats.SegmentsRead),
		slog.Int("words_encountered", stats.WordsEncountered),
		slog.Int("new_words_learned", stats.NewWordsLearned),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// Stats returns the session statistics so far.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	if c.state == InProgress {
		s.Elapsed = c.opts.Now().Sub(s.StartedAt)
	}
	return s
}

// Annotated returns the segments served so far, in reading order.
func (c *Coordinator) Annotated() []AnnotatedSegment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AnnotatedSegment, len(c.annotated))
	copy(out, c.annotated)
	return out
}

// Remaining reports how many segments have not been served yet.
func (c *Coordinator) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return 0
	}
	return max(0, len(c.doc.Segments)-c.next)
}
