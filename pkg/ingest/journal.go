package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/japaniel/novelreader/pkg/db"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/session"
)

// Journal records reading progress in SQLite. Word events and progress
// checkpoints are queued through a BatchWriter so acknowledging a segment
// never waits on disk; Finished flushes the queue.
type Journal struct {
	db  *sql.DB
	bw  *BatchWriter
	log *slog.Logger

	mu   sync.Mutex
	docs map[string]int64 // session ID -> document ID
}

var _ session.Journal = (*Journal)(nil)

// NewJournal creates a journal over an initialized database. Writes are
// committed every batchSize acknowledgments or every interval.
func NewJournal(conn *sql.DB, batchSize int, interval time.Duration, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	j := &Journal{
		db:   conn,
		bw:   NewBatchWriter(conn, batchSize, interval),
		log:  logger.With("component", "journal"),
		docs: make(map[string]int64),
	}
	j.bw.OnError = func(err error) {
		j.log.Error("journal write failed", slog.String("error", err.Error()))
	}
	return j
}

// Open registers doc and returns its last acknowledged segment.
func (j *Journal) Open(ctx context.Context, sessionID string, doc *document.Document) (int, error) {
	docID, err := db.CreateOrGetDocument(ctx, j.db, doc.Fingerprint, doc.Title, doc.Path, len(doc.Segments))
	if err != nil {
		return -1, fmt.Errorf("register document: %w", err)
	}
	last, err := db.GetDocumentProgress(ctx, j.db, docID)
	if err != nil {
		return -1, fmt.Errorf("read progress: %w", err)
	}
	j.mu.Lock()
	j.docs[sessionID] = docID
	j.mu.Unlock()
	return last, nil
}

func (j *Journal) documentID(sessionID string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id, ok := j.docs[sessionID]
	if !ok {
		return 0, fmt.Errorf("journal: session %s was not opened", sessionID)
	}
	return id, nil
}

// Acknowledged queues the segment's word events and a progress checkpoint.
func (j *Journal) Acknowledged(_ context.Context, sessionID string, segment int, events []session.Event) error {
	docID, err := j.documentID(sessionID)
	if err != nil {
		return err
	}
	rows := make([]db.WordEvent, len(events))
	for i, e := range events {
		rows[i] = db.WordEvent{
			SessionID:    sessionID,
			Word:         e.Word,
			Kind:         db.EventKind(e.Kind),
			SegmentIndex: e.SegmentIndex,
			OccurredAt:   e.At,
		}
	}
	return j.bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		if err := db.InsertWordEvents(ctx, tx, rows); err != nil {
			return fmt.Errorf("segment %d events: %w", segment, err)
		}
		if err := db.UpdateDocumentProgress(ctx, tx, docID, segment); err != nil {
			return fmt.Errorf("segment %d progress: %w", segment, err)
		}
		return nil
	})
}

// Finished stores the session summary and waits for all queued writes.
func (j *Journal) Finished(ctx context.Context, stats session.Stats) error {
	docID, err := j.documentID(stats.ID)
	if err != nil {
		return err
	}
	rec := db.SessionRecord{
		ID:                  stats.ID,
		DocumentID:          docID,
		StartedAt:           stats.StartedAt,
		FinishedAt:          stats.StartedAt.Add(stats.Elapsed),
		WordsEncountered:    stats.WordsEncountered,
		NewWordsLearned:     stats.NewWordsLearned,
		SegmentsRead:        stats.SegmentsRead,
		Elapsed:             stats.Elapsed,
		Explanations:        stats.Explanations,
		ExplanationFailures: stats.ExplanationFailures,
	}
	if err := j.bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		return db.SaveSession(ctx, tx, rec)
	}); err != nil {
		return err
	}
	if err := j.bw.Flush(ctx); err != nil {
		return err
	}
	j.mu.Lock()
	delete(j.docs, stats.ID)
	j.mu.Unlock()
	return nil
}

// Close flushes pending writes and stops the journal.
func (j *Journal) Close() error {
	return j.bw.Close()
}
