package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertChunk bounds rows per multi-row INSERT to stay under SQLite's
// host parameter limit.
const insertChunk = 200

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// CreateOrGetDocument returns the id of the document with the given
// fingerprint, inserting it if missing.
func CreateOrGetDocument(ctx context.Context, db DBExecutor, fingerprint, title, path string, segments int) (int64, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return 0, fmt.Errorf("fingerprint must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		// First, try to find an existing document.
		err := db.QueryRowContext(ctx, `SELECT id FROM documents WHERE fingerprint = ?`, fingerprint).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}

		// No existing row; try to insert one.
		query, args, err := sqlb.Insert("documents").
			Columns("fingerprint", "title", "path", "segment_count", "added_at").
			Values(fingerprint, title, path, segments, formatTime(time.Now())).
			ToSql()
		if err != nil {
			return 0, err
		}
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			// If another concurrent transaction inserted the same document, retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}

		// Insert succeeded; return the id directly
		return res.LastInsertId()
	}

	// If we've exhausted all retries, return an error
	return 0, fmt.Errorf("could not create or get document after %d retries", maxRetries)
}

// GetDocument returns the document with the given fingerprint.
func GetDocument(ctx context.Context, db DBExecutor, fingerprint string) (Document, error) {
	query, args, err := sqlb.Select("id", "fingerprint", "title", "path", "segment_count", "last_segment", "added_at").
		From("documents").
		Where(sq.Eq{"fingerprint": fingerprint}).
		ToSql()
	if err != nil {
		return Document{}, err
	}
	var d Document
	var added string
	err = db.QueryRowContext(ctx, query, args...).
		Scan(&d.ID, &d.Fingerprint, &d.Title, &d.Path, &d.SegmentCount, &d.LastSegment, &added)
	if err != nil {
		return Document{}, err
	}
	if d.AddedAt, err = parseTime(added); err != nil {
		return Document{}, err
	}
	return d, nil
}

// GetDocumentProgress returns the last acknowledged segment index for a document.
func GetDocumentProgress(ctx context.Context, db DBExecutor, documentID int64) (int, error) {
	var index int
	err := db.QueryRowContext(ctx, "SELECT last_segment FROM documents WHERE id = ?", documentID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateDocumentProgress records the last acknowledged segment index. The
// stored index never moves backwards.
func UpdateDocumentProgress(ctx context.Context, db DBExecutor, documentID int64, index int) error {
	_, err := db.ExecContext(ctx,
		"UPDATE documents SET last_segment = MAX(last_segment, ?) WHERE id = ?", index, documentID)
	return err
}

// InsertWordEvents appends events to the journal.
func InsertWordEvents(ctx context.Context, db DBExecutor, events []WordEvent) error {
	for start := 0; start < len(events); start += insertChunk {
		end := min(start+insertChunk, len(events))
		insert := sqlb.Insert("word_events").
			Columns("session_id", "word", "kind", "segment_index", "occurred_at")
		for _, e := range events[start:end] {
			insert = insert.Values(e.SessionID, e.Word, string(e.Kind), e.SegmentIndex, formatTime(e.OccurredAt))
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert word events: %w", err)
		}
	}
	return nil
}

// CountWordEvents returns how many events of kind were journaled for word.
func CountWordEvents(ctx context.Context, db DBExecutor, word string, kind EventKind) (int, error) {
	query, args, err := sqlb.Select("COUNT(*)").
		From("word_events").
		Where(sq.Eq{"word": word, "kind": string(kind)}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SaveSession upserts a session summary.
func SaveSession(ctx context.Context, db DBExecutor, s SessionRecord) error {
	var docID any
	if s.DocumentID > 0 {
		docID = s.DocumentID
	}
	query, args, err := sqlb.Insert("reading_sessions").
		Columns("id", "document_id", "started_at", "finished_at", "words_encountered",
			"new_words_learned", "segments_read", "elapsed_ms", "explanations", "explanation_failures").
		Values(s.ID, docID, formatTime(s.StartedAt), formatTime(s.FinishedAt), s.WordsEncountered,
			s.NewWordsLearned, s.SegmentsRead, s.Elapsed.Milliseconds(), s.Explanations, s.ExplanationFailures).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			words_encountered = excluded.words_encountered,
			new_words_learned = excluded.new_words_learned,
			segments_read = excluded.segments_read,
			elapsed_ms = excluded.elapsed_ms,
			explanations = excluded.explanations,
			explanation_failures = excluded.explanation_failures`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

// ListSessions returns the most recent sessions first.
func ListSessions(ctx context.Context, db DBExecutor, limit int) ([]SessionRecord, error) {
	q := sqlb.Select("id", "IFNULL(document_id, 0)", "started_at", "finished_at", "words_encountered",
		"new_words_learned", "segments_read", "elapsed_ms", "explanations", "explanation_failures").
		From("reading_sessions").
		OrderBy("started_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var s SessionRecord
		var started, finished string
		var elapsedMs int64
		if err := rows.Scan(&s.ID, &s.DocumentID, &started, &finished, &s.WordsEncountered,
			&s.NewWordsLearned, &s.SegmentsRead, &elapsedMs, &s.Explanations, &s.ExplanationFailures); err != nil {
			return nil, err
		}
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if s.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		s.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFrequencyTable replaces the stored frequency list. words are ordered
// most frequent first.
func SaveFrequencyTable(ctx context.Context, db *sql.DB, words []string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM frequency"); err != nil {
		return fmt.Errorf("clear frequency: %w", err)
	}
	seen := make(map[string]bool, len(words))
	rank := 0
	var batch sq.InsertBuilder
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		query, args, err := batch.ToSql()
		if err != nil {
			return err
		}
		pending = 0
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		rank++
		if pending == 0 {
			batch = sqlb.Insert("frequency").Columns("word", "rank")
		}
		batch = batch.Values(w, rank)
		pending++
		if pending == insertChunk {
			if err = flush(); err != nil {
				return fmt.Errorf("insert frequency: %w", err)
			}
		}
	}
	if err = flush(); err != nil {
		return fmt.Errorf("insert frequency: %w", err)
	}
	return tx.Commit()
}

// LoadFrequencyTable returns the stored frequency list, most frequent first.
// An empty result means no table has been imported.
func LoadFrequencyTable(ctx context.Context, db DBExecutor) ([]string, error) {
	query, args, err := sqlb.Select("word").From("frequency").OrderBy("rank ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}
