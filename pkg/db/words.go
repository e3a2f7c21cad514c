package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/japaniel/novelreader/pkg/vocab"
)

var wordColumns = []string{"word", "exposure_count", "proficiency", "first_seen", "last_seen", "decayed_through", "version"}

// WordRepository stores word records in the word_records table. It
// implements vocab.Repository.
type WordRepository struct {
	db *sql.DB
}

var _ vocab.Repository = (*WordRepository)(nil)

// NewWordRepository returns a repository over an initialized database.
func NewWordRepository(db *sql.DB) *WordRepository {
	return &WordRepository{db: db}
}

func (r *WordRepository) Load(ctx context.Context) ([]vocab.WordRecord, error) {
	query, args, err := sqlb.Select(wordColumns...).From("word_records").OrderBy("word ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load word records: %w", err)
	}
	defer rows.Close()

	var out []vocab.WordRecord
	for rows.Next() {
		rec, err := scanWordRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *WordRepository) Get(ctx context.Context, word string) (vocab.WordRecord, bool, error) {
	return getWordRecord(ctx, r.db, word)
}

// Upsert writes records in one transaction. The conditional update only
// touches a row whose stored version is older; an untouched row means a
// newer write already landed and the whole batch is rolled back.
func (r *WordRepository) Upsert(ctx context.Context, records []vocab.WordRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, rec := range records {
		query, args, qerr := sqlb.Insert("word_records").
			Columns(wordColumns...).
			Values(wordValues(rec)...).
			Suffix(`ON CONFLICT(word) DO UPDATE SET
				exposure_count = excluded.exposure_count,
				proficiency = excluded.proficiency,
				first_seen = excluded.first_seen,
				last_seen = excluded.last_seen,
				decayed_through = excluded.decayed_through,
				version = excluded.version
			WHERE word_records.version < excluded.version`).
			ToSql()
		if qerr != nil {
			return qerr
		}
		res, xerr := tx.ExecContext(ctx, query, args...)
		if xerr != nil {
			return fmt.Errorf("upsert %q: %w", rec.Word, xerr)
		}
		n, xerr := res.RowsAffected()
		if xerr != nil {
			return xerr
		}
		if n == 0 {
			stored, _, gerr := getWordRecord(ctx, tx, rec.Word)
			if gerr != nil {
				return gerr
			}
			return &vocab.ConcurrencyError{Word: rec.Word, Stored: stored.Version, Attempted: rec.Version}
		}
	}
	return tx.Commit()
}

// Replace swaps the whole table inside a single transaction.
func (r *WordRepository) Replace(ctx context.Context, records []vocab.WordRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM word_records"); err != nil {
		return fmt.Errorf("clear word records: %w", err)
	}
	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		insert := sqlb.Insert("word_records").Columns(wordColumns...)
		for _, rec := range records[start:end] {
			insert = insert.Values(wordValues(rec)...)
		}
		query, args, qerr := insert.ToSql()
		if qerr != nil {
			return qerr
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert word records: %w", err)
		}
	}
	return tx.Commit()
}

func wordValues(rec vocab.WordRecord) []any {
	return []any{rec.Word, rec.ExposureCount, rec.Proficiency, formatTime(rec.FirstSeen),
		formatTime(rec.LastSeen), formatTime(rec.DecayedThrough), rec.Version}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWordRecord(row rowScanner) (vocab.WordRecord, error) {
	var rec vocab.WordRecord
	var first, last, decayed string
	if err := row.Scan(&rec.Word, &rec.ExposureCount, &rec.Proficiency, &first, &last, &decayed, &rec.Version); err != nil {
		return vocab.WordRecord{}, err
	}
	var err error
	if rec.FirstSeen, err = parseTime(first); err != nil {
		return vocab.WordRecord{}, err
	}
	if rec.LastSeen, err = parseTime(last); err != nil {
		return vocab.WordRecord{}, err
	}
	if rec.DecayedThrough, err = parseTime(decayed); err != nil {
		return vocab.WordRecord{}, err
	}
	return rec, nil
}

func getWordRecord(ctx context.Context, db DBExecutor, word string) (vocab.WordRecord, bool, error) {
	query, args, err := sqlb.Select(wordColumns...).From("word_records").Where(sq.Eq{"word": word}).ToSql()
	if err != nil {
		return vocab.WordRecord{}, false, err
	}
	rec, err := scanWordRecord(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return vocab.WordRecord{}, false, nil
	}
	if err != nil {
		return vocab.WordRecord{}, false, err
	}
	return rec, true, nil
}
