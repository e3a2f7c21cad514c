// Package vocab tracks a reader's per-word learning records and proficiency.
package vocab

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type entry struct {
	mu    sync.Mutex
	rec   WordRecord
	dirty bool
	// stored is the exposure count last read from or written to the
	// repository; the difference to rec.ExposureCount is this store's share.
	stored int
}

// Store is the single writer of word records. The authoritative state lives
// in memory; Persist and Flush write it through to a Repository.
//
// Mutations are serialized per word. Readers of other words proceed
// concurrently and never observe a partially applied mutation.
type Store struct {
	policy Policy
	repo   Repository

	// Logger, if set, receives persistence diagnostics.
	Logger *slog.Logger
	// Now is the clock used for lazy decay on Lookup and for snapshots.
	Now func() time.Time

	mu      sync.RWMutex // guards entries (the map, not the records)
	entries map[string]*entry
}

// NewStore creates an empty store over repo. Call Restore to load existing
// records.
func NewStore(repo Repository, policy Policy) (*Store, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		policy:  policy,
		repo:    repo,
		Now:     time.Now,
		entries: make(map[string]*entry),
	}, nil
}

// Policy returns the proficiency rules in effect.
func (s *Store) Policy() Policy { return s.policy }

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *Store) get(word string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[word]
}

func (s *Store) getOrCreate(word string) (*entry, bool) {
	if e := s.get(word); e != nil {
		return e, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[word]; ok {
		return e, false
	}
	e := &entry{rec: WordRecord{Word: word, Proficiency: s.policy.Min}}
	s.entries[word] = e
	return e, true
}

// Lookup returns the record for word, applying any pending decay first. It
// never creates a record.
func (s *Store) Lookup(word string) (WordRecord, bool) {
	e := s.get(word)
	if e == nil {
		return WordRecord{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s.applyDecay(e, s.Now())
	return e.rec, true
}

// Contains reports whether a record exists for word without touching it.
func (s *Store) Contains(word string) bool {
	return s.get(word) != nil
}

// RecordExposure counts one reading of word at the given time, creating the
// record at minimum proficiency if needed.
func (s *Store) RecordExposure(word string, at time.Time) (WordRecord, error) {
	return s.mutate(word, at, func(r *WordRecord) {
		r.ExposureCount++
		r.Proficiency = s.policy.afterExposure(r.Proficiency)
	})
}

// RecordFeedback applies an explicit known/unknown judgement from the reader.
// Marking a word unknown restarts its decay timer.
func (s *Store) RecordFeedback(word string, known bool, at time.Time) (WordRecord, error) {
	return s.mutate(word, at, func(r *WordRecord) {
		r.Proficiency = s.policy.afterFeedback(r.Proficiency, known)
	})
}

// DecayIfStale applies forgetting to word as of now. A word reviewed within
// the staleness window is returned unchanged.
func (s *Store) DecayIfStale(word string, now time.Time) (WordRecord, bool) {
	e := s.get(word)
	if e == nil {
		return WordRecord{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s.applyDecay(e, now)
	return e.rec, true
}

func (s *Store) mutate(word string, at time.Time, apply func(*WordRecord)) (WordRecord, error) {
	if word == "" {
		return WordRecord{}, ErrEmptyWord
	}
	at = at.Round(0).UTC()
	e, _ := s.getOrCreate(word)
	e.mu.Lock()
	defer e.mu.Unlock()

	s.applyDecay(e, at)
	r := e.rec
	apply(&r)
	if r.FirstSeen.IsZero() || at.Before(r.FirstSeen) {
		r.FirstSeen = at
	}
	if at.After(r.LastSeen) {
		r.LastSeen = at
		r.DecayedThrough = at
	}
	r.Version++
	e.rec = r
	e.dirty = true
	return r, nil
}

// applyDecay must be called with e.mu held.
func (s *Store) applyDecay(e *entry, now time.Time) {
	if r, changed := s.policy.decay(e.rec, now.Round(0).UTC()); changed {
		r.Version++
		e.rec = r
		e.dirty = true
	}
}

// view returns a decayed copy of every record without mutating the store.
func (s *Store) view(now time.Time) []WordRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WordRecord, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		r, _ := s.policy.decay(e.rec, now)
		e.mu.Unlock()
		out = append(out, r)
	}
	return out
}

// AggregateStats summarizes the vocabulary as of the store clock.
func (s *Store) AggregateStats() Stats {
	return s.Snapshot().Stats()
}

// Snapshot captures an immutable copy of current proficiencies for scoring.
func (s *Store) Snapshot() *Snapshot {
	records := s.view(s.Now().Round(0).UTC())
	snap := &Snapshot{proficiency: make(map[string]float64, len(records))}
	for _, r := range records {
		snap.proficiency[r.Word] = r.Proficiency
	}
	snap.stats = summarize(s.policy, snap.proficiency)
	return snap
}

// Records returns a copy of every record ordered by word.
func (s *Store) Records() []WordRecord {
	out := s.copyAll()
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}

func (s *Store) copyAll() []WordRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WordRecord, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		out = append(out, e.rec)
		e.mu.Unlock()
	}
	return out
}

// Persist atomically replaces the durable state with the current records,
// dropping any stored word this store does not hold. Use Flush to save
// alongside other writers. On failure the in-memory state is untouched and
// Persist may be retried.
func (s *Store) Persist(ctx context.Context) error {
	records := s.copyAll()
	if err := s.repo.Replace(ctx, records); err != nil {
		return &PersistenceError{Op: "persist", Err: err}
	}
	s.markClean(records)
	s.logger().Debug("vocabulary persisted", "records", len(records))
	return nil
}

// Restore replaces the in-memory state with the durable one. It is meant to
// run before the store is shared. Words already held are overwritten in
// place under their own lock; a mutation racing with Restore on a word the
// repository does not know is discarded.
func (s *Store) Restore(ctx context.Context) error {
	records, err := s.repo.Load(ctx)
	if err != nil {
		return &PersistenceError{Op: "restore", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make(map[string]*entry, len(records))
	for _, r := range records {
		if r.Word == "" {
			continue
		}
		r.Proficiency = s.policy.clamp(r.Proficiency)
		e := s.entries[r.Word]
		if e == nil {
			e = &entry{}
		}
		e.mu.Lock()
		e.rec, e.dirty, e.stored = r, false, r.ExposureCount
		e.mu.Unlock()
		entries[r.Word] = e
	}
	s.entries = entries
	s.logger().Debug("vocabulary restored", "records", len(entries))
	return nil
}

// Flush writes records changed since the last Restore, Persist or Flush,
// leaving other stored words alone. A version conflict is resolved once by
// merging every stale record with its stored copy and retrying.
func (s *Store) Flush(ctx context.Context) error {
	dirty := s.dirtyRecords()
	if len(dirty) == 0 {
		return nil
	}
	err := s.repo.Upsert(ctx, dirty)
	var conflict *ConcurrencyError
	if errors.As(err, &conflict) {
		s.logger().Warn("vocabulary flush conflict, retrying", "word", conflict.Word,
			"stored_version", conflict.Stored, "attempted_version", conflict.Attempted)
		if mergeErr := s.mergeStale(ctx, dirty); mergeErr != nil {
			return &PersistenceError{Op: "flush", Err: mergeErr}
		}
		dirty = s.dirtyRecords()
		err = s.repo.Upsert(ctx, dirty)
	}
	if err != nil {
		if errors.As(err, &conflict) {
			return err
		}
		return &PersistenceError{Op: "flush", Err: err}
	}
	s.markClean(dirty)
	return nil
}

// mergeStale folds every stored record at least as new as the pending one
// into memory.
func (s *Store) mergeStale(ctx context.Context, pending []WordRecord) error {
	for _, p := range pending {
		stored, ok, err := s.repo.Get(ctx, p.Word)
		if err != nil {
			return err
		}
		if ok && stored.Version >= p.Version {
			s.mergeStored(p.Word, stored)
		}
	}
	return nil
}

// mergeStored folds a newer stored record for word into the in-memory one:
// exposures this store added since its last read or write go on top of the
// stored count, first-seen takes the earlier value, proficiency follows the
// more recently reviewed side, and the version moves past both.
func (s *Store) mergeStored(word string, stored WordRecord) {
	e := s.get(word)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.rec
	r.ExposureCount = stored.ExposureCount + max(0, r.ExposureCount-e.stored)
	e.stored = stored.ExposureCount
	if !stored.FirstSeen.IsZero() && (r.FirstSeen.IsZero() || stored.FirstSeen.Before(r.FirstSeen)) {
		r.FirstSeen = stored.FirstSeen
	}
	if stored.LastSeen.After(r.LastSeen) {
		r.LastSeen = stored.LastSeen
		r.DecayedThrough = stored.DecayedThrough
		r.Proficiency = s.policy.clamp(stored.Proficiency)
	}
	r.Version = max(r.Version, stored.Version) + 1
	e.rec = r
	e.dirty = true
}

func (s *Store) dirtyRecords() []WordRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []WordRecord
	for _, e := range s.entries {
		e.mu.Lock()
		if e.dirty {
			out = append(out, e.rec)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}

// markClean clears the dirty flag of records not mutated since they were written.
func (s *Store) markClean(written []WordRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range written {
		e := s.entries[r.Word]
		if e == nil {
			continue
		}
		e.mu.Lock()
		e.stored = r.ExposureCount
		if e.rec.Version == r.Version {
			e.dirty = false
		}
		e.mu.Unlock()
	}
}
