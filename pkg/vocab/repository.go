package vocab

import (
	"context"
	"sort"
	"sync"
)

// Repository is the durable backend for word records. Implementations must
// make Replace atomic: a failed or interrupted Replace leaves the previous
// complete set readable.
type Repository interface {
	// Load returns every stored record.
	Load(ctx context.Context) ([]WordRecord, error)

	// Get returns the stored record for word.
	Get(ctx context.Context, word string) (WordRecord, bool, error)

	// Upsert writes records incrementally. A record whose version is not
	// newer than the stored one fails with *ConcurrencyError and nothing
	// from the batch is written.
	Upsert(ctx context.Context, records []WordRecord) error

	// Replace atomically swaps the whole stored set for records.
	Replace(ctx context.Context, records []WordRecord) error
}

// MemoryRepository keeps records in memory. Useful for tests and ephemeral
// sessions.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]WordRecord
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]WordRecord)}
}

func (m *MemoryRepository) Load(ctx context.Context) ([]WordRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedRecords(m.records), nil
}

func (m *MemoryRepository) Get(ctx context.Context, word string) (WordRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return WordRecord{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[word]
	return r, ok, nil
}

func (m *MemoryRepository) Upsert(ctx context.Context, records []WordRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkVersions(m.records, records); err != nil {
		return err
	}
	for _, r := range records {
		m.records[r.Word] = r
	}
	return nil
}

func (m *MemoryRepository) Replace(ctx context.Context, records []WordRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := make(map[string]WordRecord, len(records))
	for _, r := range records {
		next[r.Word] = r
	}
	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
	return nil
}

// checkVersions rejects any record that is not newer than its stored copy.
func checkVersions(stored map[string]WordRecord, records []WordRecord) error {
	for _, r := range records {
		if cur, ok := stored[r.Word]; ok && cur.Version >= r.Version {
			return &ConcurrencyError{Word: r.Word, Stored: cur.Version, Attempted: r.Version}
		}
	}
	return nil
}

func sortedRecords(m map[string]WordRecord) []WordRecord {
	out := make([]WordRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}
