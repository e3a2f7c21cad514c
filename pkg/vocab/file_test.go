package vocab

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "vocab.json")
	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	records, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	s := newTestStore(t, repo)
	for i, w := range []string{"harbor", "quay", "the"} {
		_, err := s.RecordExposure(w, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err = s.RecordFeedback("quay", true, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx))

	restored := newTestStore(t, repo)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, s.Records(), restored.Records())

	got, ok, err := repo.Get(ctx, "quay")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.Proficiency, 1e-9)
}

func TestFileRepositoryReplaceLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileRepository(filepath.Join(dir, "vocab.json"))
	require.NoError(t, err)

	require.NoError(t, repo.Replace(ctx, []WordRecord{{Word: "a", Version: 1}}))
	require.NoError(t, repo.Replace(ctx, []WordRecord{{Word: "b", Version: 1}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "vocab.json", entries[0].Name())

	records, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].Word)
}

func TestFileRepositoryCorruptFileKeepsError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	s := newTestStore(t, repo)
	err = s.Restore(ctx)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "restore", perr.Op)
}

func TestFileRepositoryUpsertVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "vocab.json"))
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, []WordRecord{{Word: "harbor", Version: 2}}))
	err = repo.Upsert(ctx, []WordRecord{{Word: "quay", Version: 1}, {Word: "harbor", Version: 2}})
	var cerr *ConcurrencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "harbor", cerr.Word)
	assert.Equal(t, int64(2), cerr.Stored)

	// The rejected batch wrote nothing.
	_, ok, err := repo.Get(ctx, "quay")
	require.NoError(t, err)
	assert.False(t, ok)
}
