package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/novelreader/pkg/vocab"
)

func TestWordRepositoryPersistRestore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewWordRepository(db)
	now := time.Date(2024, 6, 1, 8, 30, 0, 123456789, time.UTC)

	store, err := vocab.NewStore(repo, vocab.DefaultPolicy())
	require.NoError(t, err)
	store.Now = func() time.Time { return now }
	for i, w := range []string{"the", "harbor", "quay", "the"} {
		_, err := store.RecordExposure(w, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	_, err = store.RecordFeedback("quay", false, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx))

	restored, err := vocab.NewStore(repo, vocab.DefaultPolicy())
	require.NoError(t, err)
	restored.Now = store.Now
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, store.Records(), restored.Records())
	assert.Equal(t, store.AggregateStats(), restored.AggregateStats())

	// Persist replaces: a word dropped from memory disappears from the table.
	require.NoError(t, repo.Replace(ctx, []vocab.WordRecord{{Word: "only", Version: 1}}))
	all, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "only", all[0].Word)
}

func TestWordRepositoryUpsertDetectsStaleWrite(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewWordRepository(db)

	require.NoError(t, repo.Upsert(ctx, []vocab.WordRecord{{Word: "harbor", ExposureCount: 3, Version: 3}}))
	require.NoError(t, repo.Upsert(ctx, []vocab.WordRecord{{Word: "harbor", ExposureCount: 4, Version: 4}}))

	err := repo.Upsert(ctx, []vocab.WordRecord{
		{Word: "quay", ExposureCount: 1, Version: 1},
		{Word: "harbor", ExposureCount: 2, Version: 2},
	})
	var cerr *vocab.ConcurrencyError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, "harbor", cerr.Word)
	assert.Equal(t, int64(4), cerr.Stored)
	assert.Equal(t, int64(2), cerr.Attempted)

	got, ok, err := repo.Get(ctx, "harbor")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.ExposureCount)

	// The batch was rolled back as a unit.
	_, ok, err = repo.Get(ctx, "quay")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWordRepositoryStoreFlush(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewWordRepository(db)
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	store, err := vocab.NewStore(repo, vocab.DefaultPolicy())
	require.NoError(t, err)
	store.Now = func() time.Time { return now }

	for range 3 {
		_, err := store.RecordExposure("lantern", now)
		require.NoError(t, err)
	}
	require.NoError(t, store.Flush(ctx))
	_, err = store.RecordExposure("lantern", now)
	require.NoError(t, err)
	require.NoError(t, store.Flush(ctx))

	got, ok, err := repo.Get(ctx, "lantern")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.ExposureCount)
	mem, _ := store.Lookup("lantern")
	assert.Equal(t, mem, got)
}

func TestWordRepositorySharedByTwoStores(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewWordRepository(db)
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	open := func() *vocab.Store {
		s, err := vocab.NewStore(repo, vocab.DefaultPolicy())
		require.NoError(t, err)
		s.Now = func() time.Time { return now }
		require.NoError(t, s.Restore(ctx))
		return s
	}
	a, b := open(), open()
	for _, w := range []string{"alpha", "harbor"} {
		_, err := a.RecordExposure(w, now)
		require.NoError(t, err)
	}
	for _, w := range []string{"beta", "harbor"} {
		_, err := b.RecordExposure(w, now.Add(time.Second))
		require.NoError(t, err)
	}
	require.NoError(t, a.Flush(ctx))
	require.NoError(t, b.Flush(ctx))

	all, err := repo.Load(ctx)
	require.NoError(t, err)
	counts := make(map[string]int, len(all))
	for _, r := range all {
		counts[r.Word] = r.ExposureCount
	}
	assert.Equal(t, map[string]int{"alpha": 1, "beta": 1, "harbor": 2}, counts)
}
