package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/novelreader/internal/config"
	"github.com/japaniel/novelreader/pkg/db"
	"github.com/japaniel/novelreader/pkg/document"
)

const novelText = `The dog sat by the door and looked at the rain.

Quixotic perspicacious lugubrious obstreperous.

The cat came home at night and went to sleep.`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Backend = backend
	cfg.Storage.Path = filepath.Join(t.TempDir(), "reader.db")
	cfg.Storage.FilePath = filepath.Join(t.TempDir(), "words.json")
	cfg.Report.Dir = filepath.Join(t.TempDir(), "reports")
	cfg.Ingest.Workers = 2
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	return a
}

func TestParseFeedback(t *testing.T) {
	known, unknown, quit := parseFeedback("+dog -lugubrious quixotic +")
	assert.Equal(t, []string{"dog"}, known)
	assert.Equal(t, []string{"lugubrious", "quixotic"}, unknown)
	assert.False(t, quit)

	_, _, quit = parseFeedback("  Q ")
	assert.True(t, quit)

	known, unknown, quit = parseFeedback("")
	assert.Empty(t, known)
	assert.Empty(t, unknown)
	assert.False(t, quit)
}

func TestReadInteractive(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	a := newApp(t, cfg)
	doc := document.FileLoader{}.FromText("Short Novel", novelText)

	var out strings.Builder
	in := strings.NewReader("+dog\n-lugubrious\nq\n")
	res, err := a.Read(context.Background(), doc, ReadOptions{In: in, Out: &out})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.SegmentsRead)
	assert.Contains(t, out.String(), "Short Novel: 3 segments")
	assert.Contains(t, out.String(), "[2/3] hard")
	assert.Contains(t, out.String(), "Segments read:     2")
	require.NotEmpty(t, res.ReportPath)
	body, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Short Novel")

	rec, ok := a.Store.Lookup("dog")
	require.True(t, ok)
	assert.GreaterOrEqual(t, rec.Proficiency, 0.5)
	rec, ok = a.Store.Lookup("lugubrious")
	require.True(t, ok)
	assert.Less(t, rec.Proficiency, 0.5)
	require.NoError(t, a.Close())

	// A second process resumes at the third segment with the saved vocabulary.
	b := newApp(t, cfg)
	defer b.Close()
	_, ok = b.Store.Lookup("lugubrious")
	assert.True(t, ok)

	out.Reset()
	res, err = b.Read(context.Background(), doc, ReadOptions{Auto: true, Resume: true, Out: &out})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.SegmentsRead)
	assert.Contains(t, out.String(), "[3/3]")
	assert.NotContains(t, out.String(), "[1/3]")

	sessions, err := db.ListSessions(context.Background(), b.DB, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestTwoReadersShareDatabase(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	a := newApp(t, cfg)
	b := newApp(t, cfg)
	ctx := context.Background()

	_, err := a.Read(ctx, document.FileLoader{}.FromText("First", "The dog found a lantern."), ReadOptions{Auto: true})
	require.NoError(t, err)
	_, err = b.Read(ctx, document.FileLoader{}.FromText("Second", "The cat found a quay."), ReadOptions{Auto: true})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	c := newApp(t, cfg)
	defer c.Close()
	for word, want := range map[string]int{"dog": 1, "lantern": 1, "cat": 1, "quay": 1, "find": 2, "the": 2} {
		rec, ok := c.Store.Lookup(word)
		require.True(t, ok, word)
		assert.Equal(t, want, rec.ExposureCount, word)
	}
}

func TestReadNothingRead(t *testing.T) {
	a := newApp(t, testConfig(t, config.BackendMemory))
	defer a.Close()
	doc := document.FileLoader{}.FromText("Novel", novelText)

	res, err := a.Read(context.Background(), doc, ReadOptions{In: strings.NewReader("q\n")})
	require.NoError(t, err)
	assert.Zero(t, res.Stats.SegmentsRead)
	assert.Empty(t, res.ReportPath)
}

func TestFileBackend(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	a := newApp(t, cfg)
	doc := document.FileLoader{}.FromText("Novel", novelText)
	_, err := a.Read(context.Background(), doc, ReadOptions{Auto: true})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(cfg.Storage.FilePath)
	require.NoError(t, err)

	b := newApp(t, cfg)
	defer b.Close()
	rec, ok := b.Store.Lookup("cat")
	require.True(t, ok)
	assert.Equal(t, 1, rec.ExposureCount)
}

func TestRunDigest(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Report.Format = "json"
	a := newApp(t, cfg)
	defer a.Close()
	doc := document.FileLoader{}.FromText("Novel", novelText)

	var out strings.Builder
	path, err := a.RunDigest(context.Background(), doc, &out)
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(path))
	assert.Contains(t, out.String(), "3 segments, 0 explained")
	assert.Empty(t, a.Store.Records())
}

func TestImportFrequencies(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	a := newApp(t, cfg)
	list := filepath.Join(t.TempDir(), "freq.txt")
	require.NoError(t, os.WriteFile(list, []byte("the\nlugubrious\nquixotic\n"), 0o644))

	n, err := a.ImportFrequencies(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	table, err := a.Frequencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	rank, ok := table.Rank("lugubrious")
	assert.True(t, ok)
	assert.Equal(t, 2, rank)
	require.NoError(t, a.Close())
}

func TestImportFrequenciesFromURL(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("Lemma\nthe\nof\nreverie\n"))
	}))
	defer srv.Close()

	cfg := testConfig(t, config.BackendMemory)
	a := newApp(t, cfg)
	defer a.Close()

	for i := 0; i < 2; i++ {
		n, err := a.ImportFrequencies(context.Background(), srv.URL+"/ngsl.csv")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 1, hits, "cached list should be reused")
	_, err := os.Stat(filepath.Join(filepath.Dir(cfg.Storage.Path), "frequency.csv"))
	require.NoError(t, err)
}

func TestProviderSelection(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	a := newApp(t, cfg)
	defer a.Close()
	assert.Nil(t, a.Explainer)

	cfg.Explain.Provider = config.ProviderOllama
	assert.NotNil(t, a.provider())

	cfg.Explain.Provider = config.ProviderAnthropic
	cfg.Explain.APIKey = "sk-test"
	assert.NotNil(t, a.provider())
}
