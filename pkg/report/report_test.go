package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
	"github.com/japaniel/novelreader/pkg/session"
	"github.com/japaniel/novelreader/pkg/vocab"
)

func sampleReport() Report {
	return Report{
		Title: "Moby Dick: Ch. 1",
		Stats: session.Stats{
			ID: "s1", Document: "Moby Dick", SegmentsRead: 2,
			WordsEncountered: 14, NewWordsLearned: 9, Elapsed: 90 * time.Second,
			Explanations: 1, ExplanationFailures: 1,
		},
		Vocabulary: vocab.Stats{TotalWords: 9, MasteredCount: 0, MeanProficiency: 0.1},
		Segments: []session.AnnotatedSegment{
			{
				Segment: document.Segment{Index: 0, RawText: "Call me Ishmael."},
				Score:   difficulty.Score{Raw: 0.1, Label: difficulty.Easy, TotalWords: 3, Coverage: 1, ReadingTime: time.Minute},
			},
			{
				Segment:     document.Segment{Index: 1, RawText: "Quixotic perspicacious\nlugubrious."},
				Score:       difficulty.Score{Raw: 0.8, Label: difficulty.Hard, TotalWords: 3, DifficultWords: []string{"lugubrious", "quixotic"}, ReadingTime: time.Minute},
				Explanation: "Three rare adjectives.",
			},
		},
		GeneratedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func TestMarkdownExport(t *testing.T) {
	dir := t.TempDir()
	exp, err := New(FormatMarkdown, dir)
	require.NoError(t, err)

	path, err := exp.Export(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "moby-dick-ch-1-20240506-070809.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)
	assert.Contains(t, md, "# Moby Dick: Ch. 1")
	assert.Contains(t, md, "| New words learned | 9 |")
	assert.Contains(t, md, "| Time spent | 1.5 min |")
	assert.Contains(t, md, "Mean difficulty: 0.45 (moderate)")
	assert.Contains(t, md, "## Segment 2")
	assert.Contains(t, md, "> Quixotic perspicacious\n> lugubrious.")
	assert.Contains(t, md, "**Difficult words:** lugubrious, quixotic")
	assert.Contains(t, md, "### Explanation\n\nThree rare adjectives.")
	assert.Contains(t, md, "- Consider reading a simplified version first.")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestJSONExport(t *testing.T) {
	exp, err := New(FormatJSON, t.TempDir())
	require.NoError(t, err)
	path, err := exp.Export(context.Background(), sampleReport())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got document
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Moby Dick: Ch. 1", got.Title)
	assert.Equal(t, 9, got.Session.NewWordsLearned)
	assert.Equal(t, 6, got.Overview.TotalWords)
	assert.Equal(t, 2*time.Minute, got.Overview.ReadingTime)
	assert.Equal(t, map[difficulty.Label]int{difficulty.Easy: 1, difficulty.Hard: 1}, got.Overview.Labels)
	require.Len(t, got.Segments, 2)
	assert.Equal(t, Recommendations(difficulty.Hard), got.Segments[1].Recommendations)
}

func TestYAMLExport(t *testing.T) {
	exp, err := New(FormatYAML, t.TempDir())
	require.NoError(t, err)
	path, err := exp.Export(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, ".yaml", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "Moby Dick: Ch. 1", got["title"])
	segs, ok := got["segments"].([]any)
	require.True(t, ok)
	assert.Len(t, segs, 2)
}

func TestExportErrors(t *testing.T) {
	_, err := New("docx", t.TempDir())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&JSONExporter{Dir: t.TempDir()}).Export(ctx, sampleReport())
	assert.ErrorIs(t, err, ErrExport)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = (&MarkdownExporter{Dir: file}).Export(context.Background(), sampleReport())
	assert.ErrorIs(t, err, ErrExport)
}

func TestEmptyReport(t *testing.T) {
	d := build(Report{})
	assert.Equal(t, difficulty.Easy, d.Overview.OverallLabel)
	assert.Zero(t, d.Overview.MeanDifficulty)
	assert.Equal(t, "report-00010101-000000.json", filename(Report{}, ".json"))
}
