package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// MarkdownExporter writes a human-readable report.
type MarkdownExporter struct{ Dir string }

// JSONExporter writes the report as indented JSON.
type JSONExporter struct{ Dir string }

// YAMLExporter writes the report as YAML.
type YAMLExporter struct{ Dir string }

func (e *MarkdownExporter) Export(ctx context.Context, r Report) (string, error) {
	d := build(r)
	return write(ctx, e.Dir, filename(r, ".md"), func(w io.Writer) error {
		return markdownTemplate.Execute(w, d)
	})
}

func (e *JSONExporter) Export(ctx context.Context, r Report) (string, error) {
	d := build(r)
	return write(ctx, e.Dir, filename(r, ".json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	})
}

func (e *YAMLExporter) Export(ctx context.Context, r Report) (string, error) {
	d := build(r)
	return write(ctx, e.Dir, filename(r, ".yaml"), func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	})
}

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"mins":  func(d time.Duration) string { return fmt.Sprintf("%.1f min", d.Minutes()) },
	"join":  strings.Join,
	"quote": func(s string) string { return "> " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n> ") },
	"when":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05 MST") },
	"inc":   func(i int) int { return i + 1 },
}).Parse(`# {{.Title}}

Generated {{when .GeneratedAt}}

## Session

| | |
|---|---|
| Segments read | {{.Session.SegmentsRead}} |
| Words encountered | {{.Session.WordsEncountered}} |
| New words learned | {{.Session.NewWordsLearned}} |
| Time spent | {{mins .Session.Elapsed}} |
| Explanations | {{.Session.Explanations}} ({{.Session.ExplanationFailures}} failed) |

## Vocabulary

- Words tracked: {{.Vocabulary.TotalWords}}
- Mastered: {{.Vocabulary.MasteredCount}}
- Mean proficiency: {{score .Vocabulary.MeanProficiency}}

## Overview

- Segments: {{.Overview.Segments}}
- Total words: {{.Overview.TotalWords}}
- Mean difficulty: {{score .Overview.MeanDifficulty}} ({{.Overview.OverallLabel}})
- Estimated reading time: {{mins .Overview.ReadingTime}}
{{range .Overview.Recommendations}}
- {{.}}{{end}}
{{range .Segments}}
## Segment {{inc .Index}}

**Difficulty:** {{.Score.Label}} ({{score .Score.Raw}}), coverage {{pct .Score.Coverage}}, {{.Score.TotalWords}} words
{{- if .Score.DifficultWords}}

**Difficult words:** {{join .Score.DifficultWords ", "}}
{{- end}}

{{quote .Text}}
{{- if .Explanation}}

### Explanation

{{.Explanation}}
{{- end}}

### Reading advice
{{range .Recommendations}}
- {{.}}{{end}}
{{end}}`))
