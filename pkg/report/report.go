// Package report exports reading sessions to files.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/session"
	"github.com/japaniel/novelreader/pkg/vocab"
)

// ErrExport wraps every export failure.
var ErrExport = errors.New("report: export failed")

// Report is everything known about a reading session at export time.
type Report struct {
	Title       string
	Stats       session.Stats
	Vocabulary  vocab.Stats
	Segments    []session.AnnotatedSegment
	GeneratedAt time.Time
}

// Exporter writes a report and returns the path of the file it created.
type Exporter interface {
	Export(ctx context.Context, r Report) (string, error)
}

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// New returns the exporter for format writing into dir.
func New(format Format, dir string) (Exporter, error) {
	switch format {
	case FormatMarkdown, "md", "":
		return &MarkdownExporter{Dir: dir}, nil
	case FormatJSON:
		return &JSONExporter{Dir: dir}, nil
	case FormatYAML, "yml":
		return &YAMLExporter{Dir: dir}, nil
	default:
		return nil, fmt.Errorf("report: unknown format %q", format)
	}
}

// Recommendations returns reading advice for a segment of the given
// difficulty.
func Recommendations(label difficulty.Label) []string {
	switch label {
	case difficulty.Hard:
		return []string{
			"Preview the key vocabulary and background before reading.",
			"Read in short sections and do not rush.",
			"Use a dictionary or other references as you go.",
			"Consider reading a simplified version first.",
		}
	case difficulty.Moderate:
		return []string{
			"Skim the passage once to get the gist.",
			"Focus on the topic sentence of each paragraph.",
			"Guess unknown words from context before looking them up.",
			"Use a dictionary sparingly.",
		}
	default:
		return []string{
			"Read fluently without stopping at every new word.",
			"Notice how the passage is structured.",
			"Try to predict what happens next.",
			"Enjoy the story.",
		}
	}
}

// document is the serialized form shared by all exporters.
type document struct {
	Title       string        `json:"title" yaml:"title"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Session     session.Stats `json:"session" yaml:"session"`
	Vocabulary  vocab.Stats   `json:"vocabulary" yaml:"vocabulary"`
	Overview    overview      `json:"overview" yaml:"overview"`
	Segments    []segment     `json:"segments" yaml:"segments"`
}

type overview struct {
	Segments        int                      `json:"segments" yaml:"segments"`
	TotalWords      int                      `json:"total_words" yaml:"total_words"`
	MeanDifficulty  float64                  `json:"mean_difficulty" yaml:"mean_difficulty"`
	OverallLabel    difficulty.Label         `json:"overall_label" yaml:"overall_label"`
	ReadingTime     time.Duration            `json:"reading_time" yaml:"reading_time"`
	Labels          map[difficulty.Label]int `json:"labels" yaml:"labels"`
	Recommendations []string                 `json:"recommendations" yaml:"recommendations"`
}

type segment struct {
	Index           int              `json:"index" yaml:"index"`
	Text            string           `json:"text" yaml:"text"`
	Score           difficulty.Score `json:"score" yaml:"score"`
	Explanation     string           `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Recommendations []string         `json:"recommendations" yaml:"recommendations"`
}

// Overview thresholds follow the default label configuration.
var overallLabels = difficulty.DefaultConfig()

func build(r Report) document {
	d := document{
		Title:       r.Title,
		GeneratedAt: r.GeneratedAt.UTC(),
		Session:     r.Stats,
		Vocabulary:  r.Vocabulary,
		Overview:    overview{Segments: len(r.Segments), Labels: map[difficulty.Label]int{}},
		Segments:    make([]segment, 0, len(r.Segments)),
	}
	var sum float64
	for _, a := range r.Segments {
		d.Overview.TotalWords += a.Score.TotalWords
		d.Overview.ReadingTime += a.Score.ReadingTime
		d.Overview.Labels[a.Score.Label]++
		sum += a.Score.Raw
		d.Segments = append(d.Segments, segment{
			Index:           a.Segment.Index,
			Text:            a.Segment.RawText,
			Score:           a.Score,
			Explanation:     a.Explanation,
			Recommendations: Recommendations(a.Score.Label),
		})
	}
	if len(r.Segments) > 0 {
		d.Overview.MeanDifficulty = sum / float64(len(r.Segments))
	}
	d.Overview.OverallLabel = overallLabels.LabelFor(d.Overview.MeanDifficulty)
	d.Overview.Recommendations = Recommendations(d.Overview.OverallLabel)
	return d
}

// filename derives a stable file name from the title and generation time.
func filename(r Report, ext string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '-' || r == '_':
			return r
		case unicode.IsSpace(r):
			return '-'
		default:
			return -1
		}
	}, r.Title)
	if slug == "" {
		slug = "report"
	}
	return slug + "-" + r.GeneratedAt.UTC().Format("20060102-150405") + ext
}

// write renders into a temp file beside the target and renames it into
// place, so the report either appears complete or not at all.
func write(ctx context.Context, dir, name string, render func(io.Writer) error) (path string, err error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create dir: %v", ErrExport, err)
	}
	path = filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = render(tmp); err != nil {
		return "", fmt.Errorf("%w: render %s: %v", ErrExport, name, err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	return path, nil
}
