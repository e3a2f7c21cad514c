// Package document loads novels from disk and splits them into segments.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("document: unsupported format")
	ErrEncoding          = errors.New("document: undecodable text")
	ErrEmpty             = errors.New("document: no readable text")
)

// Document is a loaded novel and its fixed segment sequence.
type Document struct {
	Title       string
	Path        string
	Format      string
	Fingerprint string
	Text        string
	Segments    []Segment
}

// Loader produces documents from paths.
type Loader interface {
	Load(ctx context.Context, path string) (*Document, error)
}

// Format extracts plain text, with paragraphs separated by blank lines,
// from one kind of file.
type Format interface {
	Name() string
	Extensions() []string
	Extract(ctx context.Context, path string) (title, text string, err error)
}

var registry = map[string]Format{}

// Register adds a format reader to the registry. Later registrations win
// for a shared extension.
func Register(f Format) {
	for _, ext := range f.Extensions() {
		registry[strings.ToLower(ext)] = f
	}
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	byName := map[string][]string{}
	for ext, f := range registry {
		byName[f.Name()] = append(byName[f.Name()], ext)
	}
	var out []string
	for name, exts := range byName {
		sort.Strings(exts)
		out = append(out, name+" ("+strings.Join(exts, ", ")+")")
	}
	sort.Strings(out)
	return out
}

// FileLoader loads documents through the format registry.
type FileLoader struct {
	Segmenter Segmenter
	// MaxBytes rejects larger files; zero means no limit.
	MaxBytes int64
}

// Load reads, decodes and segments the file at path. Files without an
// extension are read as plain text.
func (l FileLoader) Load(ctx context.Context, path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		ext = ".txt"
	}
	f, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if l.MaxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > l.MaxBytes {
			return nil, fmt.Errorf("document: %s is %d bytes, limit %d", path, info.Size(), l.MaxBytes)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title, text, err := f.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	doc := l.FromText(title, text)
	doc.Path = path
	doc.Format = f.Name()
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return doc, nil
}

// FromText segments text that is already in memory.
func (l FileLoader) FromText(title, text string) *Document {
	text = normalizeNewlines(text)
	return &Document{
		Title:       title,
		Fingerprint: Fingerprint(text),
		Text:        text,
		Segments:    l.Segmenter.Split(text),
	}
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
