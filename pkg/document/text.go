package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// TextFormat implements Format for plain text files in any encoding chardet
// can identify.
type TextFormat struct{}

// MarkdownFormat implements Format for Markdown files. Markup characters are
// stripped so they do not reach the tokenizer.
type MarkdownFormat struct{}

func init() {
	Register(&TextFormat{})
	Register(&MarkdownFormat{})
}

func (f *TextFormat) Name() string         { return "Text" }
func (f *TextFormat) Extensions() []string { return []string{".txt", ".text"} }

func (f *TextFormat) Extract(_ context.Context, path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, err := Decode(data)
	return "", text, err
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

var (
	linkRegex     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	emphasisRegex = regexp.MustCompile(`[*_` + "`" + `]{1,3}`)
)

func (f *MarkdownFormat) Extract(_ context.Context, path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, err := Decode(data)
	if err != nil {
		return "", "", err
	}

	var title string
	lines := strings.Split(normalizeNewlines(text), "\n")
	for i, line := range lines {
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			line = m[2]
			if title == "" && len(m[1]) == 1 {
				title = strings.TrimSpace(m[2])
			}
		}
		line = strings.TrimLeft(line, "> ")
		line = linkRegex.ReplaceAllString(line, "$1")
		lines[i] = emphasisRegex.ReplaceAllString(line, "")
	}
	return title, strings.Join(lines, "\n"), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw file bytes to UTF-8. Valid UTF-8 passes through; other
// encodings are detected with chardet and decoded. Bytes that cannot be
// decoded yield ErrEncoding.
func Decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return "", fmt.Errorf("%w: unknown charset %q", ErrEncoding, result.Charset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrEncoding, result.Charset, err)
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("%w: decode %s produced invalid text", ErrEncoding, result.Charset)
	}
	return string(out), nil
}
