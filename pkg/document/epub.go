package document

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// EPUBFormat implements Format for EPUB files.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Extract concatenates the spine documents in reading order.
func (f *EPUBFormat) Extract(ctx context.Context, path string) (string, string, error) {
	rc, err := epub.OpenReader(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return "", "", fmt.Errorf("no rootfiles found in epub")
	}

	book := rc.Rootfiles[0]
	var out strings.Builder

	for _, ref := range book.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}
		text, err := Decode(data)
		if err != nil {
			return "", "", err
		}
		chapter, err := htmlToText(text)
		if err != nil {
			continue
		}
		out.WriteString(chapter)
		out.WriteString("\n\n")
	}

	return strings.TrimSpace(book.Title), out.String(), nil
}
