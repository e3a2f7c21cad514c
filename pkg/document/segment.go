package document

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Segment is a contiguous paragraph-sized unit of a document. Offsets are
// byte offsets into the document text; RawText is text[StartOffset:EndOffset].
// Segments are never modified after segmentation.
type Segment struct {
	Index       int    `json:"index" yaml:"index"`
	StartOffset int    `json:"start_offset" yaml:"start_offset"`
	EndOffset   int    `json:"end_offset" yaml:"end_offset"`
	RawText     string `json:"raw_text" yaml:"raw_text"`
}

// Segmenter splits text into paragraph segments on blank lines.
type Segmenter struct {
	// MinWords merges paragraphs shorter than this into the following one.
	// Zero keeps every paragraph as its own segment.
	MinWords int
}

type span struct{ start, end int }

// Split returns the segments of text in document order.
func (s Segmenter) Split(text string) []Segment {
	paras := paragraphs(text)
	if s.MinWords > 0 {
		paras = mergeShort(text, paras, s.MinWords)
	}
	out := make([]Segment, len(paras))
	for i, p := range paras {
		out[i] = Segment{Index: i, StartOffset: p.start, EndOffset: p.end, RawText: text[p.start:p.end]}
	}
	return out
}

// paragraphs finds runs of lines separated by one or more blank lines, with
// surrounding whitespace trimmed from each run.
func paragraphs(text string) []span {
	var out []span
	start, end := -1, -1
	for pos := 0; ; {
		nl := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if nl >= 0 {
			lineEnd = pos + nl
		}
		line := text[pos:lineEnd]
		if strings.TrimSpace(line) == "" {
			if start >= 0 {
				out = append(out, span{start, end})
				start = -1
			}
		} else {
			if start < 0 {
				start = pos + len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
			}
			end = pos + len(strings.TrimRightFunc(line, unicode.IsSpace))
		}
		if nl < 0 {
			break
		}
		pos = lineEnd + 1
	}
	if start >= 0 {
		out = append(out, span{start, end})
	}
	return out
}

func mergeShort(text string, paras []span, minWords int) []span {
	var out []span
	cur := span{start: -1}
	for _, p := range paras {
		if cur.start < 0 {
			cur = p
		} else {
			cur.end = p.end
		}
		if len(strings.Fields(text[cur.start:cur.end])) >= minWords {
			out = append(out, cur)
			cur = span{start: -1}
		}
	}
	if cur.start >= 0 {
		if len(out) > 0 {
			out[len(out)-1].end = cur.end
		} else {
			out = append(out, cur)
		}
	}
	return out
}

// Fingerprint identifies a document by its content so progress survives
// renames.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
