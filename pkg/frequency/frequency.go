// Package frequency holds the general-English word frequency table used as a
// rarity fallback for words the reader has never encountered.
package frequency

import (
	"bufio"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

//go:embed data/common_en.txt
var dataFS embed.FS

// DefaultCoreSize is the number of top-ranked words treated as core
// vocabulary with zero rarity.
const DefaultCoreSize = 500

// ErrEmptyTable is returned when a source yields no words.
var ErrEmptyTable = errors.New("frequency: table has no words")

// Table maps lemmas to their 1-based frequency rank. A Table is immutable
// after construction and safe for concurrent use.
type Table struct {
	words []string
	ranks map[string]int
	core  int
}

// New builds a table from words ordered most frequent first. Duplicates keep
// their first rank. core is clamped to the table length.
func New(words []string, core int) *Table {
	t := &Table{ranks: make(map[string]int, len(words))}
	for _, w := range words {
		w = normalize(w)
		if w == "" {
			continue
		}
		if _, ok := t.ranks[w]; ok {
			continue
		}
		t.words = append(t.words, w)
		t.ranks[w] = len(t.words)
	}
	t.core = min(max(core, 0), len(t.words))
	return t
}

// Default returns the built-in table of common English lemmas.
func Default() *Table {
	f, err := dataFS.Open("data/common_en.txt")
	if err != nil {
		panic(fmt.Sprintf("frequency: embedded list missing: %v", err))
	}
	defer f.Close()

	words, err := ParseList(f)
	if err != nil {
		panic(fmt.Sprintf("frequency: embedded list unreadable: %v", err))
	}
	return New(words, DefaultCoreSize)
}

// ParseList reads one word per line. Blank lines and lines starting with '#'
// are skipped.
func ParseList(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyTable
	}
	return words, nil
}

// ParseNGSL reads an NGSL-style CSV: a header row, then one word per row in
// the first column, ordered by frequency.
func ParseNGSL(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable column count

	// Skip header row.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var words []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		if w := normalize(record[0]); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil, ErrEmptyTable
	}
	return words, nil
}

// Rank returns the 1-based rank of lemma.
func (t *Table) Rank(lemma string) (int, bool) {
	r, ok := t.ranks[lemma]
	return r, ok
}

// IsCommon reports whether lemma falls within the core vocabulary.
func (t *Table) IsCommon(lemma string) bool {
	r, ok := t.ranks[lemma]
	return ok && r <= t.core
}

// Rarity scores lemma in [0, 1]. Core words score 0, listed words beyond the
// core rise linearly from 0.25 to 0.75 with rank, and unlisted words score 1.
func (t *Table) Rarity(lemma string) float64 {
	r, ok := t.ranks[lemma]
	switch {
	case !ok:
		return 1
	case r <= t.core:
		return 0
	}
	tail := len(t.words) - t.core
	return 0.25 + 0.5*float64(r-t.core)/float64(tail)
}

// Words returns the ranked word list.
func (t *Table) Words() []string {
	return append([]string(nil), t.words...)
}

// Len returns the number of distinct words.
func (t *Table) Len() int { return len(t.words) }

// Core returns the core vocabulary size.
func (t *Table) Core() int { return t.core }

func normalize(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
