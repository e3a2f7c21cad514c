// Package lexical turns raw novel text into normalized, lemmatized word tokens.
package lexical

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Token represents a single normalized word occurrence.
type Token struct {
	Surface  string // The text as it appears, lowercased (e.g. "running")
	Lemma    string // The canonical dictionary form (e.g. "run")
	Position int    // Ordinal position of the token within the normalized input
}

// Sentence represents a sentence containing tokens.
type Sentence struct {
	Text   string
	Tokens []Token
}

// EncodingError reports input that is not valid UTF-8.
type EncodingError struct {
	Offset int // byte offset of the first invalid sequence
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("lexical: invalid utf-8 at byte %d", e.Offset)
}

// Normalizer tokenizes and lemmatizes English text. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	lemmas *Lemmatizer
}

// NewNormalizer creates a normalizer using the built-in English reduction rules.
func NewNormalizer() *Normalizer {
	return &Normalizer{lemmas: NewLemmatizer()}
}

// Normalize breaks text into lowercase, punctuation-free tokens with lemmas.
// The same input always yields the same sequence.
func (n *Normalizer) Normalize(text string) ([]Token, error) {
	if err := validate(text); err != nil {
		return nil, err
	}
	var out []Token
	n.appendTokens(&out, canonical(text))
	return out, nil
}

// Sentences splits the text into sentences and tokenizes each one. Token
// positions run across the whole text, not per sentence.
func (n *Normalizer) Sentences(text string) ([]Sentence, error) {
	if err := validate(text); err != nil {
		return nil, err
	}
	var result []Sentence
	var pos []Token
	for _, s := range splitSentences(canonical(text)) {
		if strings.TrimSpace(s) == "" {
			continue
		}
		start := len(pos)
		n.appendTokens(&pos, s)
		result = append(result, Sentence{
			Text:   strings.TrimSpace(s),
			Tokens: pos[start:len(pos):len(pos)],
		})
	}
	return result, nil
}

// Lemma returns the canonical form of a single word.
func (n *Normalizer) Lemma(word string) string {
	return n.lemmas.Lemma(strings.ToLower(word))
}

func (n *Normalizer) appendTokens(out *[]Token, text string) {
	for _, w := range words(text) {
		for _, part := range expandClitics(w) {
			*out = append(*out, Token{
				Surface:  part,
				Lemma:    n.lemmas.Lemma(part),
				Position: len(*out),
			})
		}
	}
}

func validate(text string) error {
	if utf8.ValidString(text) {
		return nil
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			return &EncodingError{Offset: i}
		}
		i += size
	}
	return &EncodingError{Offset: len(text)}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// canonical applies NFKC (ligatures, full-width forms) and folds typographic
// apostrophes to ASCII so contractions tokenize consistently.
func canonical(text string) string {
	return apostrophes.Replace(norm.NFKC.String(text))
}

// words returns lowercase runs of letters. Apostrophes are kept only between
// letters; everything else, including digits and hyphens, separates words.
func words(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			cur.WriteRune(unicode.ToLower(r))
		case unicode.Is(unicode.Mn, r) && cur.Len() > 0:
			cur.WriteRune(r)
		case r == '\'' && cur.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// expandClitics splits English contractions into their word forms. The
// possessive/"is" clitic 's is dropped since it is ambiguous.
func expandClitics(w string) []string {
	i := strings.LastIndexByte(w, '\'')
	if i < 0 {
		return []string{w}
	}
	base, suffix := w[:i], w[i+1:]
	if suffix == "t" && strings.HasSuffix(base, "n") {
		stem := base[:len(base)-1]
		switch stem {
		case "ca":
			stem = "can"
		case "wo":
			stem = "will"
		case "sha":
			stem = "shall"
		case "ai":
			stem = "be"
		}
		return nonEmpty(stem, "not")
	}
	switch suffix {
	case "s":
		return nonEmpty(base)
	case "re", "m":
		return nonEmpty(base, "be")
	case "ll":
		return nonEmpty(base, "will")
	case "ve":
		return nonEmpty(base, "have")
	case "d":
		return nonEmpty(base, "would")
	}
	return []string{strings.ReplaceAll(w, "'", "")}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true,
	"prof": true, "sr": true, "jr": true, "vs": true, "etc": true,
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			sentences = append(sentences, current.String())
			current.Reset()
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Keep runs like "?!" or "..." and closing quotes with the sentence.
		for i+1 < len(runes) && strings.ContainsRune(".!?\"')”", runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && abbreviations[lastWord(current.String())] {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func lastWord(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}
