// Package difficulty scores text segments relative to a reader's vocabulary.
package difficulty

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/japaniel/novelreader/pkg/lexical"
)

// Label classifies a raw score.
type Label string

const (
	Easy     Label = "easy"
	Moderate Label = "moderate"
	Hard     Label = "hard"
)

// ErrInvalidConfig is returned for inconsistent weights or thresholds.
var ErrInvalidConfig = errors.New("difficulty: invalid config")

// Config holds the scoring weights and thresholds.
type Config struct {
	RarityWeight    float64
	StructureWeight float64

	// EasyBelow and ModerateBelow are the label thresholds on the raw score.
	EasyBelow     float64
	ModerateBelow float64

	// KnownProficiency is the proficiency at which a seen word stops
	// contributing rarity.
	KnownProficiency float64

	// LongSentence is the average sentence length, in tokens, that counts as
	// fully complex.
	LongSentence float64
	// ClauseMarkersPerSentence is the clause-marker density that counts as
	// fully complex.
	ClauseMarkersPerSentence float64

	// ReaderLevelInfluence scales how far the reader's mean proficiency
	// discounts the rarity of listed words they have not met yet.
	ReaderLevelInfluence float64

	// WordsPerMinute drives the reading time estimate.
	WordsPerMinute float64
	// MaxDifficultWords caps Score.DifficultWords.
	MaxDifficultWords int
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		RarityWeight:             0.75,
		StructureWeight:          0.25,
		EasyBelow:                0.33,
		ModerateBelow:            0.66,
		KnownProficiency:         0.50,
		LongSentence:             35,
		ClauseMarkersPerSentence: 3,
		ReaderLevelInfluence:     0.5,
		WordsPerMinute:           130,
		MaxDifficultWords:        15,
	}
}

// Validate reports an inconsistent configuration.
func (c Config) Validate() error {
	switch {
	case c.RarityWeight < 0 || c.StructureWeight < 0:
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	case math.Abs(c.RarityWeight+c.StructureWeight-1) > 1e-9:
		return fmt.Errorf("%w: weights must sum to 1, got %.3f", ErrInvalidConfig, c.RarityWeight+c.StructureWeight)
	case !(0 < c.EasyBelow && c.EasyBelow < c.ModerateBelow && c.ModerateBelow <= 1):
		return fmt.Errorf("%w: thresholds must satisfy 0 < easy < moderate <= 1", ErrInvalidConfig)
	case c.KnownProficiency <= 0 || c.KnownProficiency > 1:
		return fmt.Errorf("%w: known proficiency must be in (0, 1]", ErrInvalidConfig)
	case c.LongSentence <= 0 || c.ClauseMarkersPerSentence <= 0:
		return fmt.Errorf("%w: structure normalizers must be positive", ErrInvalidConfig)
	case c.ReaderLevelInfluence < 0 || c.ReaderLevelInfluence > 1:
		return fmt.Errorf("%w: reader level influence must be in [0, 1]", ErrInvalidConfig)
	case c.WordsPerMinute <= 0:
		return fmt.Errorf("%w: words per minute must be positive", ErrInvalidConfig)
	case c.MaxDifficultWords < 0:
		return fmt.Errorf("%w: max difficult words must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LabelFor maps a raw score to its label.
func (c Config) LabelFor(raw float64) Label {
	switch {
	case raw < c.EasyBelow:
		return Easy
	case raw < c.ModerateBelow:
		return Moderate
	default:
		return Hard
	}
}

// Snapshot is the reader's vocabulary as seen by the analyzer.
type Snapshot interface {
	// Proficiency returns the reader's proficiency for lemma and whether the
	// reader has seen it.
	Proficiency(lemma string) (float64, bool)
	// MeanProficiency is the average proficiency over the reader's records.
	MeanProficiency() float64
}

// Frequencies is a general-English frequency fallback.
type Frequencies interface {
	Rarity(lemma string) float64
	IsCommon(lemma string) bool
}

// Score is the difficulty of one segment for one reader. It is derived and
// never stored.
type Score struct {
	Raw       float64 `json:"raw" yaml:"raw"`
	Label     Label   `json:"label" yaml:"label"`
	Rarity    float64 `json:"rarity" yaml:"rarity"`
	Structure float64 `json:"structure" yaml:"structure"`
	// Degenerate marks a segment with no recognizable words; such segments
	// are labeled easy and need no explanation.
	Degenerate bool `json:"degenerate,omitempty" yaml:"degenerate,omitempty"`

	TotalWords        int     `json:"total_words" yaml:"total_words"`
	UniqueWords       int     `json:"unique_words" yaml:"unique_words"`
	Sentences         int     `json:"sentences" yaml:"sentences"`
	AvgSentenceLength float64 `json:"avg_sentence_length" yaml:"avg_sentence_length"`
	// Coverage is the fraction of tokens the reader knows or that are core
	// English vocabulary.
	Coverage       float64       `json:"coverage" yaml:"coverage"`
	DifficultWords []string      `json:"difficult_words,omitempty" yaml:"difficult_words,omitempty"`
	ReadingTime    time.Duration `json:"reading_time" yaml:"reading_time"`
}

// Analyzer computes reader-relative difficulty scores. It holds no mutable
// state and is safe for concurrent use.
type Analyzer struct {
	cfg        Config
	normalizer *lexical.Normalizer
	freq       Frequencies
}

// NewAnalyzer returns an analyzer using freq as the frequency fallback.
func NewAnalyzer(cfg Config, normalizer *lexical.Normalizer, freq Frequencies) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, normalizer: normalizer, freq: freq}, nil
}

// Config returns the configuration in effect.
func (a *Analyzer) Config() Config { return a.cfg }

// Score rates text for the reader described by snap. Empty or wordless text
// scores 0 and is labeled easy; wordless text is also marked degenerate.
// The only error is a lexical.EncodingError for malformed input.
func (a *Analyzer) Score(text string, snap Snapshot) (Score, error) {
	if strings.TrimSpace(text) == "" {
		return Score{Label: Easy}, nil
	}
	sentences, err := a.normalizer.Sentences(text)
	if err != nil {
		return Score{}, err
	}

	var tokens []lexical.Token
	clauses := 0
	counted := 0
	for _, s := range sentences {
		if len(s.Tokens) == 0 {
			continue
		}
		counted++
		tokens = append(tokens, s.Tokens...)
		clauses += clauseMarkers(s)
	}
	if len(tokens) == 0 {
		return Score{Label: Easy, Degenerate: true}, nil
	}

	sc := Score{
		TotalWords: len(tokens),
		Sentences:  counted,
	}

	mean := snap.MeanProficiency()
	rarities := make(map[string]float64)
	var sum float64 // accumulated in token order so the score is reproducible
	covered := 0
	for _, tok := range tokens {
		r, seen := a.rarity(tok.Lemma, snap, mean)
		if _, dup := rarities[tok.Lemma]; !dup {
			rarities[tok.Lemma] = r
			sum += r
		}
		if (seen && r == 0) || (!seen && a.freq.IsCommon(tok.Lemma)) {
			covered++
		}
	}
	sc.UniqueWords = len(rarities)
	sc.Coverage = float64(covered) / float64(len(tokens))
	sc.Rarity = sum / float64(len(rarities))

	sc.AvgSentenceLength = float64(len(tokens)) / float64(counted)
	sc.Structure = 0.6*math.Min(1, sc.AvgSentenceLength/a.cfg.LongSentence) +
		0.4*math.Min(1, float64(clauses)/float64(counted)/a.cfg.ClauseMarkersPerSentence)

	sc.Raw = clamp01(a.cfg.RarityWeight*sc.Rarity + a.cfg.StructureWeight*sc.Structure)
	sc.Label = a.cfg.LabelFor(sc.Raw)
	sc.DifficultWords = a.difficultWords(rarities)
	sc.ReadingTime = time.Duration(float64(len(tokens)) / a.cfg.WordsPerMinute * float64(time.Minute))
	return sc, nil
}

// rarity scores one lemma for the reader. Seen words are rare in proportion
// to how far they are from being known; unseen words fall back to the
// frequency table, softened by the reader's overall level unless the word
// is not listed at all.
func (a *Analyzer) rarity(lemma string, snap Snapshot, mean float64) (float64, bool) {
	if p, ok := snap.Proficiency(lemma); ok {
		return math.Max(0, 1-p/a.cfg.KnownProficiency), true
	}
	r := a.freq.Rarity(lemma)
	if r < 1 {
		r *= 1 - a.cfg.ReaderLevelInfluence*clamp01(mean)
	}
	return r, false
}

// difficultWords lists the rarest lemmas, hardest first.
func (a *Analyzer) difficultWords(rarities map[string]float64) []string {
	type scored struct {
		lemma  string
		rarity float64
	}
	var hard []scored
	for l, r := range rarities {
		if r >= 0.5 {
			hard = append(hard, scored{l, r})
		}
	}
	sort.Slice(hard, func(i, j int) bool {
		if hard[i].rarity != hard[j].rarity {
			return hard[i].rarity > hard[j].rarity
		}
		return hard[i].lemma < hard[j].lemma
	})
	if len(hard) > a.cfg.MaxDifficultWords {
		hard = hard[:a.cfg.MaxDifficultWords]
	}
	out := make([]string, len(hard))
	for i, h := range hard {
		out[i] = h.lemma
	}
	return out
}

var subordinators = map[string]bool{
	"although": true, "though": true, "because": true, "since": true,
	"unless": true, "whereas": true, "whether": true, "while": true,
	"whilst": true, "until": true, "till": true, "whenever": true,
	"wherever": true, "which": true, "whom": true, "whose": true,
	"who": true, "whoever": true, "whatever": true, "whichever": true,
	"if": true, "lest": true,
}

// clauseMarkers counts subordinating words and internal clause punctuation.
func clauseMarkers(s lexical.Sentence) int {
	n := 0
	for _, t := range s.Tokens {
		if subordinators[t.Surface] {
			n++
		}
	}
	n += strings.Count(s.Text, ";") + strings.Count(s.Text, ":")
	return n
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
