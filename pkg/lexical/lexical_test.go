package lexical

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lemmas(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Lemma
	}
	return out
}

func TestNormalizeStripsPunctuationAndLowercases(t *testing.T) {
	n := NewNormalizer()
	tokens, err := n.Normalize(`"Running," she said -- and the Dogs barked!`)
	require.NoError(t, err)

	surfaces := make([]string, len(tokens))
	for i, tok := range tokens {
		surfaces[i] = tok.Surface
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, []string{"running", "she", "said", "and", "the", "dogs", "barked"}, surfaces)
	assert.Equal(t, []string{"run", "she", "say", "and", "the", "dog", "bark"}, lemmas(tokens))
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer()
	text := "It was the best of times, it was the worst of times."
	first, err := n.Normalize(text)
	require.NoError(t, err)
	for range 5 {
		again, err := n.Normalize(text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeContractions(t *testing.T) {
	n := NewNormalizer()
	tokens, err := n.Normalize("I don’t think they'll come; it's Mary's book and we can't stay.")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"i", "do", "not", "think", "they", "will", "come", "it", "mary", "book", "and", "we", "can", "not", "stay"},
		lemmas(tokens))
}

func TestNormalizeDropsNumeralsAndPunctuation(t *testing.T) {
	n := NewNormalizer()
	tokens, err := n.Normalize("1984 -- 42, 3.14 !!! ...")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestNormalizeRejectsInvalidUTF8(t *testing.T) {
	n := NewNormalizer()
	_, err := n.Normalize("abc\xffdef")
	require.Error(t, err)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 3, encErr.Offset)
}

func TestSentences(t *testing.T) {
	n := NewNormalizer()
	text := "Mr. Darcy bowed. \"Are you well?\" she asked! He smiled\n\nNew paragraph here"
	sentences, err := n.Sentences(text)
	require.NoError(t, err)
	require.Len(t, sentences, 5)

	assert.Equal(t, "Mr. Darcy bowed.", sentences[0].Text)
	assert.Equal(t, `"Are you well?"`, sentences[1].Text)
	assert.Equal(t, "she asked!", sentences[2].Text)
	assert.Equal(t, "He smiled", sentences[3].Text)
	assert.Equal(t, []string{"new", "paragraph", "here"}, lemmas(sentences[4].Tokens))

	// Positions continue across sentences.
	assert.Equal(t, 0, sentences[0].Tokens[0].Position)
	assert.Equal(t, len(sentences[0].Tokens), sentences[1].Tokens[0].Position)
}

func TestLemma(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word string
		want string
	}{
		{"running", "run"},
		{"stopped", "stop"},
		{"making", "make"},
		{"looked", "look"},
		{"opened", "open"},
		{"cities", "city"},
		{"tried", "try"},
		{"happiest", "happy"},
		{"classes", "class"},
		{"watches", "watch"},
		{"horses", "horse"},
		{"children", "child"},
		{"went", "go"},
		{"was", "be"},
		{"decided", "decide"},
		{"troubled", "trouble"},
		{"realized", "realize"},
		{"caused", "cause"},
		{"travelled", "travel"},
		{"called", "call"},
		{"continued", "continue"},
		{"compared", "compare"},
		{"becoming", "become"},
		{"morning", "morning"},
		{"this", "this"},
		{"famous", "famous"},
		{"always", "always"},
		{"speed", "speed"},
		{"sing", "sing"},
		{"bringing", "bring"},
		{"cat", "cat"},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewLemmatizer().Lemma(tt.word))
		})
	}
}
