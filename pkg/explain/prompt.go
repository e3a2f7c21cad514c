package explain

import (
	"fmt"
	"strings"

	"github.com/japaniel/novelreader/pkg/difficulty"
)

// BuildPrompt renders the model prompt for req.
func BuildPrompt(req Request) string {
	if req.Detailed {
		return detailedPrompt(req)
	}
	return simplePrompt(req)
}

func detailedPrompt(req Request) string {
	return fmt.Sprintf(`You are an English teacher helping a non-native speaker read a novel.
Analyse the passage below in depth.

Passage:
%s

Passage information:
%s

Structure your answer with these sections:

## Difficulty
Explain which language features make this passage %s for the reader.

## Key vocabulary
Pick 5-8 important words. For each give the meaning in context, the part of
speech, related word forms and a common collocation.%s

## Sentence structure
Point out complex constructions (inversion, ellipsis, nested clauses) and
restate them simply.

## Cultural background
Explain any historical, social or cultural references.

## Literary technique
Comment on narrative viewpoint, characterisation and figurative language.

## Check your understanding
Write 3 short questions about the passage.

## Paraphrase
Rewrite the passage in plain modern English.`,
		req.Text, diagnostics(req.Score), req.Score.Label, hint(req.Score))
}

func simplePrompt(req Request) string {
	return fmt.Sprintf(`Briefly help a non-native English reader with this novel passage.

Passage:
%s

Words: %d, difficulty: %s

Give:
## Key vocabulary
3-5 important words with short meanings.%s

## Background
Any cultural background needed to follow the passage.

## Paraphrase
The passage in plain English.

Keep it short.`,
		req.Text, req.Score.TotalWords, req.Score.Label, hint(req.Score))
}

func diagnostics(s difficulty.Score) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Total words: %d\n", s.TotalWords)
	fmt.Fprintf(&b, "- Unique words: %d\n", s.UniqueWords)
	fmt.Fprintf(&b, "- Vocabulary coverage: %.1f%%\n", s.Coverage*100)
	fmt.Fprintf(&b, "- Difficulty: %s (%.2f)\n", s.Label, s.Raw)
	fmt.Fprintf(&b, "- Estimated reading time: %s", readingTime(s))
	return b.String()
}

func hint(s difficulty.Score) string {
	if len(s.DifficultWords) == 0 {
		return ""
	}
	return "\nThe reader has not learned these yet: " + strings.Join(s.DifficultWords, ", ") + "."
}

func readingTime(s difficulty.Score) string {
	if s.ReadingTime.Minutes() < 1 {
		return "under a minute"
	}
	return fmt.Sprintf("about %.0f minutes", s.ReadingTime.Minutes())
}

// summary is the offline explanation used by Static.
func summary(s difficulty.Score) string {
	if s.Degenerate || s.TotalWords == 0 {
		return "Nothing to explain."
	}
	text := fmt.Sprintf("%s passage: %d words, %.0f%% familiar vocabulary.",
		strings.ToUpper(string(s.Label[:1]))+string(s.Label[1:]), s.TotalWords, s.Coverage*100)
	if len(s.DifficultWords) > 0 {
		text += " Look up: " + strings.Join(s.DifficultWords, ", ") + "."
	}
	return text
}
