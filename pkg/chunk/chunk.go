// Package chunk splits document text into the spans entities are extracted
// from.
package chunk

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	StrategyTokens = "tokens"
	StrategyWords  = "words"
)

// Chunker splits text into an ordered sequence of non-empty chunks. Empty
// or blank input yields no chunks.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// NewChunkerParams selects and configures a Chunker. Size is measured in
// tokens for StrategyTokens and in words for StrategyWords.
type NewChunkerParams struct {
	Strategy string
	Size     int
	Overlap  int
	Encoder  string
}

// NewChunker builds the Chunker named by params.Strategy. An empty strategy
// selects token chunking.
func NewChunker(params NewChunkerParams) (Chunker, error) {
	switch params.Strategy {
	case "", StrategyTokens:
		return NewTokenChunker(params.Encoder, params.Size)
	case StrategyWords:
		return NewWordChunker(params.Size, params.Overlap)
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q", params.Strategy)
	}
}

// splitIntoSentences breaks text into sentences. Blank lines end a
// sentence even without terminal punctuation.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		for _, sentence := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)
			if endsSentence(sentence) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), "\"')]}")
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// splitLineIntoSentences cuts a single line after terminal punctuation.
// A digit followed by ". " is read as a list marker, not a sentence end.
func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] != '.' && line[i] != '!' && line[i] != '?' {
			continue
		}
		if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
			continue
		}

		j := i + 1
		for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
			current.WriteByte(line[j])
			j++
		}
		for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
			line[j] == ']' || line[j] == '}') {
			current.WriteByte(line[j])
			j++
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
