package chunk

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoder = "o200k_base"

// TokenChunker packs whole sentences into chunks of at most maxTokens
// tokens. A single sentence longer than the limit becomes its own chunk.
type TokenChunker struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
}

func NewTokenChunker(encoder string, maxTokens int) (*TokenChunker, error) {
	if encoder == "" {
		encoder = DefaultEncoder
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, fmt.Errorf("load token encoder %s: %w", encoder, err)
	}
	return &TokenChunker{enc: enc, maxTokens: maxTokens}, nil
}

func (c *TokenChunker) Chunk(text string) ([]string, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []string
	var current []string
	for _, s := range sentences {
		if len(current) == 0 {
			current = append(current, s)
			continue
		}
		candidate := strings.Join(append(current, s), " ")
		if c.countTokens(candidate) <= c.maxTokens {
			current = append(current, s)
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))
		current = []string{s}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks, nil
}

func (c *TokenChunker) countTokens(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}
