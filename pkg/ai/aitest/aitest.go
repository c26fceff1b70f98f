// Package aitest provides a scripted ai.GraphAIClient for tests.
package aitest

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/graphweave/graphrag/pkg/ai"
)

// Client is a deterministic in-process ai.GraphAIClient. By default
// completions echo the prompt and embeddings are hashed bags of words, so
// texts sharing words are close under cosine distance.
type Client struct {
	Dim int

	// Optional overrides. A nil func uses the default behaviour.
	CompleteFunc   func(prompt string) (string, error)
	StructuredFunc func(prompt string) (string, error)
	EmbedFunc      func(input string) ([]float32, error)

	mu          sync.Mutex
	prompts     []string
	embedInputs []string
	metrics     ai.ModelMetrics
}

var _ ai.GraphAIClient = (*Client)(nil)

func NewClient(dim int) *Client {
	if dim <= 0 {
		dim = 16
	}
	return &Client{Dim: dim}
}

func (c *Client) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.record(&c.prompts, prompt)
	if c.CompleteFunc != nil {
		return c.CompleteFunc(prompt)
	}
	return prompt, nil
}

func (c *Client) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.record(&c.prompts, prompt)
	raw := "{}"
	if c.StructuredFunc != nil {
		var err error
		if raw, err = c.StructuredFunc(prompt); err != nil {
			return err
		}
	}
	return ai.UnmarshalFlexible(raw, out)
}

func (c *Client) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.record(&c.embedInputs, string(input))
	if c.EmbedFunc != nil {
		return c.EmbedFunc(string(input))
	}
	return HashEmbedding(string(input), c.Dim), nil
}

func (c *Client) ResetMetrics() {
	c.mu.Lock()
	c.metrics = ai.ModelMetrics{}
	c.mu.Unlock()
}

func (c *Client) GetMetrics() ai.ModelMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Prompts returns every completion prompt seen so far, in call order.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// EmbedInputs returns every embedding input seen so far, in call order.
func (c *Client) EmbedInputs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.embedInputs...)
}

func (c *Client) record(dst *[]string, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*dst = append(*dst, s)
	c.metrics.Requests++
}

// HashEmbedding buckets lowercased words of text into a vector of length
// dim. The first component is always set so the vector is never zero.
func HashEmbedding(text string, dim int) []float32 {
	vec := make([]float32, dim)
	vec[0] = 0.01
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32()%uint32(dim))] += 1
	}
	return vec
}

// JSON marshals v for use as a StructuredFunc response.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
