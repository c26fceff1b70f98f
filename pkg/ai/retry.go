package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/graphweave/graphrag/pkg/logger"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrMalformedEmbedding is returned when a provider answers with a vector
	// that is empty, non-finite or of the wrong length. It is never retried.
	ErrMalformedEmbedding = errors.New("malformed embedding")
	// ErrAttemptsExhausted wraps the last transient failure once the attempt
	// ceiling is reached.
	ErrAttemptsExhausted = errors.New("ai request attempts exhausted")
	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("empty completion")
)

// ValidateEmbedding checks that vec is a usable embedding. When dim is
// positive the vector must have exactly dim components.
func ValidateEmbedding(vec []float32, dim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrMalformedEmbedding, len(vec), dim)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrMalformedEmbedding, i)
		}
	}
	return nil
}

// RetryingClient decorates a GraphAIClient with per-attempt timeouts,
// exponential backoff and a finite attempt ceiling. Embeddings are validated
// before they are returned.
type RetryingClient struct {
	inner GraphAIClient

	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
	attemptTimeout  time.Duration
	embeddingDim    int
}

// RetryingClientParams configures a RetryingClient. Zero values fall back
// to 5 attempts, 1s initial backoff, 30s maximum backoff and a 2m timeout
// per attempt. EmbeddingDim of 0 skips the length check.
type RetryingClientParams struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration
	EmbeddingDim    int
}

func NewRetryingClient(inner GraphAIClient, params RetryingClientParams) *RetryingClient {
	c := &RetryingClient{
		inner:           inner,
		maxAttempts:     5,
		initialInterval: time.Second,
		maxInterval:     30 * time.Second,
		attemptTimeout:  2 * time.Minute,
		embeddingDim:    params.EmbeddingDim,
	}
	if params.MaxAttempts > 0 {
		c.maxAttempts = uint(params.MaxAttempts)
	}
	if params.InitialInterval > 0 {
		c.initialInterval = params.InitialInterval
	}
	if params.MaxInterval > 0 {
		c.maxInterval = params.MaxInterval
	}
	if params.AttemptTimeout > 0 {
		c.attemptTimeout = params.AttemptTimeout
	}
	return c
}

func retry[T any](ctx context.Context, c *RetryingClient, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval

	attempts := uint(0)
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		aCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()

		out, err := fn(aCtx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrMalformedEmbedding) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("[AI] Request failed, retrying", "op", op, "attempt", attempts, "backoff", next, "err", err)
		}),
	)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil || errors.Is(err, ErrMalformedEmbedding) {
		var zero T
		return zero, err
	}
	var zero T
	return zero, fmt.Errorf("%w: %s failed after %d attempts: %w", ErrAttemptsExhausted, op, attempts, err)
}

func (c *RetryingClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return retry(ctx, c, "completion", func(ctx context.Context) (string, error) {
		return c.inner.GenerateCompletion(ctx, prompt, opts...)
	})
}

func (c *RetryingClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	_, err := retry(ctx, c, "structured_completion", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.inner.GenerateCompletionWithFormat(ctx, name, description, prompt, out, opts...)
	})
	return err
}

func (c *RetryingClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return retry(ctx, c, "embedding", func(ctx context.Context) ([]float32, error) {
		vec, err := c.inner.GenerateEmbedding(ctx, input)
		if err != nil {
			return nil, err
		}
		if err := ValidateEmbedding(vec, c.embeddingDim); err != nil {
			return nil, err
		}
		return vec, nil
	})
}

func (c *RetryingClient) ResetMetrics() {
	c.inner.ResetMetrics()
}

func (c *RetryingClient) GetMetrics() ModelMetrics {
	return c.inner.GetMetrics()
}
