package ai_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/graphweave/graphrag/pkg/ai"
	"github.com/graphweave/graphrag/pkg/ai/aitest"
)

var errTransient = errors.New("503 service unavailable")

func fastParams(attempts, dim int) ai.RetryingClientParams {
	return ai.RetryingClientParams{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		AttemptTimeout:  time.Second,
		EmbeddingDim:    dim,
	}
}

func TestRetryingClient_RecoversFromTransientFailures(t *testing.T) {
	fake := aitest.NewClient(4)
	calls := 0
	fake.CompleteFunc = func(prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "answer", nil
	}

	c := ai.NewRetryingClient(fake, fastParams(5, 4))
	got, err := c.GenerateCompletion(context.Background(), "q")
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if got != "answer" || calls != 3 {
		t.Fatalf("got %q after %d calls, want answer after 3", got, calls)
	}
}

func TestRetryingClient_SurfacesAfterCeiling(t *testing.T) {
	fake := aitest.NewClient(4)
	calls := 0
	fake.CompleteFunc = func(prompt string) (string, error) {
		calls++
		return "", errTransient
	}

	c := ai.NewRetryingClient(fake, fastParams(3, 4))
	_, err := c.GenerateCompletion(context.Background(), "q")
	if !errors.Is(err, ai.ErrAttemptsExhausted) {
		t.Fatalf("error = %v, want ErrAttemptsExhausted", err)
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("error = %v, want wrapped transient cause", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryingClient_MalformedEmbeddingNotRetried(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{name: "empty", vec: nil},
		{name: "wrong length", vec: []float32{1, 2, 3}},
		{name: "nan", vec: []float32{1, float32(math.NaN()), 0, 0}},
		{name: "inf", vec: []float32{float32(math.Inf(1)), 0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := aitest.NewClient(4)
			calls := 0
			fake.EmbedFunc = func(string) ([]float32, error) {
				calls++
				return tc.vec, nil
			}

			c := ai.NewRetryingClient(fake, fastParams(5, 4))
			_, err := c.GenerateEmbedding(context.Background(), []byte("text"))
			if !errors.Is(err, ai.ErrMalformedEmbedding) {
				t.Fatalf("error = %v, want ErrMalformedEmbedding", err)
			}
			if calls != 1 {
				t.Fatalf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestRetryingClient_ValidEmbeddingPassesThrough(t *testing.T) {
	fake := aitest.NewClient(8)
	c := ai.NewRetryingClient(fake, fastParams(2, 8))

	vec, err := c.GenerateEmbedding(context.Background(), []byte("Rome and Venice"))
	if err != nil {
		t.Fatalf("GenerateEmbedding() error = %v", err)
	}
	if len(vec) != 8 {
		t.Fatalf("len = %d, want 8", len(vec))
	}
}

func TestRetryingClient_StopsOnCancelledContext(t *testing.T) {
	fake := aitest.NewClient(4)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fake.CompleteFunc = func(string) (string, error) {
		calls++
		cancel()
		return "", errTransient
	}

	c := ai.NewRetryingClient(fake, fastParams(5, 4))
	_, err := c.GenerateCompletion(ctx, "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ai.ErrAttemptsExhausted) {
		t.Fatalf("cancelled call should not report exhausted attempts: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestValidateEmbedding_AnyDimension(t *testing.T) {
	if err := ai.ValidateEmbedding([]float32{0.1, 0.2}, 0); err != nil {
		t.Fatalf("ValidateEmbedding() error = %v", err)
	}
}
