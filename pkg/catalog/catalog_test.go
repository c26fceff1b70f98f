package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/graphweave/graphrag/pkg/store/memory"
)

type countingStore struct {
	*memory.Store
	calls atomic.Int32
}

func (s *countingStore) UpsertNode(ctx context.Context, name, typ string) (int64, error) {
	s.calls.Add(1)
	return s.Store.UpsertNode(ctx, name, typ)
}

func TestResolve_SameNameSameID(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{Store: memory.New()}
	c := New(st)

	a, err := c.Resolve(ctx, "Rome", "CITY")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, _ := c.Resolve(ctx, "Rome", "CITY")
	v, _ := c.Resolve(ctx, "Venice", "CITY")

	if a != b {
		t.Fatalf("Rome resolved to %d and %d", a, b)
	}
	if a == v {
		t.Fatalf("Rome and Venice share id %d", a)
	}
	if got := st.calls.Load(); got != 2 {
		t.Fatalf("store calls = %d, want 2", got)
	}
}

func TestResolve_FirstTypeWins(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	c := New(st)

	_, _ = c.Resolve(ctx, "Paris", "CITY")
	_, _ = c.Resolve(ctx, "Paris", "PERSON")

	e, err := st.NodeByName(ctx, "Paris")
	if err != nil {
		t.Fatalf("NodeByName() error = %v", err)
	}
	if e.Type != "CITY" {
		t.Fatalf("type = %q, want CITY", e.Type)
	}
}

func TestResolve_CaseSensitive(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New())
	a, _ := c.Resolve(ctx, "Rome", "")
	b, _ := c.Resolve(ctx, "ROME", "")
	if a == b {
		t.Fatalf("Rome and ROME share id %d", a)
	}
}

func TestResolve_EmptyName(t *testing.T) {
	_, err := New(memory.New()).Resolve(context.Background(), "  ", "CITY")
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("error = %v, want ErrEmptyName", err)
	}
}

func TestResolve_ConcurrentCallersShareOneNode(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{Store: memory.New()}
	c := New(st)

	const workers = 64
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := c.Resolve(ctx, "Venice", "CITY")
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("ids diverged: %v", ids)
		}
	}
	snap, _ := st.LoadSnapshot(ctx)
	if len(snap.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(snap.Nodes))
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

type failingStore struct{ err error }

func (f failingStore) UpsertNode(context.Context, string, string) (int64, error) {
	return 0, f.err
}

func TestResolve_StoreErrorNotCached(t *testing.T) {
	boom := errors.New("connection reset")
	c := New(failingStore{err: boom})
	if _, err := c.Resolve(context.Background(), "Rome", "CITY"); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Fatalf("failed resolve was cached")
	}
}
