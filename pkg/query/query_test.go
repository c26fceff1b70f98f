package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/graphweave/graphrag/pkg/ai"
	"github.com/graphweave/graphrag/pkg/ai/aitest"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/store/memory"
)

func newEngine(st *memory.Store, fake *aitest.Client) *Engine {
	return NewEngine(EngineParams{Store: st, Completer: fake, Embedder: fake, EmbeddingDim: fake.Dim})
}

func seedRomeVenice(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	rome, err := st.UpsertNode(ctx, "Rome", "LOCATION")
	if err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	venice, err := st.UpsertNode(ctx, "Venice", "LOCATION")
	if err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	for _, r := range []common.Relationship{
		{SourceID: rome, TargetID: venice, Label: "connected", Weight: 1},
		{SourceID: venice, TargetID: rome, Label: "connected", Weight: 1},
	} {
		if err := st.UpsertEdge(ctx, r, common.EdgeAdd); err != nil {
			t.Fatalf("UpsertEdge() error = %v", err)
		}
	}
}

func TestLocalQuery_UnknownEntityMakesNoCompletion(t *testing.T) {
	st := memory.New()
	seedRomeVenice(t, st)
	fake := aitest.NewClient(8)

	got := newEngine(st, fake).LocalQuery(context.Background(), "What is it?", "Nonexistent")
	if want := "Entity Nonexistent not found."; got != want {
		t.Fatalf("LocalQuery() = %q, want %q", got, want)
	}
	if n := len(fake.Prompts()); n != 0 {
		t.Fatalf("completion calls = %d, want 0", n)
	}
}

func TestLocalQuery_NameIsCaseSensitive(t *testing.T) {
	st := memory.New()
	seedRomeVenice(t, st)
	fake := aitest.NewClient(8)

	got := newEngine(st, fake).LocalQuery(context.Background(), "What is Rome?", "rome")
	if got != EntityNotFoundAnswer("rome") {
		t.Fatalf("LocalQuery() = %q", got)
	}
}

func TestLocalQuery_UsesRelationshipLines(t *testing.T) {
	st := memory.New()
	seedRomeVenice(t, st)
	fake := aitest.NewClient(8)
	trace := NewQueryTrace()

	got := newEngine(st, fake).LocalQuery(context.Background(), "What is Rome?", "Rome", WithTracer(trace))

	prompts := fake.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(prompts))
	}
	if !strings.Contains(prompts[0], "Rome is connected to Venice (weight: 1)") {
		t.Fatalf("prompt missing relationship line:\n%s", prompts[0])
	}
	if !strings.HasSuffix(prompts[0], "Answer: What is Rome?") {
		t.Fatalf("prompt missing question:\n%s", prompts[0])
	}
	// The fake echoes the prompt back.
	if got != strings.TrimSpace(prompts[0]) {
		t.Fatalf("LocalQuery() = %q", got)
	}

	snap := trace.Snapshot()
	if !reflect.DeepEqual(snap.EntityIDs, []int64{1}) {
		t.Fatalf("traced entity ids = %v, want [1]", snap.EntityIDs)
	}
	if len(snap.Relationships) != 2 {
		t.Fatalf("traced relationships = %v", snap.Relationships)
	}
}

func TestLocalQuery_NoRelationships(t *testing.T) {
	st := memory.New()
	if _, err := st.UpsertNode(context.Background(), "Tokyo", "LOCATION"); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	fake := aitest.NewClient(8)

	got := newEngine(st, fake).LocalQuery(context.Background(), "What is Tokyo?", "Tokyo")
	if want := "No relationships found for Tokyo."; got != want {
		t.Fatalf("LocalQuery() = %q, want %q", got, want)
	}
	if n := len(fake.Prompts()); n != 0 {
		t.Fatalf("completion calls = %d, want 0", n)
	}
}

func TestLocalQuery_CompletionFailureReturnsSentinel(t *testing.T) {
	st := memory.New()
	seedRomeVenice(t, st)
	fake := aitest.NewClient(8)
	fake.CompleteFunc = func(string) (string, error) { return "", errors.New("provider down") }

	got := newEngine(st, fake).LocalQuery(context.Background(), "What is Rome?", "Rome")
	if got != LocalErrorAnswer {
		t.Fatalf("LocalQuery() = %q, want %q", got, LocalErrorAnswer)
	}
}

func TestLocalQuery_BlankCompletion(t *testing.T) {
	st := memory.New()
	seedRomeVenice(t, st)
	fake := aitest.NewClient(8)
	fake.CompleteFunc = func(string) (string, error) { return "  \n ", nil }

	got := newEngine(st, fake).LocalQuery(context.Background(), "What is Rome?", "Rome")
	if got != NoResponseAnswer {
		t.Fatalf("LocalQuery() = %q, want %q", got, NoResponseAnswer)
	}
}

func TestGlobalQuery_EmptyStore(t *testing.T) {
	fake := aitest.NewClient(8)

	got := newEngine(memory.New(), fake).GlobalQuery(context.Background(), "What is going on?")
	if got != NoCommunitiesAnswer {
		t.Fatalf("GlobalQuery() = %q, want %q", got, NoCommunitiesAnswer)
	}
	if n := len(fake.Prompts()); n != 0 {
		t.Fatalf("completion calls = %d, want 0", n)
	}
}

func TestGlobalQuery_UsesNearestSummaries(t *testing.T) {
	st := memory.New()
	fake := aitest.NewClient(16)
	fake.CompleteFunc = func(string) (string, error) { return "  Italy has canals.  ", nil }

	summaries := []string{
		"venice canals gondolas",
		"tokyo trains sushi",
		"rome colosseum empire",
		"paris tower museum",
		"berlin wall history",
	}
	comms := make([]common.Community, len(summaries))
	for i, s := range summaries {
		comms[i] = common.Community{
			ID:               int64(i),
			Members:          []int64{int64(i + 1)},
			Summary:          s,
			SummaryEmbedding: aitest.HashEmbedding(s, fake.Dim),
		}
	}
	if err := st.ReplaceCommunities(context.Background(), comms); err != nil {
		t.Fatalf("ReplaceCommunities() error = %v", err)
	}
	trace := NewQueryTrace()

	got := newEngine(st, fake).GlobalQuery(context.Background(), "venice canals gondolas", WithTracer(trace))
	if got != "Italy has canals." {
		t.Fatalf("GlobalQuery() = %q", got)
	}

	prompt := fake.Prompts()[0]
	if !strings.HasPrefix(prompt, "Based on these summaries:\nvenice canals gondolas\n") {
		t.Fatalf("nearest summary not first in prompt:\n%s", prompt)
	}
	if n := strings.Count(prompt, "\n"); n != 4 {
		t.Fatalf("prompt has %d lines, want 3 summaries plus header and answer:\n%s", n+1, prompt)
	}
	snap := trace.Snapshot()
	if len(snap.CommunityIDs) != 3 {
		t.Fatalf("traced communities = %v, want 3", snap.CommunityIDs)
	}
}

func TestGlobalQuery_EmbeddingFailureReturnsSentinel(t *testing.T) {
	st := memory.New()
	fake := aitest.NewClient(8)
	fake.EmbedFunc = func(string) ([]float32, error) { return nil, ai.ErrAttemptsExhausted }

	got := newEngine(st, fake).GlobalQuery(context.Background(), "anything")
	if got != GlobalErrorAnswer {
		t.Fatalf("GlobalQuery() = %q, want %q", got, GlobalErrorAnswer)
	}
}

func TestGlobalQuery_MalformedEmbeddingReturnsSentinel(t *testing.T) {
	fake := aitest.NewClient(8)
	fake.EmbedFunc = func(string) ([]float32, error) { return []float32{1, 2}, nil }

	got := newEngine(memory.New(), fake).GlobalQuery(context.Background(), "anything")
	if got != GlobalErrorAnswer {
		t.Fatalf("GlobalQuery() = %q, want %q", got, GlobalErrorAnswer)
	}
}

func TestQueryTrace_SnapshotSorted(t *testing.T) {
	trace := NewQueryTrace()
	MultiTracer{nil, trace}.Record(TraceEvent{Kind: TraceEventCommunityIDs, CommunityIDs: []int64{3, 1, 3}})
	RecordQueriedEntityIDs(trace, 0, 9, 2)

	snap := trace.Snapshot()
	if !reflect.DeepEqual(snap.CommunityIDs, []int64{1, 3}) {
		t.Fatalf("CommunityIDs = %v", snap.CommunityIDs)
	}
	if !reflect.DeepEqual(snap.EntityIDs, []int64{2, 9}) {
		t.Fatalf("EntityIDs = %v", snap.EntityIDs)
	}
	if !reflect.DeepEqual(snap.Relationships, []string{}) {
		t.Fatalf("Relationships = %v", snap.Relationships)
	}
}
