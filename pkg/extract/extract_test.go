package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/graphweave/graphrag/pkg/ai/aitest"
)

func TestDictionaryExtractor_RomeVenice(t *testing.T) {
	x := NewDictionaryExtractor([]Entity{
		{Name: "Venice", Type: "LOCATION"},
		{Name: "Rome", Type: "LOCATION"},
		{Name: "Paris", Type: "LOCATION"},
	})

	got, err := x.Extract(context.Background(), "doc.txt", "Rome is historic. Rome and Venice are connected. Venice is beautiful.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []Entity{{Name: "Rome", Type: "LOCATION"}, {Name: "Venice", Type: "LOCATION"}}
	if !reflect.DeepEqual(got.Entities, want) {
		t.Fatalf("Entities = %#v, want %#v", got.Entities, want)
	}
	if len(got.Relations) != 0 {
		t.Fatalf("Relations = %#v, want none", got.Relations)
	}
}

func TestDictionaryExtractor_WordBoundaries(t *testing.T) {
	x := NewDictionaryExtractor([]Entity{{Name: "Rome", Type: "LOCATION"}, {Name: "Al", Type: "PERSON"}})

	tests := []struct {
		text string
		want int
	}{
		{text: "Romeo loves Juliet.", want: 0},
		{text: "rome is lowercase.", want: 0},
		{text: "Romeo went to Rome.", want: 1},
		{text: "(Rome)", want: 1},
		{text: "Alice and Álvaro met Al.", want: 1},
	}
	for _, tc := range tests {
		got, err := x.Extract(context.Background(), "doc.txt", tc.text)
		if err != nil {
			t.Fatalf("Extract(%q) error = %v", tc.text, err)
		}
		if len(got.Entities) != tc.want {
			t.Fatalf("Extract(%q) = %#v, want %d entities", tc.text, got.Entities, tc.want)
		}
	}
}

func TestLoadDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.csv")
	content := "# gazetteer\nRome,LOCATION\n\"Smith, John\",PERSON\nVenice\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	x, err := LoadDictionary(path)
	if err != nil {
		t.Fatalf("LoadDictionary() error = %v", err)
	}
	got, err := x.Extract(context.Background(), "doc.txt", "Smith, John visited Venice and Rome.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []Entity{
		{Name: "Smith, John", Type: "PERSON"},
		{Name: "Venice", Type: "UNKNOWN"},
		{Name: "Rome", Type: "LOCATION"},
	}
	if !reflect.DeepEqual(got.Entities, want) {
		t.Fatalf("Entities = %#v, want %#v", got.Entities, want)
	}
}

func TestLLMExtractor_NormalizesResponse(t *testing.T) {
	fake := aitest.NewClient(8)
	fake.StructuredFunc = func(prompt string) (string, error) {
		return aitest.JSON(map[string]any{
			"entities": []map[string]string{
				{"entity_name": " Rome ", "entity_type": "location"},
				{"entity_name": "Venice", "entity_type": "LOCATION"},
				{"entity_name": "Rome", "entity_type": "PERSON"},
				{"entity_name": "", "entity_type": "PERSON"},
			},
			"relationships": []map[string]string{
				{"source_entity": "Rome", "target_entity": "Venice", "relationship": "Trades With"},
				{"source_entity": "Rome", "target_entity": "Rome", "relationship": "is"},
				{"source_entity": "Rome", "target_entity": "Atlantis", "relationship": "near"},
				{"source_entity": "Venice", "target_entity": "Rome", "relationship": " "},
			},
		}), nil
	}
	x := NewLLMExtractor(LLMExtractorParams{Client: fake, EntityTypes: []string{"LOCATION", "PERSON"}})

	got, err := x.Extract(context.Background(), "/data/italy.txt", "Rome trades with Venice.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := &Result{
		Entities: []Entity{{Name: "Rome", Type: "LOCATION"}, {Name: "Venice", Type: "LOCATION"}},
		Relations: []Relation{{Source: "Rome", Target: "Venice", Label: "trades with"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %#v, want %#v", got, want)
	}

	prompt := fake.Prompts()[0]
	for _, part := range []string{"[LOCATION,PERSON]", "[italy.txt]", "Rome trades with Venice."} {
		if !strings.Contains(prompt, part) {
			t.Fatalf("prompt missing %q:\n%s", part, prompt)
		}
	}
}

func TestLLMExtractor_PropagatesErrors(t *testing.T) {
	fake := aitest.NewClient(8)
	boom := errors.New("boom")
	fake.StructuredFunc = func(string) (string, error) { return "", boom }
	x := NewLLMExtractor(LLMExtractorParams{Client: fake})

	if _, err := x.Extract(context.Background(), "doc.txt", "text"); !errors.Is(err, boom) {
		t.Fatalf("Extract() error = %v, want %v", err, boom)
	}
}

func TestLLMExtractor_MalformedAnswer(t *testing.T) {
	fake := aitest.NewClient(8)
	fake.StructuredFunc = func(string) (string, error) { return "I could not find any entities.", nil }
	x := NewLLMExtractor(LLMExtractorParams{Client: fake})

	_, err := x.Extract(context.Background(), "doc.txt", "Rome is old.")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Extract() error = %v, want ErrMalformedResponse", err)
	}

	fake.StructuredFunc = func(string) (string, error) { return "", errors.New("timeout") }
	if _, err := x.Extract(context.Background(), "doc.txt", "Rome is old."); errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("transport error classified as malformed: %v", err)
	}
}

func TestLLMExtractor_BlankTextSkipsModel(t *testing.T) {
	fake := aitest.NewClient(8)
	x := NewLLMExtractor(LLMExtractorParams{Client: fake})

	got, err := x.Extract(context.Background(), "doc.txt", "  ")
	if err != nil || len(got.Entities) != 0 {
		t.Fatalf("Extract() = %#v, %v", got, err)
	}
	if len(fake.Prompts()) != 0 {
		t.Fatalf("model was called for blank text")
	}
}

func TestNormalize_CleansNamesForStorage(t *testing.T) {
	got := normalize(
		[]Entity{{Name: " Ro\x00me ", Type: "location"}, {Name: "Ven\xffice", Type: "LOCATION"}, {Name: "Rome", Type: "CITY"}},
		[]Relation{{Source: "Ro\x00me", Target: "Venice", Label: " Trade\x00 "}},
	)

	wantEntities := []Entity{{Name: "Rome", Type: "LOCATION"}, {Name: "Venice", Type: "LOCATION"}}
	if !reflect.DeepEqual(got.Entities, wantEntities) {
		t.Fatalf("Entities = %#v, want %#v", got.Entities, wantEntities)
	}
	wantRelations := []Relation{{Source: "Rome", Target: "Venice", Label: "trade"}}
	if !reflect.DeepEqual(got.Relations, wantRelations) {
		t.Fatalf("Relations = %#v, want %#v", got.Relations, wantRelations)
	}
}
