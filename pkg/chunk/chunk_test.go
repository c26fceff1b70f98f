package chunk

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Rome is historic. Rome and Venice are connected. Venice is beautiful.",
			want: []string{
				"Rome is historic.",
				"Rome and Venice are connected.",
				"Venice is beautiful.",
			},
		},
		{
			name: "sentences with empty lines",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{
				"First sentence.",
				"Second sentence.",
				"Third sentence.",
			},
		},
		{
			name: "multi-line sentence",
			text: "This is a long\nsentence that spans\nmultiple lines.",
			want: []string{"This is a long sentence that spans multiple lines."},
		},
		{
			name: "text with no punctuation",
			text: "Just some text without punctuation\nMore text here",
			want: []string{"Just some text without punctuation More text here"},
		},
		{
			name: "blank line ends unterminated sentence",
			text: "A heading\n\nBody text.",
			want: []string{"A heading", "Body text."},
		},
		{
			name: "quoted ending",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "numeric listing should stay in same sentence",
			text: "Today we discuss three points. 1. First item 2. Second item 3. Third item. Done!",
			want: []string{
				"Today we discuss three points.",
				"1. First item 2. Second item 3. Third item.",
				"Done!",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestWordChunker(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{name: "blank", size: 3, text: " \n\t ", want: nil},
		{name: "fits", size: 20, text: "Rome is historic. Rome and Venice are connected.", want: []string{"Rome is historic. Rome and Venice are connected."}},
		{name: "no overlap", size: 2, text: "a b c d e", want: []string{"a b", "c d", "e"}},
		{name: "overlap", size: 3, overlap: 1, text: "a b c d e", want: []string{"a b c", "c d e"}},
		{name: "exact fit", size: 2, overlap: 1, text: "a b", want: []string{"a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewWordChunker(tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("NewWordChunker() error = %v", err)
			}
			got, err := c.Chunk(tt.text)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Chunk() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestWordChunker_RejectsOverlapNotBelowSize(t *testing.T) {
	if _, err := NewWordChunker(3, 3); err == nil {
		t.Fatalf("NewWordChunker(3, 3) error = nil")
	}
	if _, err := NewWordChunker(3, -1); err == nil {
		t.Fatalf("NewWordChunker(3, -1) error = nil")
	}
}

func TestNewChunker_UnknownStrategy(t *testing.T) {
	if _, err := NewChunker(NewChunkerParams{Strategy: "paragraphs"}); err == nil {
		t.Fatalf("NewChunker() error = nil")
	}
	c, err := NewChunker(NewChunkerParams{Strategy: StrategyWords, Size: 5})
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}
	if _, ok := c.(*WordChunker); !ok {
		t.Fatalf("NewChunker() = %T, want *WordChunker", c)
	}
}

// Token encoders are fetched on first use and may be unavailable offline.
func newTokenChunker(t *testing.T, maxTokens int) *TokenChunker {
	t.Helper()
	c, err := NewTokenChunker(DefaultEncoder, maxTokens)
	if err != nil {
		t.Skipf("token encoder unavailable: %v", err)
	}
	return c
}

func TestTokenChunker_PacksSentences(t *testing.T) {
	c := newTokenChunker(t, 500)
	text := "Rome is historic. Rome and Venice are connected. Venice is beautiful."

	got, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if want := []string{text}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Chunk() = %#v, want %#v", got, want)
	}
}

func TestTokenChunker_SplitsAtLimit(t *testing.T) {
	c := newTokenChunker(t, 8)
	text := strings.Repeat("The quick brown fox jumps over the dog. ", 5)

	got, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Chunk() returned %d chunks, want 5: %#v", len(got), got)
	}
	for _, chunk := range got {
		if chunk != "The quick brown fox jumps over the dog." {
			t.Fatalf("unexpected chunk %q", chunk)
		}
	}
}

func TestTokenChunker_Empty(t *testing.T) {
	c := newTokenChunker(t, 10)
	got, err := c.Chunk("   ")
	if err != nil || got != nil {
		t.Fatalf("Chunk() = %#v, %v; want nil, nil", got, err)
	}
}
