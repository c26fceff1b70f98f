package extract

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DictionaryExtractor finds entities from a fixed gazetteer. A name matches
// when it occurs case-sensitively with no letter or digit directly before
// or after it. It reports no explicit relations.
type DictionaryExtractor struct {
	entries []Entity
}

func NewDictionaryExtractor(entries []Entity) *DictionaryExtractor {
	out := make([]Entity, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e)
	}
	return &DictionaryExtractor{entries: out}
}

// LoadDictionary reads a gazetteer file with one "name,type" record per
// line. Lines starting with # are ignored.
func LoadDictionary(path string) (*DictionaryExtractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var entries []Entity
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dictionary %s: %w", path, err)
		}
		e := Entity{Name: rec[0]}
		if len(rec) > 1 {
			e.Type = rec[1]
		}
		entries = append(entries, e)
	}
	return NewDictionaryExtractor(entries), nil
}

// Extract returns the dictionary entities found in text, ordered by first
// occurrence.
func (x *DictionaryExtractor) Extract(ctx context.Context, document string, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type hit struct {
		entity Entity
		pos    int
	}
	hits := make([]hit, 0)
	for _, e := range x.entries {
		if pos := indexWord(text, e.Name); pos >= 0 {
			hits = append(hits, hit{entity: e, pos: pos})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(a.pos, b.pos)
	})

	entities := make([]Entity, len(hits))
	for i, h := range hits {
		entities[i] = h.entity
	}
	return normalize(entities, nil), nil
}

func indexWord(text, word string) int {
	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(word)
		if isBoundary(text, start, end) {
			return start
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
