// Package extract finds entity mentions and explicit relationships in a
// chunk of text.
package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/graphweave/graphrag/internal/util"
)

// Entity is a mention of a named entity in a chunk.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relation is an explicit relationship between two entities of the same
// chunk, referenced by name.
type Relation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Result holds the entities and relations found in one chunk. Entity names
// are unique within a Result and every Relation refers to two distinct
// entities of the Result.
type Result struct {
	Entities  []Entity
	Relations []Relation
}

// Extractor finds entities and relations in text. document names the source
// document and is only used as context.
type Extractor interface {
	Extract(ctx context.Context, document string, text string) (*Result, error)
}

// ErrMalformedResponse is returned when the model answered but its answer
// could not be read as entities and relationships.
var ErrMalformedResponse = errors.New("malformed extraction response")

// DefaultEntityTypes is used when no entity types are configured.
var DefaultEntityTypes = []string{"ORGANIZATION", "PERSON", "LOCATION", "CONCEPT", "CREATIVE_WORK", "DATE", "PRODUCT", "EVENT"}

// normalize trims names, drops empty or repeated entities (first type wins)
// and keeps only relations between two distinct known entities. Names and
// labels are cleaned to what the store can hold, so the name a caller
// resolves is the name that gets stored.
func normalize(entities []Entity, relations []Relation) *Result {
	res := &Result{
		Entities:  make([]Entity, 0, len(entities)),
		Relations: make([]Relation, 0, len(relations)),
	}
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		name := cleanText(e.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		typ := strings.ToUpper(cleanText(e.Type))
		if typ == "" {
			typ = "UNKNOWN"
		}
		res.Entities = append(res.Entities, Entity{Name: name, Type: typ})
	}

	for _, r := range relations {
		src := cleanText(r.Source)
		tgt := cleanText(r.Target)
		label := strings.ToLower(cleanText(r.Label))
		if src == tgt || label == "" {
			continue
		}
		_, okS := seen[src]
		_, okT := seen[tgt]
		if !okS || !okT {
			continue
		}
		res.Relations = append(res.Relations, Relation{Source: src, Target: tgt, Label: label})
	}
	return res
}

func cleanText(s string) string {
	return strings.TrimSpace(util.SanitizePostgresText(s))
}
