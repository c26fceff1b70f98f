package common

import (
	"fmt"
	"slices"
	"strconv"
)

// Document is a registered input file. A document is unique by Path and is
// indexed at most once; Processed flips to true after every chunk has been
// linked and its edge weights have been flushed.
type Document struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Processed bool   `json:"processed"`
}

// Entity is a node in the knowledge graph. Identity is the exact, case
// sensitive Name; at most one entity exists per name.
type Entity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relationship is a weighted, labeled edge. Edges are undirected in effect
// but stored as two directed rows so neighborhood lookups work from either
// endpoint. At most one row exists per (SourceID, TargetID, Label).
type Relationship struct {
	SourceID int64   `json:"source_id"`
	TargetID int64   `json:"target_id"`
	Label    string  `json:"relationship"`
	Weight   float64 `json:"weight"`
}

// Neighbor is a relationship touching an entity with both endpoint names
// joined in.
type Neighbor struct {
	SourceName string  `json:"source"`
	TargetName string  `json:"target"`
	Label      string  `json:"relationship"`
	Weight     float64 `json:"weight"`
}

// Chunk is a bounded span of a document's text. Chunks are immutable once
// stored.
type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// ChunkEntity links a chunk to an entity mentioned in it.
type ChunkEntity struct {
	ChunkID  int64 `json:"chunk_id"`
	EntityID int64 `json:"entity_id"`
}

// Community is a cluster of entities produced by graph partitioning.
// Members has set semantics and is kept sorted ascending.
type Community struct {
	ID               int64     `json:"id"`
	Members          []int64   `json:"nodes"`
	Summary          string    `json:"summary"`
	SummaryEmbedding []float32 `json:"-"`
}

// EdgeMode selects how an edge upsert treats an existing weight.
type EdgeMode int

const (
	// EdgeAdd adds the given weight to the stored weight.
	EdgeAdd EdgeMode = iota
	// EdgeReplace stores the given weight as the absolute value.
	EdgeReplace
)

func (m EdgeMode) String() string {
	switch m {
	case EdgeAdd:
		return "add"
	case EdgeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of every node and every weighted edge.
type Snapshot struct {
	Nodes []Entity
	Edges []Relationship
}

// NameIndex maps node ids to names.
func (s *Snapshot) NameIndex() map[int64]string {
	idx := make(map[int64]string, len(s.Nodes))
	for _, n := range s.Nodes {
		idx[n.ID] = n.Name
	}
	return idx
}

// EdgesWithin returns the edges whose both endpoints are in members.
func (s *Snapshot) EdgesWithin(members []int64) []Relationship {
	set := make(map[int64]struct{}, len(members))
	for _, id := range members {
		set[id] = struct{}{}
	}
	out := make([]Relationship, 0)
	for _, e := range s.Edges {
		_, okS := set[e.SourceID]
		_, okT := set[e.TargetID]
		if okS && okT {
			out = append(out, e)
		}
	}
	return out
}

// NormalizeMembers returns a sorted, de-duplicated copy of ids.
func NormalizeMembers(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// SameMembers reports whether a and b contain the same set of ids.
func SameMembers(a, b []int64) bool {
	return slices.Equal(NormalizeMembers(a), NormalizeMembers(b))
}

// FormatRelationship renders one edge as "<source> is <label> to <target>
// (weight: <w>)". Whole weights print without a fraction.
func FormatRelationship(source, label, target string, weight float64) string {
	return fmt.Sprintf("%s is %s to %s (weight: %s)", source, label, target, strconv.FormatFloat(weight, 'f', -1, 64))
}

// String renders n with FormatRelationship.
func (n Neighbor) String() string {
	return FormatRelationship(n.SourceName, n.Label, n.TargetName, n.Weight)
}
