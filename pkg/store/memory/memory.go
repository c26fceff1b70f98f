// Package memory is an in-process store.GraphStorage with the same
// semantics as the Postgres store. It backs tests and embedded use.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/store"

	"gonum.org/v1/gonum/blas/blas32"
)

type edgeKey struct {
	source int64
	target int64
	label  string
}

// Store keeps the whole graph in maps guarded by one RWMutex. Every
// method holds the lock for its full duration, so single calls are atomic.
type Store struct {
	mu sync.RWMutex

	documents []common.Document
	docByPath map[string]int

	chunks      []common.Chunk
	chunkLinks  map[int64]map[int64]struct{}
	nextChunkID int64

	nodes      []common.Entity
	nodeByName map[string]int

	edges map[edgeKey]float64

	communities map[int64]common.Community

	// Missing lists table names ValidateSchema should report as absent.
	Missing []string
}

var _ store.GraphStorage = (*Store)(nil)

func New() *Store {
	return &Store{
		docByPath:   map[string]int{},
		chunkLinks:  map[int64]map[int64]struct{}{},
		nodeByName:  map[string]int{},
		edges:       map[edgeKey]float64{},
		communities: map[int64]common.Community{},
	}
}

func (s *Store) ValidateSchema(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Missing) > 0 {
		return fmt.Errorf("%w: tables %v", store.ErrSchemaMissing, s.Missing)
	}
	return nil
}

func (s *Store) RegisterDocument(ctx context.Context, path string) (common.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.docByPath[path]; ok {
		return s.documents[i], nil
	}
	d := common.Document{ID: int64(len(s.documents) + 1), Path: path}
	s.docByPath[path] = len(s.documents)
	s.documents = append(s.documents, d)
	return d, nil
}

func (s *Store) PendingDocuments(ctx context.Context) ([]common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Document, 0)
	for _, d := range s.documents {
		if !d.Processed {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) MarkDocumentProcessed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.documents) {
		return fmt.Errorf("document %d: %w", id, store.ErrNotFound)
	}
	s.documents[id-1].Processed = true
	return nil
}

// Documents returns a copy of every registered document.
func (s *Store) Documents() []common.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.documents)
}

func (s *Store) SaveChunk(ctx context.Context, chunk common.Chunk) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.DocumentID < 1 || int(chunk.DocumentID) > len(s.documents) {
		return 0, fmt.Errorf("save chunk: document %d: %w", chunk.DocumentID, store.ErrNotFound)
	}
	s.nextChunkID++
	chunk.ID = s.nextChunkID
	chunk.Embedding = slices.Clone(chunk.Embedding)
	s.chunks = append(s.chunks, chunk)
	return chunk.ID, nil
}

// Chunks returns a copy of every stored chunk.
func (s *Store) Chunks() []common.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chunks)
}

func (s *Store) LinkChunkEntities(ctx context.Context, chunkID int64, entityIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	links, ok := s.chunkLinks[chunkID]
	if !ok {
		links = map[int64]struct{}{}
		s.chunkLinks[chunkID] = links
	}
	for _, id := range entityIDs {
		links[id] = struct{}{}
	}
	return nil
}

func (s *Store) SharedChunkCount(ctx context.Context, a, b int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, links := range s.chunkLinks {
		_, okA := links[a]
		_, okB := links[b]
		if okA && okB {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpsertNode(ctx context.Context, name, typ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.nodeByName[name]; ok {
		s.nodes[i].Type = typ
		return s.nodes[i].ID, nil
	}
	e := common.Entity{ID: int64(len(s.nodes) + 1), Name: name, Type: typ}
	s.nodeByName[name] = len(s.nodes)
	s.nodes = append(s.nodes, e)
	return e.ID, nil
}

func (s *Store) UpsertEdge(ctx context.Context, rel common.Relationship, mode common.EdgeMode) error {
	if rel.SourceID == rel.TargetID {
		return fmt.Errorf("upsert edge: self loop on node %d", rel.SourceID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasNode(rel.SourceID) || !s.hasNode(rel.TargetID) {
		return fmt.Errorf("upsert edge %d->%d: %w", rel.SourceID, rel.TargetID, store.ErrNotFound)
	}
	k := edgeKey{source: rel.SourceID, target: rel.TargetID, label: rel.Label}
	switch mode {
	case common.EdgeAdd:
		s.edges[k] += rel.Weight
	case common.EdgeReplace:
		s.edges[k] = rel.Weight
	default:
		return fmt.Errorf("upsert edge: unknown mode %d", mode)
	}
	return nil
}

func (s *Store) hasNode(id int64) bool {
	return id >= 1 && int(id) <= len(s.nodes)
}

func (s *Store) LoadSnapshot(ctx context.Context) (*common.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &common.Snapshot{
		Nodes: slices.Clone(s.nodes),
		Edges: make([]common.Relationship, 0, len(s.edges)),
	}
	for k, w := range s.edges {
		snap.Edges = append(snap.Edges, common.Relationship{
			SourceID: k.source, TargetID: k.target, Label: k.label, Weight: w,
		})
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		a, b := snap.Edges[i], snap.Edges[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Label < b.Label
	})
	return snap, nil
}

func (s *Store) NodeByName(ctx context.Context, name string) (common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.nodeByName[name]
	if !ok {
		return common.Entity{}, fmt.Errorf("node %q: %w", name, store.ErrNotFound)
	}
	return s.nodes[i], nil
}

func (s *Store) EdgesTouching(ctx context.Context, id int64) ([]common.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Neighbor, 0)
	for k, w := range s.edges {
		if k.source != id && k.target != id {
			continue
		}
		out = append(out, common.Neighbor{
			SourceName: s.nodes[k.source-1].Name,
			TargetName: s.nodes[k.target-1].Name,
			Label:      k.label,
			Weight:     w,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.SourceName != b.SourceName {
			return a.SourceName < b.SourceName
		}
		if a.TargetName != b.TargetName {
			return a.TargetName < b.TargetName
		}
		return a.Label < b.Label
	})
	return out, nil
}

func (s *Store) Communities(ctx context.Context) ([]common.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedCommunities(), nil
}

func (s *Store) sortedCommunities() []common.Community {
	out := make([]common.Community, 0, len(s.communities))
	for _, c := range s.communities {
		out = append(out, cloneCommunity(c))
	}
	slices.SortFunc(out, func(a, b common.Community) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) ReplaceCommunities(ctx context.Context, communities []common.Community) error {
	next := make(map[int64]common.Community, len(communities))
	for _, c := range communities {
		if _, dup := next[c.ID]; dup {
			return fmt.Errorf("replace communities: duplicate id %d", c.ID)
		}
		c = cloneCommunity(c)
		c.Members = common.NormalizeMembers(c.Members)
		next[c.ID] = c
	}
	s.mu.Lock()
	s.communities = next
	s.mu.Unlock()
	return nil
}

func (s *Store) NearestCommunities(ctx context.Context, embedding []float32, k int) ([]common.Community, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		c    common.Community
		dist float32
	}
	candidates := make([]scored, 0, len(s.communities))
	for _, c := range s.sortedCommunities() {
		if len(c.SummaryEmbedding) == 0 {
			continue
		}
		if len(c.SummaryEmbedding) != len(embedding) {
			return nil, fmt.Errorf("nearest communities: different vector dimensions %d and %d",
				len(c.SummaryEmbedding), len(embedding))
		}
		candidates = append(candidates, scored{c: c, dist: CosineDistance(c.SummaryEmbedding, embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	out := make([]common.Community, 0, min(k, len(candidates)))
	for i := 0; i < len(candidates) && i < k; i++ {
		c := candidates[i].c
		c.SummaryEmbedding = nil
		out = append(out, c)
	}
	return out, nil
}

// CosineDistance is 1 - cos(a, b), matching the pgvector <=> operator. A
// zero vector is infinitely far from everything.
func CosineDistance(a, b []float32) float32 {
	va := blas32.Vector{N: len(a), Inc: 1, Data: a}
	vb := blas32.Vector{N: len(b), Inc: 1, Data: b}
	na, nb := blas32.Nrm2(va), blas32.Nrm2(vb)
	if na == 0 || nb == 0 {
		return float32(math.Inf(1))
	}
	return 1 - blas32.Dot(va, vb)/(na*nb)
}

func cloneCommunity(c common.Community) common.Community {
	c.Members = slices.Clone(c.Members)
	c.SummaryEmbedding = slices.Clone(c.SummaryEmbedding)
	return c
}

// Dump renders every edge as "source -label-> target: weight", sorted, for
// test failure messages.
func (s *Store) Dump() string {
	snap, _ := s.LoadSnapshot(context.Background())
	names := snap.NameIndex()
	lines := make([]string, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		lines = append(lines, fmt.Sprintf("%s -%s-> %s: %g", names[e.SourceID], e.Label, names[e.TargetID], e.Weight))
	}
	return strings.Join(lines, "\n")
}
