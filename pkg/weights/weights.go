// Package weights turns per-chunk entity mentions of one document into
// edge weight writes.
package weights

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/graphweave/graphrag/pkg/common"
)

// Policy selects how edge weights are derived. Exactly one policy is used
// per deployment.
type Policy string

const (
	// PolicyCooccurrence adds 1 to a "connected" edge for every chunk in
	// which both entities appear.
	PolicyCooccurrence Policy = "cooccurrence"
	// PolicySharedChunk sets a "related" edge to half the number of stored
	// chunks that mention both entities.
	PolicySharedChunk Policy = "shared_chunk"
	// PolicyExplicit adds 1 to an edge labeled by the extractor for every
	// time the relationship is extracted.
	PolicyExplicit Policy = "explicit"
)

const (
	LabelConnected = "connected"
	LabelRelated   = "related"
)

// ParsePolicy maps a configuration value to a Policy. Empty selects
// PolicyCooccurrence.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyCooccurrence, nil
	case PolicyCooccurrence, PolicySharedChunk, PolicyExplicit:
		return p, nil
	default:
		return "", fmt.Errorf("unknown edge weight policy %q", s)
	}
}

// ResolvedRelation is an extracted relationship with both endpoints
// resolved to node ids.
type ResolvedRelation struct {
	SourceID int64
	TargetID int64
	Label    string
}

// Delta is one edge write.
type Delta struct {
	common.Relationship
	Mode common.EdgeMode
}

// SharedChunkCounter counts stored chunks linked to both entities.
type SharedChunkCounter interface {
	SharedChunkCount(ctx context.Context, a, b int64) (int, error)
}

// EdgeUpserter writes a single directed edge.
type EdgeUpserter interface {
	UpsertEdge(ctx context.Context, rel common.Relationship, mode common.EdgeMode) error
}

// pair is an unordered pair with lo < hi.
type pair struct{ lo, hi int64 }

func newPair(a, b int64) pair {
	if a > b {
		a, b = b, a
	}
	return pair{lo: a, hi: b}
}

type relKey struct {
	pair
	label string
}

// Aggregator accumulates observations for one document. It is safe for
// concurrent ObserveChunk calls.
type Aggregator struct {
	policy Policy

	mu        sync.Mutex
	pairs     map[pair]int
	relations map[relKey]int
}

func NewAggregator(policy Policy) (*Aggregator, error) {
	switch policy {
	case PolicyCooccurrence, PolicySharedChunk, PolicyExplicit:
	default:
		return nil, fmt.Errorf("unknown edge weight policy %q", policy)
	}
	return &Aggregator{
		policy:    policy,
		pairs:     map[pair]int{},
		relations: map[relKey]int{},
	}, nil
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// ObserveChunk records the entities mentioned in one chunk and, for the
// explicit policy, the relationships extracted from it. Repeated mentions
// of an entity within a chunk count once. Self pairs are ignored.
func (a *Aggregator) ObserveChunk(entityIDs []int64, relations []ResolvedRelation) {
	ids := common.NormalizeMembers(entityIDs)

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.policy {
	case PolicyCooccurrence, PolicySharedChunk:
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a.pairs[pair{lo: ids[i], hi: ids[j]}]++
			}
		}
	case PolicyExplicit:
		for _, r := range relations {
			if r.SourceID == r.TargetID || strings.TrimSpace(r.Label) == "" {
				continue
			}
			a.relations[relKey{pair: newPair(r.SourceID, r.TargetID), label: r.Label}]++
		}
	}
}

// Flush returns the edge writes for everything observed so far, both
// directions of every pair, in a stable order, and resets the aggregator.
// counter is only consulted by PolicySharedChunk and must see the chunk
// links of the current document.
func (a *Aggregator) Flush(ctx context.Context, counter SharedChunkCounter) ([]Delta, error) {
	a.mu.Lock()
	pairs, relations := a.pairs, a.relations
	a.pairs, a.relations = map[pair]int{}, map[relKey]int{}
	a.mu.Unlock()

	out := make([]Delta, 0)
	switch a.policy {
	case PolicyCooccurrence:
		for _, p := range sortedPairs(pairs) {
			out = appendBoth(out, p, LabelConnected, float64(pairs[p]), common.EdgeAdd)
		}
	case PolicySharedChunk:
		if counter == nil {
			return nil, fmt.Errorf("shared chunk policy needs a chunk counter")
		}
		for _, p := range sortedPairs(pairs) {
			n, err := counter.SharedChunkCount(ctx, p.lo, p.hi)
			if err != nil {
				return nil, fmt.Errorf("count shared chunks: %w", err)
			}
			if n == 0 {
				continue
			}
			out = appendBoth(out, p, LabelRelated, float64(n)/2.0, common.EdgeReplace)
		}
	case PolicyExplicit:
		keys := make([]relKey, 0, len(relations))
		for k := range relations {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(x, y relKey) int {
			return cmp.Or(cmp.Compare(x.lo, y.lo), cmp.Compare(x.hi, y.hi), cmp.Compare(x.label, y.label))
		})
		for _, k := range keys {
			out = appendBoth(out, k.pair, k.label, float64(relations[k]), common.EdgeAdd)
		}
	}
	return out, nil
}

func sortedPairs(m map[pair]int) []pair {
	out := make([]pair, 0, len(m))
	for p, n := range m {
		if n > 0 {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(x, y pair) int {
		return cmp.Or(cmp.Compare(x.lo, y.lo), cmp.Compare(x.hi, y.hi))
	})
	return out
}

func appendBoth(out []Delta, p pair, label string, w float64, mode common.EdgeMode) []Delta {
	return append(out,
		Delta{Relationship: common.Relationship{SourceID: p.lo, TargetID: p.hi, Label: label, Weight: w}, Mode: mode},
		Delta{Relationship: common.Relationship{SourceID: p.hi, TargetID: p.lo, Label: label, Weight: w}, Mode: mode},
	)
}

// Apply writes deltas in order and stops at the first failure.
func Apply(ctx context.Context, w EdgeUpserter, deltas []Delta) error {
	for _, d := range deltas {
		if err := w.UpsertEdge(ctx, d.Relationship, d.Mode); err != nil {
			return err
		}
	}
	return nil
}
