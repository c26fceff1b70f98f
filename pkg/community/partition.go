// Package community partitions the entity graph into communities, keeps
// community ids stable across runs and summarizes each community.
package community

import (
	"cmp"
	"context"
	"slices"

	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/logger"

	"gonum.org/v1/gonum/graph"
	gcommunity "gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Partitioner splits a weighted undirected graph into disjoint
// communities that together cover every input node.
type Partitioner interface {
	Partition(ctx context.Context, nodes []int64, edges []common.Relationship) ([][]int64, error)
}

// ClusterFunc groups the nodes of g into communities. It may return
// overlapping, partial or empty groupings; GraphPartitioner repairs them.
type ClusterFunc func(g graph.Undirected, resolution float64, seed uint64) [][]int64

// Louvain maximizes modularity with the Louvain method.
func Louvain(g graph.Undirected, resolution float64, seed uint64) [][]int64 {
	reduced := gcommunity.Modularize(g, resolution, newSplitMix(seed))
	groups := make([][]int64, 0)
	for _, c := range reduced.Communities() {
		members := make([]int64, 0, len(c))
		for _, n := range c {
			members = append(members, n.ID())
		}
		groups = append(groups, members)
	}
	return groups
}

// GraphPartitioner builds a weighted undirected graph from the stored
// edges and clusters it with a ClusterFunc. The rules for empty graphs,
// edgeless graphs and incomplete clusterings hold for any ClusterFunc.
type GraphPartitioner struct {
	// Resolution scales the null model. 1 is plain modularity, larger
	// values yield more and smaller communities.
	Resolution float64
	// Seed fixes the node visiting order so equal inputs give equal output.
	Seed    uint64
	Cluster ClusterFunc
}

func NewGraphPartitioner(cluster ClusterFunc, resolution float64, seed uint64) *GraphPartitioner {
	if resolution <= 0 {
		resolution = 1
	}
	if cluster == nil {
		cluster = Louvain
	}
	return &GraphPartitioner{Resolution: resolution, Seed: seed, Cluster: cluster}
}

func NewLouvainPartitioner(resolution float64, seed uint64) *GraphPartitioner {
	return NewGraphPartitioner(Louvain, resolution, seed)
}

// Partition returns communities as sorted member lists, ordered by their
// smallest member.
//
// No nodes gives no communities. Nodes without any positive edge between
// them each form their own community. If clustering returns nothing, all
// nodes form one community.
func (p *GraphPartitioner) Partition(ctx context.Context, nodes []int64, edges []common.Relationship) ([][]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := common.NormalizeMembers(nodes)
	if len(ids) == 0 {
		return nil, nil
	}

	weights := undirectedWeights(ids, edges)
	if len(weights) == 0 {
		out := make([][]int64, 0, len(ids))
		for _, id := range ids {
			out = append(out, []int64{id})
		}
		return out, nil
	}

	g := simple.NewWeightedUndirectedGraph(0, 0)
	for _, id := range ids {
		g.AddNode(simple.Node(id))
	}
	for k, w := range weights {
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(k.lo), T: simple.Node(k.hi), W: w})
	}

	cluster := p.Cluster
	if cluster == nil {
		cluster = Louvain
	}
	groups := slices.DeleteFunc(cluster(g, p.resolution(), p.Seed), func(c []int64) bool {
		return len(c) == 0
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		logger.Warn("[Community] Clustering returned no communities, using one community", "nodes", len(ids))
		return [][]int64{ids}, nil
	}
	return total(ids, groups), nil
}

func (p *GraphPartitioner) resolution() float64 {
	if p.Resolution <= 0 {
		return 1
	}
	return p.Resolution
}

type undirectedKey struct{ lo, hi int64 }

// undirectedWeights folds directed, labeled edges into one weight per
// unordered node pair. Both stored directions of the same label count once;
// distinct labels add up. Edges to unknown nodes, self loops and
// non-positive weights are dropped.
func undirectedWeights(ids []int64, edges []common.Relationship) map[undirectedKey]float64 {
	type labeled struct {
		undirectedKey
		label string
	}
	perLabel := map[labeled]float64{}
	for _, e := range edges {
		if e.SourceID == e.TargetID || e.Weight <= 0 {
			continue
		}
		if _, ok := slices.BinarySearch(ids, e.SourceID); !ok {
			continue
		}
		if _, ok := slices.BinarySearch(ids, e.TargetID); !ok {
			continue
		}
		k := labeled{undirectedKey: undirectedKey{lo: min(e.SourceID, e.TargetID), hi: max(e.SourceID, e.TargetID)}, label: e.Label}
		perLabel[k] = max(perLabel[k], e.Weight)
	}

	out := make(map[undirectedKey]float64, len(perLabel))
	for k, w := range perLabel {
		out[k.undirectedKey] += w
	}
	return out
}

// total makes groups a disjoint cover of ids: duplicates keep their first
// occurrence and missing ids become singletons. The result is sorted.
func total(ids []int64, groups [][]int64) [][]int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([][]int64, 0, len(groups))
	for _, g := range groups {
		members := make([]int64, 0, len(g))
		for _, id := range common.NormalizeMembers(g) {
			if _, ok := slices.BinarySearch(ids, id); !ok || seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, id)
		}
		if len(members) > 0 {
			out = append(out, members)
		}
	}
	for _, id := range ids {
		if !seen[id] {
			out = append(out, []int64{id})
		}
	}
	slices.SortFunc(out, func(a, b []int64) int {
		return cmp.Compare(a[0], b[0])
	})
	return out
}

// splitMix is a SplitMix64 generator. It satisfies the random source
// interface expected by gonum's community detection.
type splitMix struct{ state uint64 }

func newSplitMix(seed uint64) *splitMix {
	return &splitMix{state: seed}
}

func (s *splitMix) Seed(seed uint64) { s.state = seed }

func (s *splitMix) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
