package community

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Store is the persistence the community rebuild needs.
type Store interface {
	LoadSnapshot(ctx context.Context) (*common.Snapshot, error)
	Communities(ctx context.Context) ([]common.Community, error)
	ReplaceCommunities(ctx context.Context, communities []common.Community) error
}

// Builder recomputes every community from the current graph.
type Builder struct {
	store       Store
	partitioner Partitioner
	summarizer  *Summarizer
	parallel    int
}

type BuilderParams struct {
	Store       Store
	Partitioner Partitioner
	Summarizer  *Summarizer
	// Parallel bounds concurrent summaries. Defaults to 4.
	Parallel int
}

func NewBuilder(params BuilderParams) *Builder {
	if params.Parallel <= 0 {
		params.Parallel = 4
	}
	return &Builder{
		store:       params.Store,
		partitioner: params.Partitioner,
		summarizer:  params.Summarizer,
		parallel:    params.Parallel,
	}
}

// BuildReport counts the outcome of one rebuild.
type BuildReport struct {
	Nodes       int `json:"nodes"`
	Edges       int `json:"edges"`
	Communities int `json:"communities"`
	Kept        int `json:"kept"`
	Created     int `json:"created"`
	Removed     int `json:"removed"`
	Summarized  int `json:"summarized"`
	Failed      int `json:"failed"`
}

// Rebuild partitions a consistent snapshot of the graph, reconciles ids
// with the stored communities, summarizes each community and stores the
// result as the complete set.
//
// Snapshot, partition and write failures abort the rebuild and leave the
// stored communities untouched. A failed summary is logged and the
// community is stored with its previous summary, or none if it is new.
func (b *Builder) Rebuild(ctx context.Context) (*BuildReport, error) {
	snap, err := b.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	existing, err := b.store.Communities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load communities: %w", err)
	}

	nodeIDs := make([]int64, len(snap.Nodes))
	for i, n := range snap.Nodes {
		nodeIDs[i] = n.ID
	}
	groups, err := b.partitioner.Partition(ctx, nodeIDs, snap.Edges)
	if err != nil {
		return nil, fmt.Errorf("partition graph: %w", err)
	}
	logger.Info("[Community] Partitioned graph", "nodes", len(snap.Nodes), "edges", len(snap.Edges), "communities", len(groups))

	assignments := Reconcile(existing, groups)
	names := snap.NameIndex()
	out := make([]common.Community, len(assignments))

	var summarized, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallel)
	for i, a := range assignments {
		out[i] = common.Community{ID: a.ID, Members: a.Members}
		if a.Previous != nil {
			out[i].Summary = a.Previous.Summary
			out[i].SummaryEmbedding = a.Previous.SummaryEmbedding
		}

		g.Go(func() error {
			members := make([]string, 0, len(a.Members))
			for _, id := range a.Members {
				members = append(members, names[id])
			}
			text, embedding, err := b.summarizer.Summarize(gctx, members, snap)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logger.Warn("[Community] Skipping summary", "community", a.ID, "members", len(members), "err", err)
				return nil
			}
			out[i].Summary = text
			out[i].SummaryEmbedding = embedding
			summarized.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summarize communities: %w", err)
	}

	if err := b.store.ReplaceCommunities(ctx, out); err != nil {
		return nil, fmt.Errorf("store communities: %w", err)
	}

	report := &BuildReport{
		Nodes:       len(snap.Nodes),
		Edges:       len(snap.Edges),
		Communities: len(out),
		Summarized:  int(summarized.Load()),
		Failed:      int(failed.Load()),
	}
	for _, a := range assignments {
		if a.Previous != nil {
			report.Kept++
		} else {
			report.Created++
		}
	}
	report.Removed = len(existing) - report.Kept
	logger.Info("[Community] Stored communities",
		"total", report.Communities, "kept", report.Kept, "created", report.Created,
		"removed", report.Removed, "summary_failures", report.Failed)
	return report, nil
}
