// Package index runs the write path: register documents, turn each pending
// document into chunks, entities and weighted edges, then rebuild the
// communities over the finished graph.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/ai"
	"github.com/graphweave/graphrag/pkg/catalog"
	"github.com/graphweave/graphrag/pkg/chunk"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/community"
	"github.com/graphweave/graphrag/pkg/extract"
	"github.com/graphweave/graphrag/pkg/loader"
	"github.com/graphweave/graphrag/pkg/logger"
	"github.com/graphweave/graphrag/pkg/runlock"
	"github.com/graphweave/graphrag/pkg/store"
	"github.com/graphweave/graphrag/pkg/weights"

	"golang.org/x/sync/errgroup"
)

// Indexer runs indexing passes. A single Indexer may run repeatedly; the
// entity catalog and the weight aggregators are created per run.
type Indexer struct {
	store     store.GraphStorage
	source    loader.Source
	chunker   chunk.Chunker
	extractor extract.Extractor
	embedder  ai.Embedder
	builder   *community.Builder
	guard     runlock.Guard

	policy            weights.Policy
	parallelDocuments int
	parallelChunks    int
	embeddingDim      int
}

// IndexerParams configures an Indexer. Guard defaults to an in-process
// lock. ParallelDocuments defaults to 2 and ParallelChunks to 4.
type IndexerParams struct {
	Store     store.GraphStorage
	Source    loader.Source
	Chunker   chunk.Chunker
	Extractor extract.Extractor
	Embedder  ai.Embedder
	Builder   *community.Builder
	Guard     runlock.Guard

	Policy            weights.Policy
	ParallelDocuments int
	ParallelChunks    int
	EmbeddingDim      int
}

func NewIndexer(params IndexerParams) (*Indexer, error) {
	if params.Policy == "" {
		params.Policy = weights.PolicyCooccurrence
	}
	if _, err := weights.NewAggregator(params.Policy); err != nil {
		return nil, err
	}
	if params.Store == nil || params.Source == nil || params.Chunker == nil ||
		params.Extractor == nil || params.Embedder == nil || params.Builder == nil {
		return nil, errors.New("indexer: store, source, chunker, extractor, embedder and builder are required")
	}
	if params.Guard == nil {
		params.Guard = runlock.NewLocal()
	}
	if params.ParallelDocuments <= 0 {
		params.ParallelDocuments = 2
	}
	if params.ParallelChunks <= 0 {
		params.ParallelChunks = 4
	}
	return &Indexer{
		store:             params.Store,
		source:            params.Source,
		chunker:           params.Chunker,
		extractor:         params.Extractor,
		embedder:          params.Embedder,
		builder:           params.Builder,
		guard:             params.Guard,
		policy:            params.Policy,
		parallelDocuments: params.ParallelDocuments,
		parallelChunks:    params.ParallelChunks,
		embeddingDim:      params.EmbeddingDim,
	}, nil
}

// RunReport summarizes one indexing run.
type RunReport struct {
	RunID         string                 `json:"run_id"`
	Registered    int                    `json:"registered"`
	Processed     int                    `json:"processed"`
	Failed        int                    `json:"failed"`
	Chunks        int                    `json:"chunks"`
	SkippedChunks int                    `json:"skipped_chunks"`
	Entities      int                    `json:"entities"`
	EdgeWrites    int                    `json:"edge_writes"`
	Communities   *community.BuildReport `json:"communities"`
	DurationMs    int64                  `json:"duration_ms"`
}

// Run validates the schema, then indexes every pending document and
// rebuilds the communities while holding the index lock.
//
// A document that fails stays pending and is retried by the next run. A
// chunk whose extraction or embedding fails is logged and skipped. Schema,
// listing, snapshot, partition and community write failures abort the run;
// rows committed before the failure are kept.
func (i *Indexer) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{RunID: util.NewRunID()}

	if err := i.store.ValidateSchema(ctx); err != nil {
		return nil, err
	}

	err := i.guard.WithLease(ctx, runlock.IndexKey, func(ctx context.Context) error {
		return i.run(ctx, report)
	})
	report.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return report, fmt.Errorf("index run %s: %w", report.RunID, err)
	}
	logger.Info("[Index] Run finished", "run", report.RunID, "processed", report.Processed,
		"failed", report.Failed, "entities", report.Entities, "duration_ms", report.DurationMs)
	return report, nil
}

func (i *Indexer) run(ctx context.Context, report *RunReport) error {
	paths, err := i.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, p := range paths {
		if _, err := i.store.RegisterDocument(ctx, p); err != nil {
			return fmt.Errorf("register %s: %w", p, err)
		}
	}
	report.Registered = len(paths)

	pending, err := i.store.PendingDocuments(ctx)
	if err != nil {
		return fmt.Errorf("pending documents: %w", err)
	}
	logger.Info("[Index] Starting run", "run", report.RunID, "registered", len(paths), "pending", len(pending), "policy", i.policy)

	cat := catalog.New(i.store)
	var progress util.ProgressCounter
	progress.SetTotal(len(pending))

	var processed, failed, chunks, skipped, edgeWrites atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelDocuments)
	for _, doc := range pending {
		g.Go(func() error {
			progress.Start()
			stats, err := i.processDocument(gctx, doc, cat)
			if err != nil {
				progress.Finish(false)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logger.Error("[Index] Document failed", "run", report.RunID, "path", doc.Path, "err", err)
				return nil
			}
			progress.Finish(true)
			processed.Add(1)
			chunks.Add(int64(stats.chunks))
			skipped.Add(int64(stats.skipped))
			edgeWrites.Add(int64(stats.edgeWrites))
			p := progress.Progress()
			logger.Info("[Index] Document processed", "run", report.RunID, "path", doc.Path,
				"chunks", stats.chunks, "skipped", stats.skipped, "progress", p.Percentage)
			return nil
		})
	}
	waitErr := g.Wait()

	report.Processed = int(processed.Load())
	report.Failed = int(failed.Load())
	report.Chunks = int(chunks.Load())
	report.SkippedChunks = int(skipped.Load())
	report.EdgeWrites = int(edgeWrites.Load())
	report.Entities = cat.Len()
	if waitErr != nil {
		return waitErr
	}

	build, err := i.builder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild communities: %w", err)
	}
	report.Communities = build
	return nil
}

type documentStats struct {
	chunks     int
	skipped    int
	edgeWrites int
}

// processDocument indexes one document. Every chunk is linked and the
// document's edge weights are written before it is marked processed.
func (i *Indexer) processDocument(ctx context.Context, doc common.Document, cat *catalog.Catalog) (documentStats, error) {
	var stats documentStats

	raw, err := i.source.Read(ctx, doc.Path)
	if err != nil {
		return stats, fmt.Errorf("read: %w", err)
	}
	texts, err := i.chunker.Chunk(string(raw))
	if err != nil {
		return stats, fmt.Errorf("chunk: %w", err)
	}
	if len(texts) == 0 {
		logger.Warn("[Index] Document has no chunks", "path", doc.Path)
		return stats, i.store.MarkDocumentProcessed(ctx, doc.ID)
	}

	agg, err := weights.NewAggregator(i.policy)
	if err != nil {
		return stats, err
	}

	var skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelChunks)
	for n, text := range texts {
		g.Go(func() error {
			ok, err := i.processChunk(gctx, doc, n, text, cat, agg)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", n, err)
			}
			if !ok {
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	deltas, err := agg.Flush(ctx, i.store)
	if err != nil {
		return stats, err
	}
	if err := weights.Apply(ctx, i.store, deltas); err != nil {
		return stats, err
	}
	if err := i.store.MarkDocumentProcessed(ctx, doc.ID); err != nil {
		return stats, fmt.Errorf("mark processed: %w", err)
	}

	stats.chunks = len(texts)
	stats.skipped = int(skipped.Load())
	stats.edgeWrites = len(deltas)
	return stats, nil
}

// processChunk extracts, embeds, stores and links one chunk. It returns
// false without an error when the chunk was skipped.
func (i *Indexer) processChunk(
	ctx context.Context,
	doc common.Document,
	n int,
	text string,
	cat *catalog.Catalog,
	agg *weights.Aggregator,
) (bool, error) {
	res, err := i.extractor.Extract(ctx, doc.Path, text)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		reason := "error"
		if errors.Is(err, extract.ErrMalformedResponse) {
			reason = "malformed_response"
		}
		logger.Warn("[Index] Skipping chunk, extraction failed", "path", doc.Path, "chunk", n, "reason", reason, "err", err)
		return false, nil
	}

	embedding, err := i.embedder.GenerateEmbedding(ctx, []byte(text))
	if err == nil {
		err = ai.ValidateEmbedding(embedding, i.embeddingDim)
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Warn("[Index] Skipping chunk, embedding failed", "path", doc.Path, "chunk", n, "err", err)
		return false, nil
	}

	chunkID, err := i.store.SaveChunk(ctx, common.Chunk{DocumentID: doc.ID, Text: text, Embedding: embedding})
	if err != nil {
		return false, fmt.Errorf("save: %w", err)
	}

	ids := make([]int64, 0, len(res.Entities))
	byName := make(map[string]int64, len(res.Entities))
	for _, e := range res.Entities {
		id, err := cat.Resolve(ctx, e.Name, e.Type)
		if err != nil {
			return false, fmt.Errorf("resolve %q: %w", e.Name, err)
		}
		byName[e.Name] = id
		ids = append(ids, id)
	}
	if err := i.store.LinkChunkEntities(ctx, chunkID, ids); err != nil {
		return false, fmt.Errorf("link entities: %w", err)
	}

	relations := make([]weights.ResolvedRelation, 0, len(res.Relations))
	for _, r := range res.Relations {
		relations = append(relations, weights.ResolvedRelation{
			SourceID: byName[r.Source],
			TargetID: byName[r.Target],
			Label:    r.Label,
		})
	}
	agg.ObserveChunk(ids, relations)
	logger.Debug("[Index] Chunk linked", "path", doc.Path, "chunk", n, "entities", len(ids), "relations", len(relations))
	return true, nil
}
