// Package query answers questions against the indexed graph. Global queries
// ground the answer in the community summaries nearest to the question;
// local queries ground it in the relationships of one named entity.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/graphweave/graphrag/pkg/ai"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/logger"
	"github.com/graphweave/graphrag/pkg/store"
)

const (
	NoCommunitiesAnswer = "No relevant communities found."
	NoResponseAnswer    = "No response generated."
	GlobalErrorAnswer   = "Error processing global query."
	LocalErrorAnswer    = "Error processing local query."
)

// EntityNotFoundAnswer is returned by LocalQuery for an unknown entity.
func EntityNotFoundAnswer(entity string) string {
	return fmt.Sprintf("Entity %s not found.", entity)
}

// NoRelationshipsAnswer is returned by LocalQuery for an entity without edges.
func NoRelationshipsAnswer(entity string) string {
	return fmt.Sprintf("No relationships found for %s.", entity)
}

// GraphReader is the read side of the store used by queries.
type GraphReader interface {
	NodeByName(ctx context.Context, name string) (common.Entity, error)
	EdgesTouching(ctx context.Context, id int64) ([]common.Neighbor, error)
	NearestCommunities(ctx context.Context, embedding []float32, k int) ([]common.Community, error)
}

type Engine struct {
	store     GraphReader
	completer ai.Completer
	embedder  ai.Embedder

	k            int
	embeddingDim int
	genOpts      []ai.GenerateOption
}

// EngineParams configures an Engine. K defaults to 3. EmbeddingDim of 0
// accepts any non-empty finite question embedding.
type EngineParams struct {
	Store        GraphReader
	Completer    ai.Completer
	Embedder     ai.Embedder
	K            int
	EmbeddingDim int
	Options      []ai.GenerateOption
}

func NewEngine(params EngineParams) *Engine {
	k := params.K
	if k <= 0 {
		k = 3
	}
	return &Engine{
		store:        params.Store,
		completer:    params.Completer,
		embedder:     params.Embedder,
		k:            k,
		embeddingDim: params.EmbeddingDim,
		genOpts:      params.Options,
	}
}

type queryOptions struct {
	tracer Tracer
}

// QueryOption configures a single query call.
type QueryOption func(*queryOptions)

// WithTracer records the context a query used into t.
func WithTracer(t Tracer) QueryOption {
	return func(o *queryOptions) {
		o.tracer = t
	}
}

func applyQueryOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// GlobalQuery answers question from the summaries of the nearest
// communities. It never fails; collaborator errors are logged and replaced
// by GlobalErrorAnswer.
func (e *Engine) GlobalQuery(ctx context.Context, question string, opts ...QueryOption) string {
	o := applyQueryOptions(opts)

	embedding, err := e.embedder.GenerateEmbedding(ctx, []byte(question))
	if err == nil {
		err = ai.ValidateEmbedding(embedding, e.embeddingDim)
	}
	if err != nil {
		logger.Error("[Query] Failed to embed question", "err", err)
		return GlobalErrorAnswer
	}

	communities, err := e.store.NearestCommunities(ctx, embedding, e.k)
	if err != nil {
		logger.Error("[Query] Failed to fetch nearest communities", "err", err)
		return GlobalErrorAnswer
	}

	summaries := make([]string, 0, len(communities))
	ids := make([]int64, 0, len(communities))
	for _, c := range communities {
		if strings.TrimSpace(c.Summary) == "" {
			continue
		}
		summaries = append(summaries, c.Summary)
		ids = append(ids, c.ID)
	}
	if len(summaries) == 0 {
		return NoCommunitiesAnswer
	}
	RecordCommunityIDs(o.tracer, ids...)
	logger.Debug("[Query] Global context", "communities", ids)

	prompt := fmt.Sprintf(ai.GlobalQueryPrompt, strings.Join(summaries, "\n"), question)
	return e.complete(ctx, prompt, GlobalErrorAnswer)
}

// LocalQuery answers question from the relationships touching entity. The
// entity name must match exactly. It never fails; collaborator errors are
// logged and replaced by LocalErrorAnswer.
func (e *Engine) LocalQuery(ctx context.Context, question, entity string, opts ...QueryOption) string {
	o := applyQueryOptions(opts)

	node, err := e.store.NodeByName(ctx, entity)
	if errors.Is(err, store.ErrNotFound) {
		return EntityNotFoundAnswer(entity)
	}
	if err != nil {
		logger.Error("[Query] Failed to look up entity", "entity", entity, "err", err)
		return LocalErrorAnswer
	}
	RecordQueriedEntityIDs(o.tracer, node.ID)

	neighbors, err := e.store.EdgesTouching(ctx, node.ID)
	if err != nil {
		logger.Error("[Query] Failed to fetch relationships", "entity", entity, "err", err)
		return LocalErrorAnswer
	}
	if len(neighbors) == 0 {
		return NoRelationshipsAnswer(entity)
	}

	lines := make([]string, len(neighbors))
	for i, n := range neighbors {
		lines[i] = n.String()
	}
	RecordRelationships(o.tracer, lines...)

	prompt := fmt.Sprintf(ai.LocalQueryPrompt, strings.Join(lines, "\n"), question)
	return e.complete(ctx, prompt, LocalErrorAnswer)
}

func (e *Engine) complete(ctx context.Context, prompt, errorAnswer string) string {
	answer, err := e.completer.GenerateCompletion(ctx, prompt, e.genOpts...)
	if err != nil {
		logger.Error("[Query] Completion failed", "err", err)
		return errorAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return NoResponseAnswer
	}
	return answer
}
