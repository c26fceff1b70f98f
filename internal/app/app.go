// Package app builds the runtime components shared by the binaries from
// environment configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/ai"
	ollamaai "github.com/graphweave/graphrag/pkg/ai/ollama"
	openaiai "github.com/graphweave/graphrag/pkg/ai/openai"
	"github.com/graphweave/graphrag/pkg/chunk"
	"github.com/graphweave/graphrag/pkg/community"
	"github.com/graphweave/graphrag/pkg/extract"
	"github.com/graphweave/graphrag/pkg/index"
	"github.com/graphweave/graphrag/pkg/loader"
	ioloader "github.com/graphweave/graphrag/pkg/loader/io"
	s3loader "github.com/graphweave/graphrag/pkg/loader/s3"
	"github.com/graphweave/graphrag/pkg/query"
	"github.com/graphweave/graphrag/pkg/runlock"
	"github.com/graphweave/graphrag/pkg/store"
	pgdb "github.com/graphweave/graphrag/pkg/store/pgx"
	"github.com/graphweave/graphrag/pkg/weights"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingDim is the configured vector length, 1536 by default.
func EmbeddingDim() int {
	return int(util.GetEnvNumeric("AI_EMBED_DIM", 1536))
}

// NewAIClient builds the provider client selected by AI_ADAPTER and wraps
// it with retries and embedding validation.
func NewAIClient() (ai.GraphAIClient, error) {
	dim := EmbeddingDim()
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15))

	var inner ai.GraphAIClient
	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		client, err := ollamaai.NewGraphOllamaClient(ollamaai.NewGraphOllamaClientParams{
			EmbeddingModel:   util.GetEnv("AI_EMBED_MODEL"),
			DescriptionModel: util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel:  util.GetEnv("AI_EXTRACT_MODEL"),
			EmbeddingDim:     dim,

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: parallel,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		inner = client
	case "openai":
		inner = openaiai.NewGraphOpenAIClient(openaiai.NewGraphOpenAIClientParams{
			EmbeddingModel:   util.GetEnv("AI_EMBED_MODEL"),
			DescriptionModel: util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel:  util.GetEnv("AI_EXTRACT_MODEL"),
			EmbeddingDim:     dim,

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: parallel,
		})
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}

	return ai.NewRetryingClient(inner, ai.RetryingClientParams{
		MaxAttempts:     int(util.GetEnvNumeric("AI_MAX_ATTEMPTS", 5)),
		InitialInterval: util.GetEnvDuration("AI_BACKOFF_INITIAL", time.Second),
		MaxInterval:     util.GetEnvDuration("AI_BACKOFF_MAX", 30*time.Second),
		AttemptTimeout:  util.GetEnvDuration("AI_TIMEOUT", 2*time.Minute),
		EmbeddingDim:    dim,
	}), nil
}

// OpenStore opens a pool on DATABASE_URL. The embedded migrations run
// first when DB_MIGRATE says so; migrate is the value used when it is unset.
// Read-only binaries pass false.
func OpenStore(ctx context.Context, migrate bool) (*pgxpool.Pool, *pgdb.GraphDBStorage, error) {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if shouldMigrate(migrate) {
		if err := pgdb.Migrate(databaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	pool, err := pgdb.Connect(ctx, databaseURL, int32(util.GetEnvNumeric("DB_MAX_CONNS", 0)))
	if err != nil {
		return nil, nil, err
	}
	return pool, pgdb.NewGraphDBStorageWithConnection(pool), nil
}

func shouldMigrate(defaultOn bool) bool {
	return util.GetEnvBool("DB_MIGRATE", defaultOn)
}

// NewSource reads from AWS_BUCKET under INPUT_S3_PREFIX when a bucket is
// configured, otherwise from INPUT_DIR.
func NewSource(ctx context.Context) (loader.Source, error) {
	suffix := util.GetEnvString("INPUT_SUFFIX", loader.DefaultSuffix)
	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		src, err := s3loader.NewSource(ctx, s3loader.NewSourceParams{
			Bucket:    bucket,
			Prefix:    util.GetEnv("INPUT_S3_PREFIX"),
			Suffix:    suffix,
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := ioloader.NewDirSource(util.GetEnvString("INPUT_DIR", "input"), suffix)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func NewChunker() (chunk.Chunker, error) {
	return chunk.NewChunker(chunk.NewChunkerParams{
		Strategy: util.GetEnv("CHUNK_STRATEGY"),
		Size:     int(util.GetEnvNumeric("CHUNK_SIZE", 0)),
		Overlap:  int(util.GetEnvNumeric("CHUNK_OVERLAP", 0)),
		Encoder:  util.GetEnv("TOKEN_ENCODER"),
	})
}

// NewExtractor returns the LLM extractor, or the gazetteer in
// DICTIONARY_FILE when EXTRACTOR=dictionary.
func NewExtractor(client ai.StructuredCompleter) (extract.Extractor, error) {
	switch kind := util.GetEnvString("EXTRACTOR", "llm"); kind {
	case "llm":
		return extract.NewLLMExtractor(extract.LLMExtractorParams{
			Client:      client,
			EntityTypes: util.GetEnvList("ENTITY_TYPES"),
		}), nil
	case "dictionary":
		path := util.GetEnv("DICTIONARY_FILE")
		if path == "" {
			return nil, fmt.Errorf("EXTRACTOR=dictionary needs DICTIONARY_FILE")
		}
		dict, err := extract.LoadDictionary(path)
		if err != nil {
			return nil, err
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unknown EXTRACTOR %q", kind)
	}
}

func NewBuilder(st community.Store, client ai.GraphAIClient) *community.Builder {
	return community.NewBuilder(community.BuilderParams{
		Store: st,
		Partitioner: community.NewLouvainPartitioner(
			util.GetEnvFloat("COMMUNITY_RESOLUTION", 1),
			uint64(util.GetEnvNumeric("COMMUNITY_SEED", 1)),
		),
		Summarizer: community.NewSummarizer(community.SummarizerParams{
			Completer: client,
			Embedder:  client,
		}),
		Parallel: int(util.GetEnvNumeric("PARALLEL_SUMMARIES", 4)),
	})
}

// NewIndexer wires an Indexer over st. A nil guard falls back to the
// in-process lock.
func NewIndexer(ctx context.Context, st store.GraphStorage, guard runlock.Guard, client ai.GraphAIClient) (*index.Indexer, error) {
	policy, err := weights.ParsePolicy(util.GetEnv("EDGE_WEIGHT_POLICY"))
	if err != nil {
		return nil, err
	}
	source, err := NewSource(ctx)
	if err != nil {
		return nil, err
	}
	chunker, err := NewChunker()
	if err != nil {
		return nil, err
	}
	extractor, err := NewExtractor(client)
	if err != nil {
		return nil, err
	}
	return index.NewIndexer(index.IndexerParams{
		Store:             st,
		Source:            source,
		Chunker:           chunker,
		Extractor:         extractor,
		Embedder:          client,
		Builder:           NewBuilder(st, client),
		Guard:             guard,
		Policy:            policy,
		ParallelDocuments: int(util.GetEnvNumeric("PARALLEL_DOCUMENTS", 2)),
		ParallelChunks:    int(util.GetEnvNumeric("PARALLEL_CHUNKS", 4)),
		EmbeddingDim:      EmbeddingDim(),
	})
}

// NewLeaseGuard holds the index lock in Postgres so runs from separate
// processes exclude each other.
func NewLeaseGuard(pool *pgxpool.Pool) runlock.Guard {
	return runlock.New(pool, runlock.Options{
		TTL:         util.GetEnvDuration("INDEX_LOCK_TTL", 5*time.Minute),
		Wait:        util.GetEnvBool("INDEX_LOCK_WAIT", false),
		WaitJitter:  250 * time.Millisecond,
		TokenPrefix: "indexer",
	})
}

func NewQueryEngine(st query.GraphReader, client ai.GraphAIClient) *query.Engine {
	return query.NewEngine(query.EngineParams{
		Store:        st,
		Completer:    client,
		Embedder:     client,
		K:            int(util.GetEnvNumeric("GLOBAL_QUERY_K", 3)),
		EmbeddingDim: EmbeddingDim(),
	})
}
