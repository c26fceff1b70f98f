package store

import (
	"context"
	"errors"

	"github.com/graphweave/graphrag/pkg/common"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrSchemaMissing is returned by ValidateSchema when required tables or
	// extensions are absent. It is fatal at startup.
	ErrSchemaMissing = errors.New("required schema objects missing")
)

// GraphStorage defines the interface for persisting and querying the
// knowledge graph: documents and their chunks, entity nodes, weighted edges
// and communities.
//
// Implementations must make UpsertNode and UpsertEdge atomic per call so
// that concurrent writers never lose increments or create duplicate rows,
// read LoadSnapshot within a single transaction, and apply
// ReplaceCommunities all-or-nothing.
type GraphStorage interface {
	ValidateSchema(ctx context.Context) error

	RegisterDocument(ctx context.Context, path string) (common.Document, error)
	PendingDocuments(ctx context.Context) ([]common.Document, error)
	MarkDocumentProcessed(ctx context.Context, id int64) error

	SaveChunk(ctx context.Context, chunk common.Chunk) (int64, error)
	LinkChunkEntities(ctx context.Context, chunkID int64, entityIDs []int64) error
	SharedChunkCount(ctx context.Context, a, b int64) (int, error)

	UpsertNode(ctx context.Context, name, typ string) (int64, error)
	UpsertEdge(ctx context.Context, rel common.Relationship, mode common.EdgeMode) error
	LoadSnapshot(ctx context.Context) (*common.Snapshot, error)

	NodeByName(ctx context.Context, name string) (common.Entity, error)
	EdgesTouching(ctx context.Context, id int64) ([]common.Neighbor, error)

	Communities(ctx context.Context) ([]common.Community, error)
	ReplaceCommunities(ctx context.Context, communities []common.Community) error
	NearestCommunities(ctx context.Context, embedding []float32, k int) ([]common.Community, error)
}
