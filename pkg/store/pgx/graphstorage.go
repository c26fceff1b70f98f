package pgx

import (
	"context"
	"fmt"
	"slices"

	"github.com/graphweave/graphrag/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	BeginTx(ctx context.Context, txOptions pgxv5.TxOptions) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage using PostgreSQL with
// pgvector for vector similarity search. Single-row writes rely on
// INSERT ... ON CONFLICT so concurrent writers stay consistent without
// client-side locking.
type GraphDBStorage struct {
	conn pgxIConn
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing connection or pool. The pgvector types must already be
// registered on the connection (see Connect).
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

// Connect opens a pool against databaseURL with the pgvector types
// registered on every connection.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

var requiredTables = []string{"documents", "nodes", "edges", "chunks", "chunk_entities", "communities"}

// ValidateSchema checks that every required table and the vector
// extension exist.
func (s *GraphDBStorage) ValidateSchema(ctx context.Context) error {
	rows, err := s.conn.Query(ctx, `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = ANY($1)
	`, requiredTables)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	found, err := pgxv5.CollectRows(rows, pgxv5.RowTo[string])
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	missing := make([]string, 0)
	for _, t := range requiredTables {
		if !slices.Contains(found, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: tables %v", store.ErrSchemaMissing, missing)
	}

	var hasVector bool
	if err := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`,
	).Scan(&hasVector); err != nil {
		return fmt.Errorf("check vector extension: %w", err)
	}
	if !hasVector {
		return fmt.Errorf("%w: extension vector", store.ErrSchemaMissing)
	}
	return nil
}
