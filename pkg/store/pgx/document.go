package pgx

import (
	"context"
	"fmt"

	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// RegisterDocument inserts path if it is not known yet and returns the
// stored document either way.
func (s *GraphDBStorage) RegisterDocument(ctx context.Context, path string) (common.Document, error) {
	var d common.Document
	err := s.conn.QueryRow(ctx, `
		INSERT INTO documents (path) VALUES ($1)
		ON CONFLICT (path) DO UPDATE SET path = EXCLUDED.path
		RETURNING id, path, processed
	`, path).Scan(&d.ID, &d.Path, &d.Processed)
	if err != nil {
		return common.Document{}, fmt.Errorf("register document %s: %w", path, err)
	}
	return d, nil
}

func (s *GraphDBStorage) PendingDocuments(ctx context.Context) ([]common.Document, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, path, processed FROM documents WHERE NOT processed ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("pending documents: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Document, error) {
		var d common.Document
		err := row.Scan(&d.ID, &d.Path, &d.Processed)
		return d, err
	})
}

func (s *GraphDBStorage) MarkDocumentProcessed(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, `UPDATE documents SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark document %d processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// SaveChunk stores chunk text and its embedding. A nil embedding is stored
// as NULL.
func (s *GraphDBStorage) SaveChunk(ctx context.Context, chunk common.Chunk) (int64, error) {
	var embedding *pgvector.Vector
	if len(chunk.Embedding) > 0 {
		v := pgvector.NewVector(chunk.Embedding)
		embedding = &v
	}

	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO chunks (document_id, text, embedding) VALUES ($1, $2, $3)
		RETURNING id
	`, chunk.DocumentID, util.SanitizePostgresText(chunk.Text), embedding).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save chunk for document %d: %w", chunk.DocumentID, err)
	}
	return id, nil
}

func (s *GraphDBStorage) LinkChunkEntities(ctx context.Context, chunkID int64, entityIDs []int64) error {
	if len(entityIDs) == 0 {
		return nil
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO chunk_entities (chunk_id, entity_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`, chunkID, entityIDs)
	if err != nil {
		return fmt.Errorf("link chunk %d: %w", chunkID, err)
	}
	return nil
}

// SharedChunkCount returns the number of chunks linked to both a and b.
func (s *GraphDBStorage) SharedChunkCount(ctx context.Context, a, b int64) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, `
		SELECT count(*)
		FROM chunk_entities x
		JOIN chunk_entities y ON x.chunk_id = y.chunk_id
		WHERE x.entity_id = $1 AND y.entity_id = $2
	`, a, b).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("shared chunks %d/%d: %w", a, b, err)
	}
	return n, nil
}
