package pgx

import (
	"context"
	"fmt"

	"github.com/graphweave/graphrag/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Communities returns every stored community ordered by id.
func (s *GraphDBStorage) Communities(ctx context.Context) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, nodes, summary, summary_embedding FROM communities ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Community, error) {
		var c common.Community
		var embedding *pgvector.Vector
		if err := row.Scan(&c.ID, &c.Members, &c.Summary, &embedding); err != nil {
			return c, err
		}
		if embedding != nil {
			c.SummaryEmbedding = embedding.Slice()
		}
		return c, nil
	})
}

// ReplaceCommunities makes communities the exact stored set in one
// transaction: rows are upserted by id and every other row is deleted.
func (s *GraphDBStorage) ReplaceCommunities(ctx context.Context, communities []common.Community) error {
	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace communities: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(communities))
	batch := &pgxv5.Batch{}
	for _, c := range communities {
		var embedding *pgvector.Vector
		if len(c.SummaryEmbedding) > 0 {
			v := pgvector.NewVector(c.SummaryEmbedding)
			embedding = &v
		}
		batch.Queue(`
			INSERT INTO communities (id, nodes, summary, summary_embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET nodes = EXCLUDED.nodes,
			    summary = EXCLUDED.summary,
			    summary_embedding = EXCLUDED.summary_embedding
		`, c.ID, common.NormalizeMembers(c.Members), c.Summary, embedding)
		ids = append(ids, c.ID)
	}
	batch.Queue(`DELETE FROM communities WHERE NOT (id = ANY($1))`, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write communities: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit communities: %w", err)
	}
	return nil
}

// NearestCommunities returns up to k summarized communities ordered by
// cosine distance between their summary embedding and embedding.
func (s *GraphDBStorage) NearestCommunities(ctx context.Context, embedding []float32, k int) ([]common.Community, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, nodes, summary
		FROM communities
		WHERE summary_embedding IS NOT NULL
		ORDER BY summary_embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("nearest communities: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Community, error) {
		var c common.Community
		err := row.Scan(&c.ID, &c.Members, &c.Summary)
		return c, err
	})
}
