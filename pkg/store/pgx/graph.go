package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// UpsertNode returns the id of the node named name, creating it when
// absent. The unique constraint on nodes.name keeps one row per name even
// under concurrent callers.
func (s *GraphDBStorage) UpsertNode(ctx context.Context, name, typ string) (int64, error) {
	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO nodes (name, type) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET type = EXCLUDED.type
		RETURNING id
	`, util.SanitizePostgresText(name), util.SanitizePostgresText(typ)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert node %q: %w", name, err)
	}
	return id, nil
}

const upsertEdgeAddSQL = `
INSERT INTO edges (source_id, target_id, relationship, weight) VALUES ($1, $2, $3, $4)
ON CONFLICT (source_id, target_id, relationship)
DO UPDATE SET weight = edges.weight + EXCLUDED.weight
`

const upsertEdgeReplaceSQL = `
INSERT INTO edges (source_id, target_id, relationship, weight) VALUES ($1, $2, $3, $4)
ON CONFLICT (source_id, target_id, relationship)
DO UPDATE SET weight = EXCLUDED.weight
`

// UpsertEdge writes one directed edge row. EdgeAdd increments the stored
// weight in the same statement, so concurrent increments are never lost.
func (s *GraphDBStorage) UpsertEdge(ctx context.Context, rel common.Relationship, mode common.EdgeMode) error {
	if rel.SourceID == rel.TargetID {
		return fmt.Errorf("upsert edge: self loop on node %d", rel.SourceID)
	}

	var sql string
	switch mode {
	case common.EdgeAdd:
		sql = upsertEdgeAddSQL
	case common.EdgeReplace:
		sql = upsertEdgeReplaceSQL
	default:
		return fmt.Errorf("upsert edge: unknown mode %d", mode)
	}

	if _, err := s.conn.Exec(ctx, sql, rel.SourceID, rel.TargetID, rel.Label, rel.Weight); err != nil {
		return fmt.Errorf("upsert edge %d->%d (%s, %s): %w", rel.SourceID, rel.TargetID, rel.Label, mode, err)
	}
	return nil
}

// LoadSnapshot reads every node and edge inside one read-only repeatable
// read transaction, so both lists reflect the same point in time.
func (s *GraphDBStorage) LoadSnapshot(ctx context.Context) (*common.Snapshot, error) {
	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{
		IsoLevel:   pgxv5.RepeatableRead,
		AccessMode: pgxv5.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id, name, type FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot nodes: %w", err)
	}
	nodes, err := pgxv5.CollectRows(rows, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("snapshot nodes: %w", err)
	}

	rows, err = tx.Query(ctx, `
		SELECT source_id, target_id, relationship, weight
		FROM edges
		ORDER BY source_id, target_id, relationship
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot edges: %w", err)
	}
	edges, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Relationship, error) {
		var r common.Relationship
		err := row.Scan(&r.SourceID, &r.TargetID, &r.Label, &r.Weight)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot edges: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return &common.Snapshot{Nodes: nodes, Edges: edges}, nil
}

func scanEntity(row pgxv5.CollectableRow) (common.Entity, error) {
	var e common.Entity
	err := row.Scan(&e.ID, &e.Name, &e.Type)
	return e, err
}

// NodeByName looks up a node by exact name, cleaned the same way
// UpsertNode cleans it.
func (s *GraphDBStorage) NodeByName(ctx context.Context, name string) (common.Entity, error) {
	var e common.Entity
	err := s.conn.QueryRow(ctx, `SELECT id, name, type FROM nodes WHERE name = $1`, util.SanitizePostgresText(name)).
		Scan(&e.ID, &e.Name, &e.Type)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return common.Entity{}, fmt.Errorf("node %q: %w", name, store.ErrNotFound)
		}
		return common.Entity{}, fmt.Errorf("node %q: %w", name, err)
	}
	return e, nil
}

// EdgesTouching returns every edge with id as either endpoint, strongest
// first.
func (s *GraphDBStorage) EdgesTouching(ctx context.Context, id int64) ([]common.Neighbor, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT n1.name, n2.name, e.relationship, e.weight
		FROM edges e
		JOIN nodes n1 ON e.source_id = n1.id
		JOIN nodes n2 ON e.target_id = n2.id
		WHERE e.source_id = $1 OR e.target_id = $1
		ORDER BY e.weight DESC, n1.name, n2.name, e.relationship
	`, id)
	if err != nil {
		return nil, fmt.Errorf("edges of node %d: %w", id, err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Neighbor, error) {
		var n common.Neighbor
		err := row.Scan(&n.SourceName, &n.TargetName, &n.Label, &n.Weight)
		return n, err
	})
}
