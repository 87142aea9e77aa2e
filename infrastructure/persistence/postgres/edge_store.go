package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	apperrors "graphmeta-backend/pkg/errors"
)

const edgeColumns = "id, org_id, from_node, to_node, relationship_type, properties, created_at, updated_at, created_by, updated_by, user_agent, client_ip"

// EdgeStore is the PostgreSQL-backed edge store.
type EdgeStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewEdgeStore creates an edge store.
func NewEdgeStore(db *sqlx.DB, logger *zap.Logger) *EdgeStore {
	return &EdgeStore{db: db, logger: logger}
}

var _ ports.EdgeStore = (*EdgeStore)(nil)

// Upsert inserts the edge, or on (id, org_id) conflict replaces every
// non-identity column except the creation audit fields. On return the
// edge holds the persisted row: when the conflict branch ran, the
// creation audit fields are the existing row's, not the caller's.
func (s *EdgeStore) Upsert(ctx context.Context, edge *graph.Edge) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	props, err := marshalProperties(edge.Properties)
	if err != nil {
		return apperrors.NewDatabaseError("upsert edge", err)
	}

	const query = `
		INSERT INTO edges (` + edgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id, org_id) DO UPDATE SET
			from_node         = EXCLUDED.from_node,
			to_node           = EXCLUDED.to_node,
			relationship_type = EXCLUDED.relationship_type,
			properties        = EXCLUDED.properties,
			updated_at        = EXCLUDED.updated_at,
			updated_by        = EXCLUDED.updated_by,
			user_agent        = EXCLUDED.user_agent,
			client_ip         = EXCLUDED.client_ip
		RETURNING ` + edgeColumns

	var row edgeRow
	err = s.db.QueryRowxContext(ctx, query,
		edge.ID, edge.OrgID, edge.FromNode, edge.ToNode, edge.RelationshipType, props,
		edge.CreatedAt, edge.UpdatedAt, edge.CreatedBy, edge.UpdatedBy,
		edge.UserAgent, edge.ClientIP,
	).StructScan(&row)
	if err != nil {
		return apperrors.NewDatabaseError("upsert edge", err)
	}

	persisted, err := row.toEdge()
	if err != nil {
		return apperrors.NewDatabaseError("upsert edge", err)
	}
	*edge = *persisted
	return nil
}

// Get returns the edge identified by (id, org_id).
func (s *EdgeStore) Get(ctx context.Context, orgID, id string) (*graph.Edge, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row edgeRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+edgeColumns+" FROM edges WHERE id = $1 AND org_id = $2", id, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Edge")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get edge", err)
	}
	return row.toEdge()
}

// List returns edges in the org matching the optional filters.
func (s *EdgeStore) List(ctx context.Context, orgID string, filter ports.EdgeFilter) ([]*graph.Edge, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where := []string{"org_id = $1"}
	args := []interface{}{orgID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("relationship_type = $%d", len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("from_node = $%d", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("to_node = $%d", len(args)))
	}

	query := "SELECT " + edgeColumns + " FROM edges WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewDatabaseError("list edges", err)
	}
	return rowsToEdges(rows)
}

// Outgoing returns edges leaving fromNode, optionally restricted to the
// given relationship types.
func (s *EdgeStore) Outgoing(ctx context.Context, orgID, fromNode string, relationshipTypes []string) ([]*graph.Edge, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := "SELECT " + edgeColumns + " FROM edges WHERE org_id = ? AND from_node = ?"
	args := []interface{}{orgID, fromNode}
	if len(relationshipTypes) > 0 {
		query += " AND relationship_type IN (?)"
		args = append(args, relationshipTypes)
	}

	query, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("outgoing edges", err)
	}
	query = s.db.Rebind(query)

	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows, query, expandedArgs...); err != nil {
		return nil, apperrors.NewDatabaseError("outgoing edges", err)
	}
	return rowsToEdges(rows)
}

// Incident returns edges touching nodeID in either direction.
func (s *EdgeStore) Incident(ctx context.Context, orgID, nodeID string) ([]*graph.Edge, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []edgeRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+edgeColumns+" FROM edges WHERE org_id = $1 AND (from_node = $2 OR to_node = $2)",
		orgID, nodeID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("incident edges", err)
	}
	return rowsToEdges(rows)
}

// Delete removes the edge row.
func (s *EdgeStore) Delete(ctx context.Context, orgID, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM edges WHERE id = $1 AND org_id = $2", id, orgID); err != nil {
		return apperrors.NewDatabaseError("delete edge", err)
	}
	return nil
}

// DeleteByIDs removes a batch of edges in a single IN-list statement.
func (s *EdgeStore) DeleteByIDs(ctx context.Context, orgID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query, args, err := sqlx.In("DELETE FROM edges WHERE org_id = ? AND id IN (?)", orgID, ids)
	if err != nil {
		return apperrors.NewDatabaseError("delete edges", err)
	}
	query = s.db.Rebind(query)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseError("delete edges", err)
	}
	return nil
}

// All returns every edge in the org.
func (s *EdgeStore) All(ctx context.Context, orgID string) ([]*graph.Edge, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT "+edgeColumns+" FROM edges WHERE org_id = $1", orgID); err != nil {
		return nil, apperrors.NewDatabaseError("export edges", err)
	}
	return rowsToEdges(rows)
}

func rowsToEdges(rows []edgeRow) ([]*graph.Edge, error) {
	edges := make([]*graph.Edge, 0, len(rows))
	for _, row := range rows {
		edge, err := row.toEdge()
		if err != nil {
			return nil, apperrors.NewDatabaseError("decode edge", err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
