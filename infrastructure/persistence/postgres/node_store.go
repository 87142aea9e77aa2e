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

const nodeColumns = "id, org_id, type, properties, created_at, updated_at, created_by, updated_by, user_agent, client_ip"

// sortableNodeColumns whitelists sort_by values; anything else falls
// back to created_at.
var sortableNodeColumns = map[string]string{
	"id":         "id",
	"type":       "type",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"created_by": "created_by",
	"updated_by": "updated_by",
}

// NodeStore is the PostgreSQL-backed node store.
type NodeStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewNodeStore creates a node store.
func NewNodeStore(db *sqlx.DB, logger *zap.Logger) *NodeStore {
	return &NodeStore{db: db, logger: logger}
}

var _ ports.NodeStore = (*NodeStore)(nil)

// Upsert inserts the node, or on (id, org_id) conflict replaces every
// non-identity column except the creation audit fields. On return the
// node holds the persisted row: when the conflict branch ran, the
// creation audit fields are the existing row's, not the caller's.
func (s *NodeStore) Upsert(ctx context.Context, node *graph.Node) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	props, err := marshalProperties(node.Properties)
	if err != nil {
		return apperrors.NewDatabaseError("upsert node", err)
	}

	const query = `
		INSERT INTO nodes (` + nodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id, org_id) DO UPDATE SET
			type       = EXCLUDED.type,
			properties = EXCLUDED.properties,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by,
			user_agent = EXCLUDED.user_agent,
			client_ip  = EXCLUDED.client_ip
		RETURNING ` + nodeColumns

	var row nodeRow
	err = s.db.QueryRowxContext(ctx, query,
		node.ID, node.OrgID, node.Type, props,
		node.CreatedAt, node.UpdatedAt, node.CreatedBy, node.UpdatedBy,
		node.UserAgent, node.ClientIP,
	).StructScan(&row)
	if err != nil {
		return apperrors.NewDatabaseError("upsert node", err)
	}

	persisted, err := row.toNode()
	if err != nil {
		return apperrors.NewDatabaseError("upsert node", err)
	}
	*node = *persisted
	return nil
}

// Get returns the node identified by (id, org_id).
func (s *NodeStore) Get(ctx context.Context, orgID, id string) (*graph.Node, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row nodeRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+nodeColumns+" FROM nodes WHERE id = $1 AND org_id = $2", id, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Node")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get node", err)
	}

	node, err := row.toNode()
	if err != nil {
		return nil, apperrors.NewDatabaseError("get node", err)
	}
	return node, nil
}

// List returns a filtered, sorted page of nodes plus the total count
// matching the same predicates.
func (s *NodeStore) List(ctx context.Context, orgID string, filter ports.NodeFilter) ([]*graph.Node, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where := []string{"org_id = $1"}
	args := []interface{}{orgID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.UpdatedBy != "" {
		args = append(args, filter.UpdatedBy)
		where = append(where, fmt.Sprintf("updated_by = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM nodes WHERE "+whereClause, args...); err != nil {
		return nil, 0, apperrors.NewDatabaseError("count nodes", err)
	}

	sortColumn, ok := sortableNodeColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "ASC") {
		sortOrder = "ASC"
	}

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(
		"SELECT "+nodeColumns+" FROM nodes WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		whereClause, sortColumn, sortOrder, limitPos, offsetPos,
	)

	var rows []nodeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperrors.NewDatabaseError("list nodes", err)
	}

	nodes := make([]*graph.Node, 0, len(rows))
	for _, row := range rows {
		node, err := row.toNode()
		if err != nil {
			return nil, 0, apperrors.NewDatabaseError("list nodes", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, total, nil
}

// Delete removes the node row. Absent rows are not an error; callers
// check existence beforehand when they need a 404.
func (s *NodeStore) Delete(ctx context.Context, orgID, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM nodes WHERE id = $1 AND org_id = $2", id, orgID); err != nil {
		return apperrors.NewDatabaseError("delete node", err)
	}
	return nil
}

// All returns every node in the org.
func (s *NodeStore) All(ctx context.Context, orgID string) ([]*graph.Node, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []nodeRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT "+nodeColumns+" FROM nodes WHERE org_id = $1", orgID); err != nil {
		return nil, apperrors.NewDatabaseError("export nodes", err)
	}

	nodes := make([]*graph.Node, 0, len(rows))
	for _, row := range rows {
		node, err := row.toNode()
		if err != nil {
			return nil, apperrors.NewDatabaseError("export nodes", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
