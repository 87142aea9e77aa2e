package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	apperrors "graphmeta-backend/pkg/errors"
)

// GraphStore answers the combined node/edge query with a single outer
// join, deduplicating both sides by id.
type GraphStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewGraphStore creates a graph store.
func NewGraphStore(db *sqlx.DB, logger *zap.Logger) *GraphStore {
	return &GraphStore{db: db, logger: logger}
}

var _ ports.GraphStore = (*GraphStore)(nil)

// joinedRow scans one row of the nodes LEFT JOIN edges result. Edge
// columns are nullable because nodes without incident edges still match.
type joinedRow struct {
	NodeID         string `db:"node_id"`
	NodeType       string `db:"node_type"`
	NodeProps      string `db:"node_properties"`
	NodeCreatedAt  string `db:"node_created_at"`
	NodeUpdatedAt  string `db:"node_updated_at"`
	NodeCreatedBy  string `db:"node_created_by"`
	NodeUpdatedBy  string `db:"node_updated_by"`

	EdgeID        sql.NullString `db:"edge_id"`
	EdgeFrom      sql.NullString `db:"edge_from"`
	EdgeTo        sql.NullString `db:"edge_to"`
	EdgeRelType   sql.NullString `db:"edge_relationship_type"`
	EdgeProps     sql.NullString `db:"edge_properties"`
	EdgeCreatedAt sql.NullString `db:"edge_created_at"`
	EdgeUpdatedAt sql.NullString `db:"edge_updated_at"`
	EdgeCreatedBy sql.NullString `db:"edge_created_by"`
	EdgeUpdatedBy sql.NullString `db:"edge_updated_by"`
}

// Query runs nodes LEFT JOIN edges on incidence within the org, with
// optional node-type and relationship-type predicates.
func (s *GraphStore) Query(ctx context.Context, orgID string, filter ports.GraphFilter) ([]*graph.Node, []*graph.Edge, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	join := "(n.id = e.from_node OR n.id = e.to_node) AND e.org_id = n.org_id"
	args := []interface{}{orgID}
	if filter.RelationshipType != "" {
		args = append(args, filter.RelationshipType)
		join += fmt.Sprintf(" AND e.relationship_type = $%d", len(args))
	}

	where := []string{"n.org_id = $1"}
	if filter.NodeType != "" {
		args = append(args, filter.NodeType)
		where = append(where, fmt.Sprintf("n.type = $%d", len(args)))
	}

	query := `
		SELECT
			n.id         AS node_id,
			n.type       AS node_type,
			n.properties AS node_properties,
			n.created_at AS node_created_at,
			n.updated_at AS node_updated_at,
			n.created_by AS node_created_by,
			n.updated_by AS node_updated_by,
			e.id                AS edge_id,
			e.from_node         AS edge_from,
			e.to_node           AS edge_to,
			e.relationship_type AS edge_relationship_type,
			e.properties        AS edge_properties,
			e.created_at        AS edge_created_at,
			e.updated_at        AS edge_updated_at,
			e.created_by        AS edge_created_by,
			e.updated_by        AS edge_updated_by
		FROM nodes n
		LEFT JOIN edges e ON ` + join + `
		WHERE ` + strings.Join(where, " AND ")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []joinedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, apperrors.NewDatabaseError("graph query", err)
	}

	seenNodes := make(map[string]struct{})
	seenEdges := make(map[string]struct{})
	var nodes []*graph.Node
	var edges []*graph.Edge

	for _, row := range rows {
		if _, seen := seenNodes[row.NodeID]; !seen {
			seenNodes[row.NodeID] = struct{}{}
			props, err := unmarshalProperties(row.NodeProps)
			if err != nil {
				return nil, nil, apperrors.NewDatabaseError("graph query", err)
			}
			nodes = append(nodes, &graph.Node{
				ID:         row.NodeID,
				OrgID:      orgID,
				Type:       row.NodeType,
				Properties: props,
				CreatedAt:  row.NodeCreatedAt,
				UpdatedAt:  row.NodeUpdatedAt,
				CreatedBy:  row.NodeCreatedBy,
				UpdatedBy:  row.NodeUpdatedBy,
			})
		}

		if !row.EdgeID.Valid {
			continue
		}
		if _, seen := seenEdges[row.EdgeID.String]; seen {
			continue
		}
		seenEdges[row.EdgeID.String] = struct{}{}
		props, err := unmarshalProperties(row.EdgeProps.String)
		if err != nil {
			return nil, nil, apperrors.NewDatabaseError("graph query", err)
		}
		edges = append(edges, &graph.Edge{
			ID:               row.EdgeID.String,
			OrgID:            orgID,
			FromNode:         row.EdgeFrom.String,
			ToNode:           row.EdgeTo.String,
			RelationshipType: row.EdgeRelType.String,
			Properties:       props,
			CreatedAt:        row.EdgeCreatedAt.String,
			UpdatedAt:        row.EdgeUpdatedAt.String,
			CreatedBy:        row.EdgeCreatedBy.String,
			UpdatedBy:        row.EdgeUpdatedBy.String,
		})
	}

	return nodes, edges, nil
}
