package ports

import (
	"context"

	"graphmeta-backend/domain/graph"
)

// NodeFilter narrows a node list query. Zero values mean "no filter".
type NodeFilter struct {
	Type      string
	CreatedBy string
	UpdatedBy string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// EdgeFilter narrows an edge list query.
type EdgeFilter struct {
	Type  string
	From  string
	To    string
	Limit int
}

// GraphFilter narrows the combined node/edge query.
type GraphFilter struct {
	NodeType         string
	RelationshipType string
	Limit            int
}

// NodeStore is the durable store for nodes. All operations are scoped by
// org; implementations must never return rows from another org.
type NodeStore interface {
	// Upsert inserts the node or, on (id, org_id) conflict, replaces all
	// non-identity columns except created_at and created_by. On return
	// the node holds the persisted row, so a conflicting write sees the
	// existing creation audit fields, not its own.
	Upsert(ctx context.Context, node *graph.Node) error
	// Get returns the node or a not-found AppError.
	Get(ctx context.Context, orgID, id string) (*graph.Node, error)
	// List returns a filtered page of nodes and the total count matching
	// the same predicates.
	List(ctx context.Context, orgID string, filter NodeFilter) ([]*graph.Node, int, error)
	// Delete removes the node row. Deleting an absent row is not an error.
	Delete(ctx context.Context, orgID, id string) error
	// All returns every node in the org, for export.
	All(ctx context.Context, orgID string) ([]*graph.Node, error)
}

// EdgeStore is the durable store for edges.
type EdgeStore interface {
	// Upsert follows the NodeStore.Upsert contract: on return the edge
	// holds the persisted row.
	Upsert(ctx context.Context, edge *graph.Edge) error
	Get(ctx context.Context, orgID, id string) (*graph.Edge, error)
	List(ctx context.Context, orgID string, filter EdgeFilter) ([]*graph.Edge, error)
	// Outgoing returns edges leaving fromNode, optionally restricted to
	// the given relationship types.
	Outgoing(ctx context.Context, orgID, fromNode string, relationshipTypes []string) ([]*graph.Edge, error)
	// Incident returns edges touching nodeID in either direction.
	Incident(ctx context.Context, orgID, nodeID string) ([]*graph.Edge, error)
	Delete(ctx context.Context, orgID, id string) error
	// DeleteByIDs removes a batch of edges in a single statement.
	DeleteByIDs(ctx context.Context, orgID string, ids []string) error
	All(ctx context.Context, orgID string) ([]*graph.Edge, error)
}

// GraphStore answers the combined query: nodes joined with their incident
// edges, deduplicated by id.
type GraphStore interface {
	Query(ctx context.Context, orgID string, filter GraphFilter) ([]*graph.Node, []*graph.Edge, error)
}

// NodeCache is the read-through cache for individual nodes. It is
// best-effort: implementations signal absence, not staleness.
type NodeCache interface {
	Get(ctx context.Context, orgID, id string) (*graph.Node, bool, error)
	Set(ctx context.Context, node *graph.Node) error
	Delete(ctx context.Context, orgID, id string) error
}

// SnapshotStore persists org export snapshots as blobs.
type SnapshotStore interface {
	Put(ctx context.Context, key string, blob []byte, metadata map[string]string) error
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex holds edge vectors keyed by edge id.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}
