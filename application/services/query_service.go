package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
)

// QueryService answers single-join graph queries: nodes with their
// incident edges, filtered in one pass.
type QueryService struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewQueryService creates a query service.
func NewQueryService(store ports.GraphStore, logger *zap.Logger) *QueryService {
	return &QueryService{store: store, logger: logger}
}

// QueryMetadata summarizes a query's result set.
type QueryMetadata struct {
	TotalNodes  int    `json:"total_nodes"`
	TotalEdges  int    `json:"total_edges"`
	QueryTimeMS int64  `json:"query_time_ms"`
	OrgID       string `json:"org_id"`
}

// QueryResult is the full response of a graph query.
type QueryResult struct {
	Nodes    []*graph.Node `json:"nodes"`
	Edges    []*graph.Edge `json:"edges"`
	Metadata QueryMetadata `json:"metadata"`
}

// Query runs the joined node/edge query and wraps the result with
// timing metadata.
func (s *QueryService) Query(ctx context.Context, orgID string, filter ports.GraphFilter) (*QueryResult, error) {
	start := time.Now()

	nodes, edges, err := s.store.Query(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.logger.Debug("Graph query completed",
		zap.String("orgID", orgID),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.Duration("elapsed", elapsed),
	)

	return &QueryResult{
		Nodes: nodes,
		Edges: edges,
		Metadata: QueryMetadata{
			TotalNodes:  len(nodes),
			TotalEdges:  len(edges),
			QueryTimeMS: elapsed.Milliseconds(),
			OrgID:       orgID,
		},
	}, nil
}
