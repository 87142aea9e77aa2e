package services

import (
	"context"

	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	apperrors "graphmeta-backend/pkg/errors"
)

// DefaultMaxDepth bounds traversals when the request does not set one.
const DefaultMaxDepth = 3

// TraversalService walks the directed graph depth-first from a start
// node, collecting the nodes, edges and root-to-cutoff paths it visits.
type TraversalService struct {
	nodes  ports.NodeStore
	edges  ports.EdgeStore
	logger *zap.Logger
}

// NewTraversalService creates a traversal service.
func NewTraversalService(nodes ports.NodeStore, edges ports.EdgeStore, logger *zap.Logger) *TraversalService {
	return &TraversalService{nodes: nodes, edges: edges, logger: logger}
}

// TraversalInput is the body of a traversal request.
type TraversalInput struct {
	StartNode         string   `json:"start_node" validate:"required"`
	MaxDepth          int      `json:"max_depth,omitempty" validate:"omitempty,gt=0"`
	RelationshipTypes []string `json:"relationship_types,omitempty"`
}

// TraversalMetadata summarizes a traversal's result set.
type TraversalMetadata struct {
	OrgID             string   `json:"org_id"`
	StartNode         string   `json:"start_node"`
	MaxDepth          int      `json:"max_depth"`
	RelationshipTypes []string `json:"relationship_types,omitempty"`
	TotalNodes        int      `json:"total_nodes"`
	TotalEdges        int      `json:"total_edges"`
	TotalPaths        int      `json:"total_paths"`
}

// TraversalResult is the full response of a traversal.
type TraversalResult struct {
	Nodes    []*graph.Node     `json:"nodes"`
	Edges    []*graph.Edge     `json:"edges"`
	Paths    [][]string        `json:"paths"`
	Metadata TraversalMetadata `json:"metadata"`
}

// walkState carries the working set of one traversal. A traversal is
// request-local and sequential, so no locking is needed.
type walkState struct {
	visited  map[string]struct{}
	relTypes []string
	maxDepth int
	nodes    []*graph.Node
	edges    []*graph.Edge
	paths    [][]string
}

// Traverse walks outgoing edges from the start node up to maxDepth hops.
// Nodes are expanded at most once; paths are recorded where the walk is
// cut off by depth, a revisit, or a dead end.
func (s *TraversalService) Traverse(ctx context.Context, orgID string, in TraversalInput) (*TraversalResult, error) {
	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	if _, err := s.nodes.Get(ctx, orgID, in.StartNode); err != nil {
		return nil, err
	}

	st := &walkState{
		visited:  make(map[string]struct{}),
		relTypes: in.RelationshipTypes,
		maxDepth: maxDepth,
		nodes:    []*graph.Node{},
		edges:    []*graph.Edge{},
		paths:    [][]string{},
	}
	if err := s.walk(ctx, orgID, in.StartNode, 0, []string{in.StartNode}, st); err != nil {
		return nil, err
	}

	s.logger.Debug("Traversal completed",
		zap.String("orgID", orgID),
		zap.String("startNode", in.StartNode),
		zap.Int("nodes", len(st.nodes)),
		zap.Int("edges", len(st.edges)),
		zap.Int("paths", len(st.paths)),
	)

	return &TraversalResult{
		Nodes: st.nodes,
		Edges: st.edges,
		Paths: st.paths,
		Metadata: TraversalMetadata{
			OrgID:             orgID,
			StartNode:         in.StartNode,
			MaxDepth:          maxDepth,
			RelationshipTypes: in.RelationshipTypes,
			TotalNodes:        len(st.nodes),
			TotalEdges:        len(st.edges),
			TotalPaths:        len(st.paths),
		},
	}, nil
}

func (s *TraversalService) walk(ctx context.Context, orgID, nodeID string, depth int, path []string, st *walkState) error {
	if depth >= st.maxDepth {
		st.emit(path)
		return nil
	}
	if _, seen := st.visited[nodeID]; seen {
		st.emit(path)
		return nil
	}
	st.visited[nodeID] = struct{}{}

	node, err := s.nodes.Get(ctx, orgID, nodeID)
	switch {
	case err == nil:
		st.nodes = append(st.nodes, node)
	case apperrors.IsNotFound(err):
		// Dangling edge target; keep walking, the edges may still lead
		// to live nodes.
	default:
		return err
	}

	outgoing, err := s.edges.Outgoing(ctx, orgID, nodeID, st.relTypes)
	if err != nil {
		return err
	}
	if len(outgoing) == 0 {
		st.emit(path)
		return nil
	}

	for _, edge := range outgoing {
		st.edges = append(st.edges, edge)
		next := append(append([]string{}, path...), edge.ToNode)
		if err := s.walk(ctx, orgID, edge.ToNode, depth+1, next, st); err != nil {
			return err
		}
	}
	return nil
}

// emit records a completed path. Single-element paths carry no edge and
// are dropped.
func (st *walkState) emit(path []string) {
	if len(path) < 2 {
		return
	}
	st.paths = append(st.paths, append([]string{}, path...))
}
