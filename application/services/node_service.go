package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
	"graphmeta-backend/pkg/utils"
)

// NodeService implements the node operations of the graph engine: CRUD
// through cache + durable store, with the durable store authoritative.
type NodeService struct {
	nodes  ports.NodeStore
	edges  ports.EdgeStore
	cache  ports.NodeCache
	logger *zap.Logger
}

// NewNodeService creates a node service.
func NewNodeService(nodes ports.NodeStore, edges ports.EdgeStore, cache ports.NodeCache, logger *zap.Logger) *NodeService {
	return &NodeService{nodes: nodes, edges: edges, cache: cache, logger: logger}
}

// NodeInput is the body of a node create request.
type NodeInput struct {
	ID         string                 `json:"id,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// NodeUpdateInput is the body of a node update request.
type NodeUpdateInput struct {
	Type       string                 `json:"type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// NodeListResult is a page of nodes with its pagination envelope.
type NodeListResult struct {
	Data       []*graph.Node         `json:"data"`
	Pagination common.PaginationInfo `json:"pagination"`
}

// NodeDeleteResult reports a completed node deletion.
type NodeDeleteResult struct {
	Deleted      string `json:"deleted"`
	DeletedEdges int    `json:"deleted_edges"`
	Timestamp    string `json:"timestamp"`
}

// Create upserts a node. A client-supplied id makes the operation
// idempotent under retry: a conflicting row is replaced, not rejected,
// and its creation audit fields are left untouched.
func (s *NodeService) Create(ctx context.Context, orgID string, in NodeInput, principal *auth.Principal) (*graph.Node, error) {
	now := utils.NowRFC3339()

	node := &graph.Node{
		ID:         in.ID,
		OrgID:      orgID,
		Type:       in.Type,
		Properties: in.Properties,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  principal.ID,
		UpdatedBy:  principal.ID,
		UserAgent:  principal.UserAgent,
		ClientIP:   principal.SourceIP,
	}
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.Type == "" {
		node.Type = graph.DefaultNodeType
	}
	if node.Properties == nil {
		node.Properties = map[string]interface{}{}
	}

	if err := s.nodes.Upsert(ctx, node); err != nil {
		return nil, err
	}
	s.refreshCache(ctx, node)
	return node, nil
}

// Get returns the node, preferring the cache. The second return value
// reports whether the read was a cache hit.
func (s *NodeService) Get(ctx context.Context, orgID, id string) (*graph.Node, bool, error) {
	cached, hit, err := s.cache.Get(ctx, orgID, id)
	if err != nil {
		// Cache trouble degrades to a durable-store read.
		s.logger.Warn("Node cache read failed",
			zap.String("orgID", orgID),
			zap.String("nodeID", id),
			zap.Error(err),
		)
	}
	if hit {
		return cached, true, nil
	}

	node, err := s.nodes.Get(ctx, orgID, id)
	if err != nil {
		return nil, false, err
	}
	s.refreshCache(ctx, node)
	return node, false, nil
}

// List returns a filtered, paginated page of nodes.
func (s *NodeService) List(ctx context.Context, orgID string, filter ports.NodeFilter, page common.PaginationParams) (*NodeListResult, error) {
	filter.Limit = page.Limit
	filter.Offset = page.Offset()

	nodes, total, err := s.nodes.List(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	return &NodeListResult{
		Data:       nodes,
		Pagination: common.BuildPaginationInfo(page.Page, page.Limit, total),
	}, nil
}

// Update applies a partial update: type replaced when supplied,
// properties shallow-merged with the body winning on overlapping keys.
// Creation audit fields are preserved.
func (s *NodeService) Update(ctx context.Context, orgID, id string, in NodeUpdateInput, principal *auth.Principal) (*graph.Node, error) {
	node, err := s.nodes.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if in.Type != "" {
		node.Type = in.Type
	}
	node.MergeProperties(in.Properties)
	node.UpdatedAt = utils.NowRFC3339()
	node.UpdatedBy = principal.ID
	node.UserAgent = principal.UserAgent
	node.ClientIP = principal.SourceIP

	if err := s.nodes.Upsert(ctx, node); err != nil {
		return nil, err
	}
	s.refreshCache(ctx, node)
	return node, nil
}

// Delete removes the node, its incident edges within the org, and its
// cache entry. The steps are individually idempotent, so a partial
// failure is safe to retry.
func (s *NodeService) Delete(ctx context.Context, orgID, id string) (*NodeDeleteResult, error) {
	if _, err := s.nodes.Get(ctx, orgID, id); err != nil {
		return nil, err
	}

	incident, err := s.edges.Incident(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	edgeIDs := make([]string, 0, len(incident))
	for _, e := range incident {
		edgeIDs = append(edgeIDs, e.ID)
	}
	if err := s.edges.DeleteByIDs(ctx, orgID, edgeIDs); err != nil {
		return nil, err
	}

	if err := s.nodes.Delete(ctx, orgID, id); err != nil {
		return nil, err
	}
	// The cache key must go; a stale entry would resurrect the node.
	if err := s.cache.Delete(ctx, orgID, id); err != nil {
		return nil, err
	}

	return &NodeDeleteResult{
		Deleted:      id,
		DeletedEdges: len(edgeIDs),
		Timestamp:    utils.NowRFC3339(),
	}, nil
}

// refreshCache repopulates the cache after a durable write. Failures are
// logged only: the cache is best-effort and the durable store has
// already committed.
func (s *NodeService) refreshCache(ctx context.Context, node *graph.Node) {
	if err := s.cache.Set(ctx, node); err != nil {
		s.logger.Warn("Node cache refresh failed",
			zap.String("orgID", node.OrgID),
			zap.String("nodeID", node.ID),
			zap.Error(err),
		)
	}
}
