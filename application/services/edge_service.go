package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/observability"
	"graphmeta-backend/pkg/utils"
)

// EdgeService implements edge CRUD plus the best-effort vectorization
// side channel: edges whose properties request it are embedded and
// mirrored into the vector index, and failures there never fail the
// write itself.
type EdgeService struct {
	edges    ports.EdgeStore
	embedder ports.Embedder
	index    ports.VectorIndex
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEdgeService creates an edge service. embedder and index may be nil
// when vectorization is not configured; edges are then stored without a
// vector mirror.
func NewEdgeService(edges ports.EdgeStore, embedder ports.Embedder, index ports.VectorIndex, metrics *observability.Metrics, logger *zap.Logger) *EdgeService {
	return &EdgeService{edges: edges, embedder: embedder, index: index, metrics: metrics, logger: logger}
}

// EdgeInput is the body of an edge create request.
type EdgeInput struct {
	ID               string                 `json:"id,omitempty"`
	FromNode         string                 `json:"from_node" validate:"required"`
	ToNode           string                 `json:"to_node" validate:"required"`
	RelationshipType string                 `json:"relationship_type,omitempty"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
}

// EdgeUpdateInput is the body of an edge update request. Endpoints are
// immutable after creation.
type EdgeUpdateInput struct {
	RelationshipType string                 `json:"relationship_type,omitempty"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
}

// EdgeDeleteResult reports a completed edge deletion.
type EdgeDeleteResult struct {
	Deleted   string `json:"deleted"`
	Timestamp string `json:"timestamp"`
}

// Create upserts an edge and runs the vectorization side channel. The
// returned flag reports whether a vector was written for this request.
func (s *EdgeService) Create(ctx context.Context, orgID string, in EdgeInput, principal *auth.Principal) (*graph.Edge, bool, error) {
	now := utils.NowRFC3339()

	edge := &graph.Edge{
		ID:               in.ID,
		OrgID:            orgID,
		FromNode:         in.FromNode,
		ToNode:           in.ToNode,
		RelationshipType: in.RelationshipType,
		Properties:       in.Properties,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        principal.ID,
		UpdatedBy:        principal.ID,
		UserAgent:        principal.UserAgent,
		ClientIP:         principal.SourceIP,
	}
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.RelationshipType == "" {
		edge.RelationshipType = graph.DefaultRelationshipType
	}
	if edge.Properties == nil {
		edge.Properties = map[string]interface{}{}
	}

	if err := s.edges.Upsert(ctx, edge); err != nil {
		return nil, false, err
	}

	vectorized := s.vectorize(ctx, edge)
	return edge, vectorized, nil
}

// Get returns a single edge.
func (s *EdgeService) Get(ctx context.Context, orgID, id string) (*graph.Edge, error) {
	return s.edges.Get(ctx, orgID, id)
}

// List returns edges matching the filter.
func (s *EdgeService) List(ctx context.Context, orgID string, filter ports.EdgeFilter) ([]*graph.Edge, error) {
	return s.edges.List(ctx, orgID, filter)
}

// Update applies a partial update and re-runs vectorization against the
// merged properties. Endpoints and creation audit fields are preserved.
func (s *EdgeService) Update(ctx context.Context, orgID, id string, in EdgeUpdateInput, principal *auth.Principal) (*graph.Edge, bool, error) {
	edge, err := s.edges.Get(ctx, orgID, id)
	if err != nil {
		return nil, false, err
	}

	if in.RelationshipType != "" {
		edge.RelationshipType = in.RelationshipType
	}
	edge.MergeProperties(in.Properties)
	edge.UpdatedAt = utils.NowRFC3339()
	edge.UpdatedBy = principal.ID
	edge.UserAgent = principal.UserAgent
	edge.ClientIP = principal.SourceIP

	if err := s.edges.Upsert(ctx, edge); err != nil {
		return nil, false, err
	}

	vectorized := s.vectorize(ctx, edge)
	return edge, vectorized, nil
}

// Delete removes the edge and, best-effort, its vector mirror.
func (s *EdgeService) Delete(ctx context.Context, orgID, id string) (*EdgeDeleteResult, error) {
	if _, err := s.edges.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	if err := s.edges.Delete(ctx, orgID, id); err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			s.logger.Warn("Vector index cleanup failed",
				zap.String("edgeID", id),
				zap.Error(err),
			)
		}
	}

	return &EdgeDeleteResult{
		Deleted:   id,
		Timestamp: utils.NowRFC3339(),
	}, nil
}

// vectorize embeds the edge's vectorizable properties and upserts the
// result into the vector index. The durable write has already committed,
// so any failure here is logged and swallowed.
func (s *EdgeService) vectorize(ctx context.Context, edge *graph.Edge) bool {
	text, ok := graph.VectorizeText(edge.Properties)
	if !ok {
		return false
	}
	if s.embedder == nil || s.index == nil {
		s.logger.Debug("Vectorization requested but not configured",
			zap.String("edgeID", edge.ID),
		)
		return false
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("Edge embedding failed",
			zap.String("edgeID", edge.ID),
			zap.Error(err),
		)
		s.metrics.VectorizeOps.WithLabelValues("embed_error").Inc()
		return false
	}

	payload := map[string]interface{}{
		"edge_id":           edge.ID,
		"from_node":         edge.FromNode,
		"to_node":           edge.ToNode,
		"org_id":            edge.OrgID,
		"relationship_type": edge.RelationshipType,
	}
	if err := s.index.Upsert(ctx, edge.ID, vector, payload); err != nil {
		s.logger.Warn("Vector index upsert failed",
			zap.String("edgeID", edge.ID),
			zap.Error(err),
		)
		s.metrics.VectorizeOps.WithLabelValues("index_error").Inc()
		return false
	}

	s.metrics.VectorizeOps.WithLabelValues("ok").Inc()
	return true
}
