package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/application/services"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
	"graphmeta-backend/pkg/observability"
)

// NodeHandler serves the node CRUD routes.
type NodeHandler struct {
	service *services.NodeService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewNodeHandler creates a node handler.
func NewNodeHandler(service *services.NodeService, metrics *observability.Metrics, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{service: service, metrics: metrics, logger: logger}
}

// CreateNode handles POST /{org}/nodes.
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var in services.NodeInput
	if err := common.ParseJSONBody(r, &in, maxBodyBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.service.Create(r.Context(), chi.URLParam(r, "org"), in, principal)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, node)
}

// GetNode handles GET /{org}/nodes/{id}. The X-Node-Cache header reports
// whether the read was served from the cache.
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	id := chi.URLParam(r, "id")

	node, hit, err := h.service.Get(r.Context(), org, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	if hit {
		h.metrics.NodeCacheOps.WithLabelValues("hit").Inc()
		w.Header().Set("X-Node-Cache", "HIT")
	} else {
		h.metrics.NodeCacheOps.WithLabelValues("miss").Inc()
		w.Header().Set("X-Node-Cache", "MISS")
	}
	common.RespondJSON(w, http.StatusOK, node)
}

// ListNodes handles GET /{org}/nodes.
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.NodeFilter{
		Type:      q.Get("type"),
		CreatedBy: q.Get("created_by"),
		UpdatedBy: q.Get("updated_by"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	page := common.ExtractPaginationParams(r)

	result, err := h.service.List(r.Context(), chi.URLParam(r, "org"), filter, page)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// UpdateNode handles PUT /{org}/nodes/{id}.
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var in services.NodeUpdateInput
	if err := common.ParseJSONBody(r, &in, maxBodyBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.service.Update(r.Context(), chi.URLParam(r, "org"), chi.URLParam(r, "id"), in, principal)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /{org}/nodes/{id}.
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Delete(r.Context(), chi.URLParam(r, "org"), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
