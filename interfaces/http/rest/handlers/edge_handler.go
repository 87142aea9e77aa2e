package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/application/services"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
	"graphmeta-backend/pkg/utils"
)

// EdgeHandler serves the edge CRUD routes.
type EdgeHandler struct {
	service *services.EdgeService
	logger  *zap.Logger
}

// NewEdgeHandler creates an edge handler.
func NewEdgeHandler(service *services.EdgeService, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{service: service, logger: logger}
}

// edgeResponse wraps a stored edge with the outcome of its
// vectorization attempt.
type edgeResponse struct {
	Edge       interface{} `json:"edge"`
	Vectorized bool        `json:"vectorized"`
}

// CreateEdge handles POST /{org}/edge.
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var in services.EdgeInput
	if err := common.ParseJSONBody(r, &in, maxBodyBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(in); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	edge, vectorized, err := h.service.Create(r.Context(), chi.URLParam(r, "org"), in, principal)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, edgeResponse{Edge: edge, Vectorized: vectorized})
}

// GetEdge handles GET /{org}/edge/{id}.
func (h *EdgeHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	edge, err := h.service.Get(r.Context(), chi.URLParam(r, "org"), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, edge)
}

// ListEdges handles GET /{org}/edges.
func (h *EdgeHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	q := r.URL.Query()
	filter := ports.EdgeFilter{
		Type: q.Get("type"),
		From: q.Get("from"),
		To:   q.Get("to"),
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	edges, err := h.service.List(r.Context(), org, filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	appliedFilters := map[string]interface{}{}
	if filter.Type != "" {
		appliedFilters["type"] = filter.Type
	}
	if filter.From != "" {
		appliedFilters["from"] = filter.From
	}
	if filter.To != "" {
		appliedFilters["to"] = filter.To
	}
	if filter.Limit > 0 {
		appliedFilters["limit"] = filter.Limit
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"edges": edges,
		"metadata": map[string]interface{}{
			"org_id":  org,
			"total":   len(edges),
			"filters": appliedFilters,
		},
	})
}

// UpdateEdge handles PUT and PATCH /{org}/edge/{id}.
func (h *EdgeHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var in services.EdgeUpdateInput
	if err := common.ParseJSONBody(r, &in, maxBodyBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	edge, vectorized, err := h.service.Update(r.Context(), chi.URLParam(r, "org"), chi.URLParam(r, "id"), in, principal)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, edgeResponse{Edge: edge, Vectorized: vectorized})
}

// DeleteEdge handles DELETE /{org}/edge/{id}.
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Delete(r.Context(), chi.URLParam(r, "org"), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
