package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/application/services"
	"graphmeta-backend/pkg/common"
	"graphmeta-backend/pkg/utils"
)

// GraphHandler serves whole-graph reads: the joined query and the
// depth-first traversal.
type GraphHandler struct {
	query     *services.QueryService
	traversal *services.TraversalService
	logger    *zap.Logger
}

// NewGraphHandler creates a graph handler.
func NewGraphHandler(query *services.QueryService, traversal *services.TraversalService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{query: query, traversal: traversal, logger: logger}
}

// queryInput is the body of a graph query request. All predicates are
// optional; an empty body selects the whole org graph.
type queryInput struct {
	NodeType         string `json:"node_type,omitempty"`
	RelationshipType string `json:"relationship_type,omitempty"`
	Limit            int    `json:"limit,omitempty" validate:"omitempty,gt=0"`
}

// QueryGraph handles POST /{org}/query.
func (h *GraphHandler) QueryGraph(w http.ResponseWriter, r *http.Request) {
	var in queryInput
	if err := common.ParseJSONBody(r, &in, maxBodyBytes); err != nil && !errors.Is(err, io.EOF) {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(in); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	filter := ports.GraphFilter{
		NodeType:         in.NodeType,
		RelationshipType: in.RelationshipType,
		Limit:            in.Limit,
	}
	result, err := h.query.Query(r.Context(), chi.URLParam(r, "org"), filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// TraverseGraph handles POST /{org}/traverse.
func (h *GraphHandler) TraverseGraph(w http.ResponseWriter, r *http.Request) {
	var in services.TraversalInput
	if err := common.ParseJSONBody(r, &in, maxBodyBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(in); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.traversal.Traverse(r.Context(), chi.URLParam(r, "org"), in)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
