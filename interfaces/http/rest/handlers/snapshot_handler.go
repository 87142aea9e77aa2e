package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphmeta-backend/application/services"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
)

// SnapshotHandler serves the org-wide export and import routes.
type SnapshotHandler struct {
	service *services.SnapshotService
	logger  *zap.Logger
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(service *services.SnapshotService, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{service: service, logger: logger}
}

// Export handles GET /{org}/export.
func (h *SnapshotHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Export(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, snap)
}

// Import handles POST /{org}/import.
func (h *SnapshotHandler) Import(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var in services.ImportInput
	if err := common.ParseJSONBody(r, &in, maxImportBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Import(r.Context(), chi.URLParam(r, "org"), in, principal)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
