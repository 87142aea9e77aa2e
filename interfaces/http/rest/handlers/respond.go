package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"graphmeta-backend/pkg/common"
	apperrors "graphmeta-backend/pkg/errors"
)

// maxBodyBytes caps normal request bodies.
const maxBodyBytes = 1 << 20

// maxImportBytes caps snapshot import bodies, which carry whole graphs.
const maxImportBytes = 32 << 20

// respondServiceError maps an application error onto an HTTP response.
// Client errors surface their message; anything server-side is logged
// with its cause and reported generically with the request id.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	app := apperrors.GetAppError(err)
	if app == nil {
		logger.Error("Unclassified error", zap.Error(err), zap.String("path", r.URL.Path))
		common.RespondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	if app.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("type", string(app.Type)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		common.RespondError(w, r, app.HTTPStatus, "Internal server error")
		return
	}
	common.RespondError(w, r, app.HTTPStatus, app.Message)
}
