package handlers

import (
	"net/http"

	"go.uber.org/zap"

	restmiddleware "graphmeta-backend/interfaces/http/rest/middleware"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
)

// AuthHandler serves the browser login callback and the org listing.
type AuthHandler struct {
	verifier *auth.Verifier
	secure   bool
	logger   *zap.Logger
}

// NewAuthHandler creates an auth handler. secure controls the cookie's
// Secure flag and is disabled for local development over plain HTTP.
func NewAuthHandler(verifier *auth.Verifier, secure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{verifier: verifier, secure: secure, logger: logger}
}

// Callback handles GET /auth/callback: it exchanges the authorization
// code for an id_token, verifies it, and sets the session cookie.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		common.RespondError(w, r, http.StatusBadRequest, "Missing authorization code")
		return
	}

	idToken, err := h.verifier.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Warn("Code exchange failed", zap.Error(err))
		common.RespondError(w, r, http.StatusUnauthorized, "Invalid authentication token")
		return
	}

	claims, err := h.verifier.Verify(r.Context(), idToken)
	if err != nil {
		h.logger.Warn("Exchanged token failed verification", zap.Error(err))
		common.RespondError(w, r, http.StatusUnauthorized, "Invalid authentication token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     restmiddleware.SessionCookieName,
		Value:    idToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("Session established",
		zap.String("subject", claims.Subject),
		zap.String("email", claims.Email),
	)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Orgs handles GET /orgs: the distinct org components of the caller's
// permission scopes, wildcard included verbatim.
func (h *AuthHandler) Orgs(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(restmiddleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	claims, err := h.verifier.Verify(r.Context(), cookie.Value)
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, "Invalid authentication token")
		return
	}

	perms := auth.NormalizePermissions(claims.Permissions)
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"email": claims.Email,
		"orgs":  auth.OrgsFromPermissions(perms),
	})
}
