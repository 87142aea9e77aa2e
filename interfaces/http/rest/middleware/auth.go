package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
)

// SessionCookieName is the cookie set by the login callback and accepted
// as an alternative to the Authorization header.
const SessionCookieName = "session"

// Authenticator gates org-scoped routes: every request must carry a
// valid OIDC token, and each route declares the access level it needs.
type Authenticator struct {
	verifier *auth.Verifier
	limiter  *auth.IPRateLimiter
	logger   *zap.Logger
}

// NewAuthenticator creates the auth middleware. limiter may be nil to
// disable rate limiting.
func NewAuthenticator(verifier *auth.Verifier, limiter *auth.IPRateLimiter, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, limiter: limiter, logger: logger}
}

// Authenticate verifies the bearer token or session cookie and attaches
// the resulting principal to the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if a.limiter != nil {
			allowed, err := a.limiter.Allow(r.Context(), ip)
			if err == nil && !allowed {
				common.RespondError(w, r, http.StatusTooManyRequests, "Too many requests")
				return
			}
		}

		token := ExtractToken(r)
		if token == "" {
			common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
			return
		}

		claims, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.logger.Debug("Token verification failed",
				zap.String("remote", ip),
				zap.Error(err),
			)
			common.RespondError(w, r, http.StatusUnauthorized, "Invalid authentication token")
			return
		}

		principal := &auth.Principal{
			ID:          claims.Subject,
			Email:       claims.Email,
			Permissions: auth.NormalizePermissions(claims.Permissions),
			SourceIP:    ip,
			UserAgent:   r.UserAgent(),
		}
		next.ServeHTTP(w, r.WithContext(auth.SetPrincipal(r.Context(), principal)))
	})
}

// RequireLevel authorizes the request against the org in the URL. It
// must run after Authenticate.
func (a *Authenticator) RequireLevel(level auth.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.GetPrincipal(r.Context())
			if err != nil {
				common.RespondError(w, r, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			org := chi.URLParam(r, "org")
			if !auth.HasPermission(principal.Permissions, org, level) {
				a.logger.Debug("Permission denied",
					zap.String("subject", principal.ID),
					zap.String("org", org),
					zap.String("required", string(level)),
				)
				common.RespondError(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken pulls the credential from the Authorization header,
// falling back to the session cookie.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ClientIP resolves the caller's address, honoring X-Forwarded-For when
// the service runs behind a proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
