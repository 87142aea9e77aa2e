package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"graphmeta-backend/pkg/common"
)

// readinessTimeout bounds the dependency probes of a readiness check.
const readinessTimeout = 2 * time.Second

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db     *sqlx.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewHealthHandler creates a health handler. cache may be nil when no
// Redis is configured.
func NewHealthHandler(db *sqlx.DB, cache *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// Health handles GET /health: process liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready: the durable store must answer; the cache is
// reported but does not fail readiness, reads degrade without it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("Readiness database ping failed", zap.Error(err))
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			h.logger.Warn("Readiness cache ping failed", zap.Error(err))
			checks["cache"] = "unavailable"
		}
	}

	common.RespondJSON(w, status, checks)
}
