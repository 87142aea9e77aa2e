// Package rest wires the HTTP surface: routing, middleware, and the
// per-route access levels.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"graphmeta-backend/interfaces/http/rest/handlers"
	restmiddleware "graphmeta-backend/interfaces/http/rest/middleware"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/common"
	"graphmeta-backend/pkg/observability"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Nodes     *handlers.NodeHandler
	Edges     *handlers.EdgeHandler
	Graph     *handlers.GraphHandler
	Snapshots *handlers.SnapshotHandler
	Auth      *handlers.AuthHandler
	Health    *handlers.HealthHandler

	Authenticator *restmiddleware.Authenticator
	Metrics       *observability.Metrics
	Gatherer      prometheus.Gatherer
	Logger        *zap.Logger

	CORSAllowedOrigins []string
}

// NewRouter builds the service's route tree. Org-scoped routes sit
// behind the auth gate; each declares its required access level.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(restmiddleware.Recoverer(deps.Logger))
	r.Use(restmiddleware.RequestLogger(deps.Logger, deps.Metrics))

	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		common.RespondError(w, req, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		common.RespondError(w, req, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", deps.Health.Health)
	r.Get("/ready", deps.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/auth/callback", deps.Auth.Callback)
	r.Get("/orgs", deps.Auth.Orgs)

	// chi backtracks into /{org} when a static path matches but the
	// method does not, which would send e.g. PATCH /health through the
	// auth gate. Claim the remaining methods on each static path so
	// they answer 405 instead.
	methodNotAllowed := func(w http.ResponseWriter, req *http.Request) {
		common.RespondError(w, req, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
	for _, path := range []string{"/health", "/ready", "/metrics", "/auth/callback", "/orgs"} {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			r.MethodFunc(method, path, methodNotAllowed)
		}
	}

	r.Route("/{org}", func(org chi.Router) {
		org.Use(deps.Authenticator.Authenticate)

		read := deps.Authenticator.RequireLevel(auth.LevelRead)
		write := deps.Authenticator.RequireLevel(auth.LevelWrite)

		org.With(read).Get("/nodes", deps.Nodes.ListNodes)
		org.With(write).Post("/nodes", deps.Nodes.CreateNode)
		org.With(read).Get("/nodes/{id}", deps.Nodes.GetNode)
		org.With(write).Put("/nodes/{id}", deps.Nodes.UpdateNode)
		org.With(write).Delete("/nodes/{id}", deps.Nodes.DeleteNode)

		org.With(read).Get("/edges", deps.Edges.ListEdges)
		org.With(write).Post("/edge", deps.Edges.CreateEdge)
		org.With(read).Get("/edge/{id}", deps.Edges.GetEdge)
		org.With(write).Put("/edge/{id}", deps.Edges.UpdateEdge)
		org.With(write).Patch("/edge/{id}", deps.Edges.UpdateEdge)
		org.With(write).Delete("/edge/{id}", deps.Edges.DeleteEdge)

		org.With(read).Post("/query", deps.Graph.QueryGraph)
		org.With(read).Post("/traverse", deps.Graph.TraverseGraph)

		org.With(read).Get("/metadata/export", deps.Snapshots.Export)
		org.With(write).Post("/metadata/import", deps.Snapshots.Import)
	})

	return r
}
