// Package di assembles the service's dependency graph by hand. The
// wiring order follows the data path: config, logger, stores, services,
// handlers, router.
package di

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/application/services"
	"graphmeta-backend/infrastructure/cache"
	"graphmeta-backend/infrastructure/config"
	"graphmeta-backend/infrastructure/embedding"
	"graphmeta-backend/infrastructure/objectstore"
	"graphmeta-backend/infrastructure/persistence/postgres"
	"graphmeta-backend/infrastructure/vector"
	"graphmeta-backend/interfaces/http/rest"
	"graphmeta-backend/interfaces/http/rest/handlers"
	restmiddleware "graphmeta-backend/interfaces/http/rest/middleware"
	"graphmeta-backend/pkg/auth"
	"graphmeta-backend/pkg/observability"
)

// authRequestsPerMinute caps token verification attempts per client IP.
const authRequestsPerMinute = 300

// Container holds the assembled application.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	Router chi.Router

	db    *sqlx.DB
	redis *redis.Client
}

// NewContainer builds the full dependency graph. It connects to the
// durable store and cache eagerly so misconfiguration fails at startup,
// not on the first request.
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := postgres.Open(ctx, postgres.Options{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.InitSchema {
		if err := postgres.InitSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("Database schema initialized")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	nodeStore := postgres.NewNodeStore(db, logger)
	edgeStore := postgres.NewEdgeStore(db, logger)
	graphStore := postgres.NewGraphStore(db, logger)
	nodeCache := cache.NewNodeCache(redisClient, logger)

	var snapshotStore ports.SnapshotStore
	if cfg.Snapshot.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Snapshot.Region))
		if err != nil {
			_ = db.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		snapshotStore = objectstore.NewSnapshotStore(s3.NewFromConfig(awsCfg), cfg.Snapshot.Bucket, logger)
	} else {
		logger.Warn("SNAPSHOT_BUCKET not set; exports will not be archived")
	}

	var embedder ports.Embedder
	var vectorIndex ports.VectorIndex
	if cfg.VectorizationEnabled() {
		embedder = embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, logger)
		vectorIndex = vector.NewQdrantIndex(cfg.Vector.URL, cfg.Vector.APIKey, cfg.Vector.Collection, logger)
	} else {
		logger.Warn("Vectorization disabled; edges will be stored without vectors")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	nodeService := services.NewNodeService(nodeStore, edgeStore, nodeCache, logger)
	edgeService := services.NewEdgeService(edgeStore, embedder, vectorIndex, metrics, logger)
	queryService := services.NewQueryService(graphStore, logger)
	traversalService := services.NewTraversalService(nodeStore, edgeStore, logger)
	snapshotService := services.NewSnapshotService(nodeStore, edgeStore, nodeCache, snapshotStore, logger)

	verifier := auth.NewVerifier(auth.OIDCConfig{
		DiscoveryURL: cfg.OIDC.DiscoveryURL,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURI:  cfg.OIDC.RedirectURI,
	})
	authenticator := restmiddleware.NewAuthenticator(
		verifier,
		auth.NewIPRateLimiter(authRequestsPerMinute),
		logger,
	)

	router := rest.NewRouter(rest.RouterDeps{
		Nodes:              handlers.NewNodeHandler(nodeService, metrics, logger),
		Edges:              handlers.NewEdgeHandler(edgeService, logger),
		Graph:              handlers.NewGraphHandler(queryService, traversalService, logger),
		Snapshots:          handlers.NewSnapshotHandler(snapshotService, logger),
		Auth:               handlers.NewAuthHandler(verifier, cfg.Server.Environment == "production", logger),
		Health:             handlers.NewHealthHandler(db, redisClient, logger),
		Authenticator:      authenticator,
		Metrics:            metrics,
		Gatherer:           registry,
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	return &Container{
		Config: cfg,
		Logger: logger,
		Router: router,
		db:     db,
		redis:  redisClient,
	}, nil
}

// Close releases the container's connections.
func (c *Container) Close() error {
	var firstErr error
	if err := c.redis.Close(); err != nil {
		firstErr = err
	}
	if err := c.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
