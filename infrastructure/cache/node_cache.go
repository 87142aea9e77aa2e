package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	apperrors "graphmeta-backend/pkg/errors"
)

// opTimeout bounds individual cache operations.
const opTimeout = time.Second

// defaultTTL bounds how long a cached node may lag the durable store.
const defaultTTL = time.Hour

// NodeCache is the Redis-backed read-through cache for nodes. Keys are
// org-prefixed (node:<org>:<id>) so cross-tenant collisions cannot occur.
type NodeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewNodeCache creates a node cache on the given Redis client.
func NewNodeCache(client *redis.Client, logger *zap.Logger) *NodeCache {
	return &NodeCache{client: client, ttl: defaultTTL, logger: logger}
}

var _ ports.NodeCache = (*NodeCache)(nil)

func nodeKey(orgID, id string) string {
	return fmt.Sprintf("node:%s:%s", orgID, id)
}

// Get returns the cached node if present. A Redis error is reported so
// the caller can decide to fall through to the durable store.
func (c *NodeCache) Get(ctx context.Context, orgID, id string) (*graph.Node, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, nodeKey(orgID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewExternalError("cache", err)
	}

	var node graph.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		// A corrupt entry is treated as a miss; the read path rewrites it.
		c.logger.Warn("Discarding undecodable cache entry",
			zap.String("key", nodeKey(orgID, id)),
			zap.Error(err),
		)
		return nil, false, nil
	}
	return &node, true, nil
}

// Set stores the serialized node under its org-scoped key.
func (c *NodeCache) Set(ctx context.Context, node *graph.Node) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := json.Marshal(node)
	if err != nil {
		return apperrors.NewExternalError("cache", err)
	}
	if err := c.client.Set(ctx, nodeKey(node.OrgID, node.ID), raw, c.ttl).Err(); err != nil {
		return apperrors.NewExternalError("cache", err)
	}
	return nil
}

// Delete removes the cached node. Node deletion depends on this for
// cache coherence, so failures propagate.
func (c *NodeCache) Delete(ctx context.Context, orgID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, nodeKey(orgID, id)).Err(); err != nil {
		return apperrors.NewExternalError("cache", err)
	}
	return nil
}
