package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"graphmeta-backend/domain/graph"
)

// queryTimeout bounds individual durable-store queries.
const queryTimeout = 5 * time.Second

// Options configure the connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to PostgreSQL and configures the pool.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("PostgreSQL connection established",
		zap.Int("maxOpenConns", opts.MaxOpenConns),
		zap.Int("maxIdleConns", opts.MaxIdleConns),
	)
	return db, nil
}

// InitSchema creates the graph tables and indexes when INIT_DB is set.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// withTimeout derives the per-query context.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// marshalProperties serializes a properties map to its stored JSON string.
func marshalProperties(props map[string]interface{}) (string, error) {
	if props == nil {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to marshal properties: %w", err)
	}
	return string(b), nil
}

// unmarshalProperties deserializes a stored JSON string; an empty column
// yields an empty map.
func unmarshalProperties(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var props map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}
	if props == nil {
		props = map[string]interface{}{}
	}
	return props, nil
}

// nodeRow is the nodes table row shape.
type nodeRow struct {
	ID         string `db:"id"`
	OrgID      string `db:"org_id"`
	Type       string `db:"type"`
	Properties string `db:"properties"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
	CreatedBy  string `db:"created_by"`
	UpdatedBy  string `db:"updated_by"`
	UserAgent  string `db:"user_agent"`
	ClientIP   string `db:"client_ip"`
}

func (r nodeRow) toNode() (*graph.Node, error) {
	props, err := unmarshalProperties(r.Properties)
	if err != nil {
		return nil, err
	}
	return &graph.Node{
		ID:         r.ID,
		OrgID:      r.OrgID,
		Type:       r.Type,
		Properties: props,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		CreatedBy:  r.CreatedBy,
		UpdatedBy:  r.UpdatedBy,
		UserAgent:  r.UserAgent,
		ClientIP:   r.ClientIP,
	}, nil
}

// edgeRow is the edges table row shape.
type edgeRow struct {
	ID               string `db:"id"`
	OrgID            string `db:"org_id"`
	FromNode         string `db:"from_node"`
	ToNode           string `db:"to_node"`
	RelationshipType string `db:"relationship_type"`
	Properties       string `db:"properties"`
	CreatedAt        string `db:"created_at"`
	UpdatedAt        string `db:"updated_at"`
	CreatedBy        string `db:"created_by"`
	UpdatedBy        string `db:"updated_by"`
	UserAgent        string `db:"user_agent"`
	ClientIP         string `db:"client_ip"`
}

func (r edgeRow) toEdge() (*graph.Edge, error) {
	props, err := unmarshalProperties(r.Properties)
	if err != nil {
		return nil, err
	}
	return &graph.Edge{
		ID:               r.ID,
		OrgID:            r.OrgID,
		FromNode:         r.FromNode,
		ToNode:           r.ToNode,
		RelationshipType: r.RelationshipType,
		Properties:       props,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		CreatedBy:        r.CreatedBy,
		UpdatedBy:        r.UpdatedBy,
		UserAgent:        r.UserAgent,
		ClientIP:         r.ClientIP,
	}, nil
}
