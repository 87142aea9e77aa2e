// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime setting of the service.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OIDC      OIDCConfig
	Snapshot  SnapshotConfig
	Vector    VectorConfig
	Embedding EmbeddingConfig
}

// ServerConfig covers the HTTP listener and ambient behavior.
type ServerConfig struct {
	Address            string
	Environment        string
	LogLevel           string
	CORSAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
}

// DatabaseConfig covers the durable store connection.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	InitSchema      bool
}

// RedisConfig covers the node cache connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OIDCConfig covers token verification and the login callback.
type OIDCConfig struct {
	DiscoveryURL string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// SnapshotConfig covers the export object store. An empty bucket
// disables archiving.
type SnapshotConfig struct {
	Bucket string
	Region string
}

// VectorConfig covers the edge vector index. An empty URL disables
// vectorization.
type VectorConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// EmbeddingConfig covers the embedding provider. An empty API key
// disables vectorization.
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Load reads configuration from the environment, applying defaults for
// everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:            getEnv("SERVER_ADDRESS", ":8080"),
			Environment:        getEnv("ENVIRONMENT", "development"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			CORSAllowedOrigins: splitEnv("CORS_ALLOWED_ORIGINS"),
			ReadTimeout:        getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			InitSchema:      getBoolEnv("INIT_DB", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		OIDC: OIDCConfig{
			DiscoveryURL: os.Getenv("OIDC_DISCOVERY_URL"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("OIDC_REDIRECT_URI"),
		},
		Snapshot: SnapshotConfig{
			Bucket: os.Getenv("SNAPSHOT_BUCKET"),
			Region: getEnv("AWS_REGION", "us-east-1"),
		},
		Vector: VectorConfig{
			URL:        os.Getenv("VX_URL"),
			APIKey:     os.Getenv("VX_API_KEY"),
			Collection: getEnv("VX_EDGE_COLLECTION", "edges"),
		},
		Embedding: EmbeddingConfig{
			BaseURL: getEnv("EP_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  os.Getenv("EP_API_KEY"),
			Model:   os.Getenv("EP_MODEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.OIDC.DiscoveryURL == "" {
		return fmt.Errorf("OIDC_DISCOVERY_URL is required")
	}
	if c.OIDC.ClientID == "" {
		return fmt.Errorf("OIDC_CLIENT_ID is required")
	}
	return nil
}

// VectorizationEnabled reports whether both halves of the vectorization
// pipeline are configured.
func (c *Config) VectorizationEnabled() bool {
	return c.Vector.URL != "" && c.Embedding.APIKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
