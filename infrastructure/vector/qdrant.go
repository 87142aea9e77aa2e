package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	apperrors "graphmeta-backend/pkg/errors"
)

// opTimeout bounds individual vector index operations.
const opTimeout = 5 * time.Second

// QdrantIndex talks to a Qdrant collection over its REST API. Points are
// keyed by edge id and carry the edge's graph coordinates as payload.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewQdrantIndex creates a client for the given Qdrant instance and
// collection.
func NewQdrantIndex(baseURL, apiKey, collection string, logger *zap.Logger) *QdrantIndex {
	return &QdrantIndex{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: collection,
		httpClient: &http.Client{Timeout: opTimeout},
		logger:     logger,
	}
}

var _ ports.VectorIndex = (*QdrantIndex)(nil)

type qdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// Upsert writes a single point keyed by id.
func (q *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]interface{}) error {
	body := map[string]interface{}{
		"points": []qdrantPoint{{ID: id, Vector: vector, Payload: payload}},
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.baseURL, q.collection)
	return q.do(ctx, http.MethodPut, url, body)
}

// Delete removes the point keyed by id.
func (q *QdrantIndex) Delete(ctx context.Context, id string) error {
	body := map[string]interface{}{
		"points": []string{id},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", q.baseURL, q.collection)
	return q.do(ctx, http.MethodPost, url, body)
}

func (q *QdrantIndex) do(ctx context.Context, method, url string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return apperrors.NewExternalError("vector index", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(raw))
	if err != nil {
		return apperrors.NewExternalError("vector index", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return apperrors.NewExternalError("vector index", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		q.logger.Warn("Vector index request failed",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		return apperrors.NewExternalError("vector index",
			fmt.Errorf("%s %s returned status %d", method, url, resp.StatusCode))
	}
	return nil
}
