package embedding

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

// callTimeout bounds embedding requests; providers can be slow on cold
// models.
const callTimeout = 10 * time.Second

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-3-small"

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an embedding client. baseURL should point at the API
// root (e.g. https://api.openai.com/v1).
func NewClient(baseURL, apiKey, model string, logger *zap.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: callTimeout},
		logger:     logger,
	}
}

var _ ports.Embedder = (*Client)(nil)

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed converts text into a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, apperrors.NewExternalError("embedding provider", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewExternalError("embedding provider", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("embedding provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("Embedding request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		return nil, apperrors.NewExternalError("embedding provider",
			fmt.Errorf("embeddings endpoint returned status %d", resp.StatusCode))
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, apperrors.NewExternalError("embedding provider", err)
	}
	if len(er.Data) == 0 || len(er.Data[0].Embedding) == 0 {
		return nil, apperrors.NewExternalError("embedding provider",
			fmt.Errorf("embeddings response carried no vector"))
	}
	return er.Data[0].Embedding, nil
}
