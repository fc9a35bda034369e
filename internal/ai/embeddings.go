package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docstream-platform/internal/logger"
	"docstream-platform/internal/telemetry"
	"docstream-platform/models"
)

// EmbeddingClient calls an OpenAI-compatible embeddings endpoint. Requests
// are batched, rate limited between batches, and wrapped in a circuit
// breaker so a failing provider sheds load fast instead of queuing timeouts.
type EmbeddingClient struct {
	apiKey    string
	apiURL    string
	model     string
	batchSize int
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
}

// NewEmbeddingClient builds a client. batchGap is the minimum spacing
// between batch requests.
func NewEmbeddingClient(apiKey, apiURL, model string, batchSize int, batchGap time.Duration) *EmbeddingClient {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchGap <= 0 {
		batchGap = 100 * time.Millisecond
	}
	return &EmbeddingClient{
		apiKey:    apiKey,
		apiURL:    apiURL,
		model:     model,
		batchSize: batchSize,
		client:    &http.Client{Timeout: 60 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "embeddings",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("embedding circuit breaker state change", "from", from.String(), "to", to.String())
			},
		}),
		limiter: rate.NewLimiter(rate.Every(batchGap), 1),
	}
}

// Model returns the configured model identifier, recorded on stored vectors.
func (c *EmbeddingClient) Model() string { return c.model }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedTexts embeds all texts in order, batching internally. The output
// aligns with the input; no partial results are returned on failure.
func (c *EmbeddingClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, texts)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("embedding provider unavailable, rate limited by circuit breaker: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

func (c *EmbeddingClient) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	telemetry.EmbeddingBatches.Inc()
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// The provider body is carried verbatim so error classification can
		// match on rate-limit and quota message shapes.
		return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response failed: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding provider returned out-of-range index %d", item.Index)
		}
		if len(item.Embedding) != models.EmbeddingDimensions {
			return nil, fmt.Errorf("embedding provider returned %d dimensions, want %d",
				len(item.Embedding), models.EmbeddingDimensions)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding provider omitted vector for input %d", i)
		}
	}
	return vectors, nil
}
