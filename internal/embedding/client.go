// Package embedding calls an OpenAI-compatible embeddings API.
package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vintry/sommelier/internal/config"
)

// Client is an OpenAI-compatible embedding client. It works against the
// official API or any proxy that speaks the same /embeddings contract.
type Client struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	modelName  string
	dimensions int
}

type embedRequest struct {
	Input          interface{} `json:"input"`
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewClient creates an embedding client from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.EmbeddingAPIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}

	baseURL := cfg.EmbeddingBaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelName := cfg.EmbeddingModel
	if modelName == "" {
		modelName = config.DefaultEmbeddingModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = config.DefaultEmbeddingDimensions
	}

	return &Client{
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.EmbeddingAPIKey,
		modelName:  modelName,
		dimensions: dimensions,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.modelName }

// Dimensions returns the configured vector dimensionality.
func (c *Client) Dimensions() int { return c.dimensions }

// Embed returns the embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	results, err := c.embedRequest(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("embedding API returned no results for model %s", c.modelName)
	}
	return results[0], nil
}

// EmbedBatch returns embeddings for a batch of texts, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results, err := c.embedRequest(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d results for %d inputs (model=%s)",
			len(results), len(texts), c.modelName)
	}
	return results, nil
}

func (c *Client) embedRequest(ctx context.Context, input interface{}) ([][]float32, error) {
	reqBody := embedRequest{
		Input:          input,
		Model:          c.modelName,
		EncodingFormat: "float",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send embedding request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API error (model=%s, status=%d): %s",
			c.modelName, resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode embedding response from %s: %w", c.baseURL, err)
	}

	// Sort by index to preserve input order
	sort.Slice(embedResp.Data, func(i, j int) bool {
		return embedResp.Data[i].Index < embedResp.Data[j].Index
	})

	results := make([][]float32, len(embedResp.Data))
	for i, d := range embedResp.Data {
		results[i] = d.Embedding
	}
	return results, nil
}
