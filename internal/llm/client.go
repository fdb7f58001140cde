// Package llm calls an OpenAI-compatible chat completions API.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vintry/sommelier/internal/config"
)

// Client is an OpenAI-compatible chat client. Both the reranker and the query
// interpreter go through it; responses are expected to be JSON documents.
type Client struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	modelName string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a chat client from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.ChatAPIKey == "" {
		return nil, fmt.Errorf("chat api key is required")
	}

	baseURL := cfg.ChatBaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelName := cfg.ChatModel
	if modelName == "" {
		modelName = config.DefaultChatModel
	}

	return &Client{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.ChatAPIKey,
		modelName: modelName,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.modelName }

// Complete sends one system+user exchange and returns the raw response text.
// Temperature is pinned to zero; callers parse the content as JSON themselves
// and must tolerate malformed output.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat API error (model=%s, status=%d): %s",
			c.modelName, resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode chat response from %s: %w", c.baseURL, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices (model=%s)", c.modelName)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// StripFences removes markdown code fences some models wrap around JSON.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
