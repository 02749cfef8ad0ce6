// Package retrieval answers caller questions from the product knowledge
// base: the query text is embedded via the embeddings REST API, then the
// vector index is searched for the closest matches.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultEmbeddingsBaseURL = "https://api.openai.com"
	defaultEmbeddingModel    = "text-embedding-ada-002"
	defaultTopK              = 5
)

// Match is one ranked result from the vector index.
type Match struct {
	ID    string
	Score float64
	Text  string
}

// Client embeds queries and searches the vector index.
type Client struct {
	openaiKey     string
	openaiBaseURL string
	embedModel    string

	indexKey  string
	indexHost string
	namespace string

	httpClient *http.Client
}

// Config for NewClient. OpenAIBaseURL and EmbedModel default to the hosted
// endpoint and text-embedding-ada-002.
type Config struct {
	OpenAIKey     string
	OpenAIBaseURL string
	EmbedModel    string
	IndexKey      string
	IndexHost     string
	Namespace     string
	HTTPClient    *http.Client
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
		cfg.OpenAIBaseURL = defaultEmbeddingsBaseURL
	}
	if strings.TrimSpace(cfg.EmbedModel) == "" {
		cfg.EmbedModel = defaultEmbeddingModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{
		openaiKey:     strings.TrimSpace(cfg.OpenAIKey),
		openaiBaseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		embedModel:    cfg.EmbedModel,
		indexKey:      strings.TrimSpace(cfg.IndexKey),
		indexHost:     strings.TrimRight(strings.TrimSpace(cfg.IndexHost), "/"),
		namespace:     strings.TrimSpace(cfg.Namespace),
		httpClient:    cfg.HTTPClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.openaiKey != "" && c.indexKey != "" && c.indexHost != ""
}

// Search embeds the query and returns up to topK matches ranked by score.
// topK <= 0 uses the default of 5.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("retrieval is not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	vector, err := c.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := c.queryIndex(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return matches, nil
}

func (c *Client) embed(ctx context.Context, query string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.embedModel,
		"input": query,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openaiBaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.openaiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("embeddings error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("response missing embedding")
	}
	return decoded.Data[0].Embedding, nil
}

func (c *Client) queryIndex(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	body, err := json.Marshal(map[string]any{
		"namespace":       c.namespace,
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.indexHost+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.indexKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("index error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Matches []struct {
			ID       string  `json:"id"`
			Score    float64 `json:"score"`
			Metadata struct {
				Text string `json:"text"`
			} `json:"metadata"`
		} `json:"matches"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	matches := make([]Match, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		matches = append(matches, Match{
			ID:    m.ID,
			Score: m.Score,
			Text:  strings.TrimSpace(m.Metadata.Text),
		})
	}
	return matches, nil
}
