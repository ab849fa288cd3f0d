package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client calls the Hugging Face feature-extraction pipeline (hosted inference or
// a self-hosted text-embeddings-inference server exposing the same route).
type Client struct {
	baseURL   string
	token     string
	model     string
	dimension int
	client    *http.Client
}

// Config configures the feature-extraction client.
type Config struct {
	BaseURL   string
	TokenEnv  string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewClient creates a feature-extraction client. A missing token is allowed for
// self-hosted servers.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.huggingface.co/hf-inference"
	}
	if cfg.TokenEnv == "" {
		cfg.TokenEnv = "HUGGINGFACEHUB_ACCESS_TOKEN"
	}
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     os.Getenv(cfg.TokenEnv),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: t},
	}
}

func (c *Client) Name() string { return "huggingface:" + c.model }

func (c *Client) Dimension() int { return c.dimension }

// Embed returns the sentence embedding of text. Token-level output is mean-pooled.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/models/%s/pipeline/feature-extraction", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface embed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface embed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("huggingface embed failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	vec, err := decode(payload)
	if err != nil {
		return nil, err
	}
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("huggingface embed returned %d values, expected %d", len(vec), c.dimension)
	}
	return vec, nil
}

func decode(payload []byte) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(payload, &flat); err == nil {
		return flat, nil
	}
	var rows [][]float64
	if err := json.Unmarshal(payload, &rows); err == nil && len(rows) > 0 {
		return meanPool(rows), nil
	}
	var batched [][][]float64
	if err := json.Unmarshal(payload, &batched); err == nil && len(batched) > 0 && len(batched[0]) > 0 {
		return meanPool(batched[0]), nil
	}
	return nil, fmt.Errorf("huggingface embed: unexpected response %.120s", payload)
}

func meanPool(rows [][]float64) []float64 {
	if len(rows) == 1 {
		return rows[0]
	}
	out := make([]float64, len(rows[0]))
	for _, r := range rows {
		for i := range out {
			if i < len(r) {
				out[i] += r[i]
			}
		}
	}
	for i := range out {
		out[i] /= float64(len(rows))
	}
	return out
}
