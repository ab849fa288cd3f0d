package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

// Verify interface compliance
var _ vectorstore.Storage = (*Storage)(nil)

// Storage is a minimal REST client to Qdrant. Each index is a collection.
type Storage struct {
	url    string
	apiKey string
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Storage) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) (bool, error) {
	if spec.Dimension <= 0 {
		return false, errors.New("invalid dimension")
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(spec.Name), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return false, err
	}
	if status == http.StatusOK {
		return false, nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": distance(spec.Metric),
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(spec.Name), body, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) Upsert(ctx context.Context, index string, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	points := make([]map[string]any, len(docs))
	for i, d := range docs {
		points[i] = map[string]any{
			"id":     d.ID,
			"vector": vectors[i],
			"payload": map[string]any{
				"content":   d.Content,
				"commodity": d.Metadata.Commodity,
				"month":     d.Metadata.Month,
				"topic":     d.Metadata.Topic,
			},
		}
	}
	body := map[string]any{"points": points}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL(index)+"/points?wait=true", body, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, index string, vector []float64, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL(index)+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := domain.Document{ID: fmt.Sprint(r.ID)}
		if v, ok := r.Payload["content"].(string); ok {
			doc.Content = v
		}
		if v, ok := r.Payload["commodity"].(string); ok {
			doc.Metadata.Commodity = v
		}
		if v, ok := r.Payload["month"].(string); ok {
			doc.Metadata.Month = v
		}
		if v, ok := r.Payload["topic"].(string); ok {
			doc.Metadata.Topic = v
		}
		results = append(results, domain.SearchResult{Document: doc, Score: r.Score})
	}
	return results, nil
}

func buildFilter(f domain.Filter) map[string]any {
	terms := f.Terms()
	if len(terms) == 0 {
		return nil
	}
	must := make([]map[string]any, len(terms))
	for i, t := range terms {
		must[i] = map[string]any{
			"key":   t.Key,
			"match": map[string]any{"value": t.Value},
		}
	}
	return map[string]any{"must": must}
}

func distance(metric string) string {
	switch strings.ToLower(metric) {
	case "dotproduct", "dot":
		return "Dot"
	case "euclidean", "euclid":
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *Storage) collectionURL(name string) string {
	return fmt.Sprintf("%s/collections/%s", s.url, name)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
