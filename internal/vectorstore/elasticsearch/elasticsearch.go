package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

const vectorField = "embedding"

type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// Storage keeps each index as an Elasticsearch index with a dense_vector field
// and keyword metadata fields used as knn pre-filters.
type Storage struct {
	es  *elasticsearch.Client
	log *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Storage{es: es, log: logger}, nil
}

type source struct {
	Content   string    `json:"content"`
	Commodity string    `json:"commodity,omitempty"`
	Month     string    `json:"month,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

func (s *Storage) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) (bool, error) {
	if spec.Dimension <= 0 {
		return false, errors.New("invalid dimension")
	}
	res, err := s.es.Indices.Exists([]string{spec.Name}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", spec.Name, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("check index %s failed: %s", spec.Name, res.Status())
	}

	payload, err := json.Marshal(mapping(spec))
	if err != nil {
		return false, fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = s.es.Indices.Create(
		spec.Name,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", spec.Name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return false, fmt.Errorf("create index %s failed: %s", spec.Name, strings.TrimSpace(string(data)))
	}
	s.log.Info("elasticsearch index created", "index", spec.Name, "dimension", spec.Dimension)
	return true, nil
}

func mapping(spec vectorstore.IndexSpec) map[string]any {
	similarity := "cosine"
	if strings.EqualFold(spec.Metric, "dotproduct") {
		similarity = "dot_product"
	}
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"content":   map[string]any{"type": "text"},
				"commodity": keyword,
				"month":     keyword,
				"topic":     keyword,
				vectorField: map[string]any{
					"type":       "dense_vector",
					"dims":       spec.Dimension,
					"index":      true,
					"similarity": similarity,
				},
			},
		},
	}
}

func (s *Storage) Upsert(ctx context.Context, index string, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	for i, d := range docs {
		payload, err := json.Marshal(source{
			Content:   d.Content,
			Commodity: d.Metadata.Commodity,
			Month:     d.Metadata.Month,
			Topic:     d.Metadata.Topic,
			Embedding: vectors[i],
		})
		if err != nil {
			return fmt.Errorf("marshal doc: %w", err)
		}
		req := esapi.IndexRequest{
			Index:      index,
			DocumentID: d.ID,
			Body:       bytes.NewReader(payload),
			Refresh:    "false",
		}
		res, err := req.Do(ctx, s.es)
		if err != nil {
			return fmt.Errorf("index doc: %w", err)
		}
		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			if res.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, index)
			}
			return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(data)))
		}
		res.Body.Close()
	}

	res, err := s.es.Indices.Refresh(
		s.es.Indices.Refresh.WithContext(ctx),
		s.es.Indices.Refresh.WithIndex(index),
	)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("refresh %s failed: %s", index, res.Status())
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, index string, vector []float64, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	payload, err := json.Marshal(knnQuery(vector, topK, filter))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, index)
		}
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source source  `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, domain.SearchResult{
			Document: domain.Document{
				ID:      hit.ID,
				Content: hit.Source.Content,
				Metadata: domain.Metadata{
					Commodity: hit.Source.Commodity,
					Month:     hit.Source.Month,
					Topic:     hit.Source.Topic,
				},
			},
			Score: hit.Score,
		})
	}
	return out, nil
}

func knnQuery(vector []float64, topK int, filter domain.Filter) map[string]any {
	knn := map[string]any{
		"field":          vectorField,
		"query_vector":   vector,
		"k":              topK,
		"num_candidates": max(100, topK*10),
	}
	if terms := filter.Terms(); len(terms) > 0 {
		filters := make([]map[string]any, len(terms))
		for i, t := range terms {
			filters[i] = map[string]any{"term": map[string]any{t.Key: t.Value}}
		}
		knn["filter"] = filters
	}
	return map[string]any{
		"size":    topK,
		"knn":     knn,
		"_source": []string{"content", "commodity", "month", "topic"},
	}
}
