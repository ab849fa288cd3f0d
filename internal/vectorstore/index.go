package vectorstore

import (
	"context"
	"fmt"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/embedding"
)

// Index binds one named index of a Storage to the embedder used for both its
// documents and its queries.
type Index struct {
	spec     IndexSpec
	storage  Storage
	embedder embedding.Embedder
}

func NewIndex(spec IndexSpec, storage Storage, embedder embedding.Embedder) *Index {
	if spec.Metric == "" {
		spec.Metric = MetricCosine
	}
	return &Index{spec: spec, storage: storage, embedder: embedder}
}

func (i *Index) Name() string { return i.spec.Name }

// Ensure creates the index if it does not exist. An existing index is left alone.
func (i *Index) Ensure(ctx context.Context) (bool, error) {
	if d := i.embedder.Dimension(); d > 0 && i.spec.Dimension > 0 && d != i.spec.Dimension {
		return false, fmt.Errorf("%w: embedder %s produces %d, index %s expects %d",
			domain.ErrDimensionMismatch, i.embedder.Name(), d, i.spec.Name, i.spec.Dimension)
	}
	created, err := i.storage.EnsureIndex(ctx, i.spec)
	if err != nil {
		return false, fmt.Errorf("ensure index %s: %w", i.spec.Name, err)
	}
	return created, nil
}

// AddDocuments embeds and upserts docs. Documents already stored under the same
// ID are replaced; nothing else is touched.
func (i *Index) AddDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	vectors := make([][]float64, len(docs))
	for j, d := range docs {
		vec, err := i.embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", d.ID, err)
		}
		vectors[j] = vec
	}
	if err := i.storage.Upsert(ctx, i.spec.Name, docs, vectors); err != nil {
		return fmt.Errorf("upsert into %s: %w", i.spec.Name, err)
	}
	return nil
}

// SimilaritySearch returns at most k documents matching filter, most similar to
// query first.
func (i *Index) SimilaritySearch(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.SearchResult, error) {
	if filter.IsEmpty() {
		return nil, fmt.Errorf("search %s: %w: no field set", i.spec.Name, domain.ErrInvalidFilter)
	}
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	res, err := i.storage.Search(ctx, i.spec.Name, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", i.spec.Name, err)
	}
	return res, nil
}

// Write makes an Index usable as an ingest sink: it ensures the index and adds docs.
func (i *Index) Write(ctx context.Context, docs []domain.Document) error {
	if _, err := i.Ensure(ctx); err != nil {
		return err
	}
	return i.AddDocuments(ctx, docs)
}
