package vectorstore

import (
	"context"

	"commodity-rag/internal/domain"
)

// MetricCosine is the only similarity metric the indexes are created with.
const MetricCosine = "cosine"

// IndexSpec describes an index to create when it does not exist yet.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
	// Cloud and Region only matter to serverless backends.
	Cloud  string
	Region string
}

// Storage persists vectors in named indexes and supports filtered similarity search.
type Storage interface {
	// EnsureIndex creates the index if absent and reports whether it did.
	EnsureIndex(ctx context.Context, spec IndexSpec) (created bool, err error)
	Upsert(ctx context.Context, index string, docs []domain.Document, vectors [][]float64) error
	Search(ctx context.Context, index string, vector []float64, topK int, filter domain.Filter) ([]domain.SearchResult, error)
}
