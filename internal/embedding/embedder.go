package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Dimension may return 0 for remote models until the first vector is produced.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}
