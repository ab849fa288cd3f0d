package domain

import "context"

// LanguageModel turns a prompt into generated text. No streaming.
type LanguageModel interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentSink receives documents produced by an indexer.
type DocumentSink interface {
	Write(ctx context.Context, docs []Document) error
}
