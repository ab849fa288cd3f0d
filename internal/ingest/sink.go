package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

const sampleChars = 300

// IndexSink writes documents straight into a vector index, creating the index
// on first use.
type IndexSink struct {
	index *vectorstore.Index
	log   *slog.Logger
}

func NewIndexSink(index *vectorstore.Index, log *slog.Logger) *IndexSink {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &IndexSink{index: index, log: log}
}

func (s *IndexSink) Write(ctx context.Context, docs []domain.Document) error {
	created, err := s.index.Ensure(ctx)
	if err != nil {
		return err
	}
	if created {
		s.log.Info("created new index", "index", s.index.Name())
	} else {
		s.log.Info("using existing index", "index", s.index.Name())
	}
	return s.index.AddDocuments(ctx, docs)
}

// Publish prints a sample of docs to out and hands them to sink. Empty input
// still reaches the sink so the index exists for the assistant.
func Publish(ctx context.Context, docs []domain.Document, sink domain.DocumentSink, out io.Writer, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fmt.Fprintf(out, "\nExtracted %d documents.\n", len(docs))
	if len(docs) > 0 {
		fmt.Fprint(out, Sample(docs[0]))
	}
	log.Info("storing documents", "count", len(docs))
	if err := sink.Write(ctx, docs); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	log.Info("finished indexing", "count", len(docs))
	return nil
}

// Sample renders a document's metadata and the first characters of its content.
func Sample(d domain.Document) string {
	content := d.Content
	if utf8.RuneCountInString(content) > sampleChars {
		content = string([]rune(content)[:sampleChars])
	}
	return fmt.Sprintf("\n--- Sample Document ---\nMetadata: %s\nContent (truncated): %s ...\n", formatMetadata(d.Metadata), content)
}

func formatMetadata(md domain.Metadata) string {
	s := "{"
	for i, t := range (domain.Filter{Commodity: md.Commodity, Month: md.Month, Topic: md.Topic}).Terms() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%q: %q", t.Key, t.Value)
	}
	return s + "}"
}
