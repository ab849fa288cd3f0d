package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"commodity-rag/internal/answer"
	"commodity-rag/internal/domain"
	"commodity-rag/internal/entity"
	"commodity-rag/internal/prompt"
)

// DefaultMonth is used when a question names no month.
const DefaultMonth = "2025-04"

var ErrEmptyQuestion = errors.New("empty question")

// Retriever assembles the three context sections for a set of entities.
type Retriever interface {
	Gather(ctx context.Context, commodities, months []string) (prompt.Sections, error)
}

// Config holds the fallbacks applied when extraction finds nothing.
type Config struct {
	DefaultCommodities []string
	DefaultMonth       string
	// MaxContextChars bounds the context handed to the model; 0 means unbounded.
	MaxContextChars int
}

// Assistant answers one question at a time: extract, retrieve, prompt, generate, clean.
type Assistant struct {
	extractor *entity.Extractor
	retriever Retriever
	model     domain.LanguageModel
	cfg       Config
	log       *slog.Logger
}

// Response is everything produced for one question.
type Response struct {
	Question    string   `json:"question"`
	Commodities []string `json:"commodities"`
	Months      []string `json:"months"`
	Prompt      string   `json:"prompt"`
	Answer      string   `json:"answer"`
}

func New(extractor *entity.Extractor, retriever Retriever, model domain.LanguageModel, cfg Config, log *slog.Logger) *Assistant {
	if cfg.DefaultMonth == "" {
		cfg.DefaultMonth = DefaultMonth
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Assistant{extractor: extractor, retriever: retriever, model: model, cfg: cfg, log: log}
}

// Resolve extracts entities from q and fills in the defaults for whatever is missing.
func (a *Assistant) Resolve(q string) entity.Entities {
	ents := a.extractor.Extract(q)
	if len(ents.Commodities) == 0 {
		ents.Commodities = append([]string(nil), a.cfg.DefaultCommodities...)
	}
	if len(ents.Months) == 0 {
		ents.Months = []string{a.cfg.DefaultMonth}
	}
	return ents
}

// Ask runs the full pipeline for one question. The question is passed to the
// prompt verbatim.
func (a *Assistant) Ask(ctx context.Context, q string) (*Response, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuestion
	}
	ents := a.Resolve(q)
	a.log.Debug("entities resolved", "commodities", ents.Commodities, "months", ents.Months)

	sections, err := a.retriever.Gather(ctx, ents.Commodities, ents.Months)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	contextText := sections.Context()
	if truncated, cut := prompt.Truncate(contextText, a.cfg.MaxContextChars); cut {
		a.log.Warn("context truncated", "chars", len(contextText), "max", a.cfg.MaxContextChars)
		contextText = truncated
	}

	p, err := prompt.Query(contextText, q)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	raw, err := a.model.Generate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("generate answer with %s: %w", a.model.Name(), err)
	}

	return &Response{
		Question:    q,
		Commodities: ents.Commodities,
		Months:      ents.Months,
		Prompt:      p,
		Answer:      answer.Clean(raw),
	}, nil
}

// IsQuit reports whether input is one of the exit keywords.
func IsQuit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit":
		return true
	}
	return false
}
