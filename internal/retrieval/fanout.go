package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/prompt"
)

// Searcher is the read side of a vector index.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.SearchResult, error)
}

// Fanout runs the filtered top-1 lookups against the three indexes and renders
// the hits as labeled context blocks.
type Fanout struct {
	summaries  Searcher
	news       Searcher
	strategies Searcher
	log        *slog.Logger
}

func NewFanout(summaries, news, strategies Searcher, log *slog.Logger) *Fanout {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fanout{summaries: summaries, news: news, strategies: strategies, log: log}
}

// MonthlySummaries looks up one summary per (commodity, month) pair, commodity-major.
func (f *Fanout) MonthlySummaries(ctx context.Context, commodities, months []string) (string, error) {
	var parts []string
	for _, c := range commodities {
		for _, m := range months {
			block, err := f.lookup(ctx, f.summaries, c+" in "+m, c, m, "",
				fmt.Sprintf("Monthly Summary for %s in %s", c, m))
			if err != nil {
				return "", err
			}
			parts = append(parts, block...)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// WorldNews looks up one news section per month.
func (f *Fanout) WorldNews(ctx context.Context, months []string) (string, error) {
	var parts []string
	for _, m := range months {
		block, err := f.lookup(ctx, f.news, "World news in "+m, "", m, domain.TopicWorldNews,
			"World News for "+m)
		if err != nil {
			return "", err
		}
		parts = append(parts, block...)
	}
	return strings.Join(parts, "\n"), nil
}

// TradingStrategies looks up one strategy section per commodity.
func (f *Fanout) TradingStrategies(ctx context.Context, commodities []string) (string, error) {
	var parts []string
	for _, c := range commodities {
		block, err := f.lookup(ctx, f.strategies, "Trading strategy for "+c, c, "", domain.TopicTradingStrategy,
			"Trading Strategy for "+c)
		if err != nil {
			return "", err
		}
		parts = append(parts, block...)
	}
	return strings.Join(parts, "\n"), nil
}

// Gather runs the three categories concurrently. The result order is fixed
// regardless of which lookup finishes first.
func (f *Fanout) Gather(ctx context.Context, commodities, months []string) (prompt.Sections, error) {
	var s prompt.Sections
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Summaries, err = f.MonthlySummaries(ctx, commodities, months)
		return err
	})
	g.Go(func() (err error) {
		s.News, err = f.WorldNews(ctx, months)
		return err
	})
	g.Go(func() (err error) {
		s.Strategies, err = f.TradingStrategies(ctx, commodities)
		return err
	})
	if err := g.Wait(); err != nil {
		return prompt.Sections{}, err
	}
	return s, nil
}

func (f *Fanout) lookup(ctx context.Context, idx Searcher, query, commodity, month, topic, label string) ([]string, error) {
	filter, err := domain.NewFilter(commodity, month, topic)
	if err != nil {
		return nil, err
	}
	res, err := idx.SimilaritySearch(ctx, query, 1, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve %q: %w", label, err)
	}
	if len(res) == 0 {
		f.log.Debug("no match", "label", label)
		return nil, nil
	}
	blocks := make([]string, 0, len(res))
	for _, r := range res {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s\n", label, strings.TrimSpace(r.Document.Content)))
	}
	return blocks, nil
}
