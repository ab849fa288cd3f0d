package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"commodity-rag/internal/answer"
	"commodity-rag/internal/domain"
	"commodity-rag/internal/lexicon"
	"commodity-rag/internal/marketdata"
	"commodity-rag/internal/prompt"
)

// DefaultLookback is how much daily history the commodity indexer summarizes.
const DefaultLookback = "1y"

// CommodityIndexer turns daily price history into one summary document per
// commodity and calendar month.
type CommodityIndexer struct {
	provider    marketdata.Provider
	model       domain.LanguageModel
	commodities []lexicon.Commodity
	lookback    string
	log         *slog.Logger
}

func NewCommodityIndexer(provider marketdata.Provider, model domain.LanguageModel, commodities []lexicon.Commodity, lookback string, log *slog.Logger) *CommodityIndexer {
	if lookback == "" {
		lookback = DefaultLookback
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CommodityIndexer{provider: provider, model: model, commodities: commodities, lookback: lookback, log: log}
}

// Build fetches, groups and summarizes. A commodity without data is skipped;
// a provider or model failure aborts the run.
func (c *CommodityIndexer) Build(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	for _, cm := range c.commodities {
		c.log.Info("downloading data", "commodity", cm.Name, "ticker", cm.Ticker, "provider", c.provider.Name())
		bars, err := c.provider.History(ctx, cm.Ticker, c.lookback)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", cm.Name, err)
		}
		if len(bars) == 0 {
			c.log.Warn("no data", "commodity", cm.Name)
			continue
		}

		for _, month := range marketdata.GroupByMonth(bars) {
			p, err := prompt.Summary(cm.Name, month.Token, marketdata.FormatDaily(month.Bars))
			if err != nil {
				return nil, err
			}
			raw, err := c.model.Generate(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("summarize %s %s: %w", cm.Name, month.Token, err)
			}
			docs = append(docs, domain.NewDocument(answer.CleanSummary(raw), domain.Metadata{
				Commodity: cm.Name,
				Month:     month.Token,
			}))
			c.log.Debug("summarized", "commodity", cm.Name, "month", month.Token, "days", len(month.Bars))
		}
	}
	return docs, nil
}
