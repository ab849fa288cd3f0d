package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/embedding/hashing"
	"commodity-rag/internal/lexicon"
	"commodity-rag/internal/llm"
	"commodity-rag/internal/marketdata"
	"commodity-rag/internal/vectorstore"
	"commodity-rag/internal/vectorstore/memory"
)

func TestSplitStrategiesScenario(t *testing.T) {
	text := "Gold Trading Strategies\nBuy the dip near support.\nCrude Oil Trading Strategies\nFade OPEC headlines."

	docs := SplitStrategies(text, DefaultStrategySections)
	require.Len(t, docs, 2)
	require.Equal(t, "Gold Trading Strategies\nBuy the dip near support.", docs[0].Content)
	require.Equal(t, domain.Metadata{Commodity: "Gold", Topic: domain.TopicTradingStrategy}, docs[0].Metadata)
	require.Equal(t, "Crude Oil Trading Strategies\nFade OPEC headlines.", docs[1].Content)
	require.Equal(t, domain.Metadata{Commodity: "Crude Oil", Topic: domain.TopicTradingStrategy}, docs[1].Metadata)
}

func TestSplitStrategiesMissingHeading(t *testing.T) {
	require.Empty(t, SplitStrategies("Gold Trading Strategies\nonly gold here", DefaultStrategySections))
	require.Empty(t, SplitStrategies("", DefaultStrategySections))
}

func TestSplitStrategiesCaseAndOrder(t *testing.T) {
	text := "Intro\nCRUDE OIL TRADING STRATEGIES\n  oil body  \ngold trading strategies\n gold body \n"

	docs := SplitStrategies(text, DefaultStrategySections)
	require.Len(t, docs, 2)
	require.Equal(t, "Crude Oil Trading Strategies\noil body", docs[0].Content)
	require.Equal(t, "Crude Oil", docs[0].Metadata.Commodity)
	require.Equal(t, "Gold Trading Strategies\ngold body", docs[1].Content)
}

func TestNewsSplitter(t *testing.T) {
	text := "Digest\nMarch 2025\nTariffs rattled markets.\n\nApril 2025 Central banks bought gold.\nMarch 2023\nOld news."

	docs := NewNewsSplitter(nil, false, nil).Split(text)
	require.Len(t, docs, 3)
	require.Equal(t, "March 2025\nTariffs rattled markets.", docs[0].Content)
	require.Equal(t, domain.Metadata{Month: "2025-03", Topic: domain.TopicWorldNews}, docs[0].Metadata)
	require.Equal(t, "April 2025\nCentral banks bought gold.", docs[1].Content)
	require.Equal(t, "2025-04", docs[1].Metadata.Month)
	require.Equal(t, "March 2023", docs[2].Metadata.Month)

	strict := NewNewsSplitter(nil, true, nil).Split(text)
	require.Len(t, strict, 2)
	require.Equal(t, "2025-04", strict[1].Metadata.Month)

	require.Empty(t, NewNewsSplitter(nil, false, nil).Split("no headings here"))
}

func TestNewsSplitterCustomYears(t *testing.T) {
	lex := lexicon.New([]int{2023}, nil)
	docs := NewNewsSplitter(lex, true, nil).Split("March 2023\nOld news.")
	require.Len(t, docs, 1)
	require.Equal(t, "2023-03", docs[0].Metadata.Month)
}

type stubProvider struct {
	bars map[string][]marketdata.Bar
	err  error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) History(_ context.Context, ticker, period string) ([]marketdata.Bar, error) {
	if period != "1y" {
		return nil, errors.New("unexpected period " + period)
	}
	return s.bars[ticker], s.err
}

type echoModel struct{ prompts []string }

func (m *echoModel) Name() string { return "echo" }

func (m *echoModel) Generate(_ context.Context, p string) (string, error) {
	m.prompts = append(m.prompts, p)
	return p + " The trend was up.", nil
}

func day(y int, mo time.Month, d int) time.Time { return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC) }

func TestCommodityIndexerBuild(t *testing.T) {
	provider := stubProvider{bars: map[string][]marketdata.Bar{
		"GC=F": {
			{Date: day(2025, 3, 31), Open: 1, High: 2, Low: 0.5, Close: 1.5},
			{Date: day(2025, 4, 1), Open: 1.5, High: 2.5, Low: 1, Close: 2},
		},
	}}
	model := &echoModel{}
	docs, err := NewCommodityIndexer(provider, model, lexicon.DefaultCommodities, "", nil).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	require.Equal(t, domain.Metadata{Commodity: "Gold", Month: "2025-03"}, docs[0].Metadata)
	require.Equal(t, domain.Metadata{Commodity: "Gold", Month: "2025-04"}, docs[1].Metadata)
	require.Equal(t, "The trend was up.", docs[0].Content)

	require.Len(t, model.prompts, 2)
	require.Contains(t, model.prompts[0], "daily price data for Gold in 2025-03.")
	require.Contains(t, model.prompts[0], "Data:\n2025-03-31: Open=1.00, High=2.00, Low=0.50, Close=1.50\n\nSummary:")
}

func TestCommodityIndexerErrors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewCommodityIndexer(stubProvider{err: boom}, &echoModel{}, lexicon.DefaultCommodities, "", nil).Build(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestCommodityIndexerWithExtractiveModel(t *testing.T) {
	provider := stubProvider{bars: map[string][]marketdata.Bar{
		"CL=F": {{Date: day(2025, 4, 2), Open: 70, High: 71, Low: 69, Close: 70.5}},
	}}
	docs, err := NewCommodityIndexer(provider, llm.NewExtractive(0), lexicon.DefaultCommodities, "1y", nil).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "Crude Oil", docs[0].Metadata.Commodity)
	require.NotContains(t, docs[0].Content, "Summary:")
	require.Contains(t, docs[0].Content, "2025-04-02")
}

func TestPublishIntoIndex(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	index := vectorstore.NewIndex(vectorstore.IndexSpec{Name: "commodity-strategy-rag", Dimension: 32}, store, hashing.NewEmbedder(32))
	docs := SplitStrategies("Gold Trading Strategies\nA\nCrude Oil Trading Strategies\nB", DefaultStrategySections)

	var out bytes.Buffer
	require.NoError(t, Publish(ctx, docs, NewIndexSink(index, nil), &out, nil))
	require.Equal(t, 2, store.Count("commodity-strategy-rag"))
	require.Contains(t, out.String(), "Extracted 2 documents.")
	require.Contains(t, out.String(), `Metadata: {"commodity": "Gold", "topic": "Trading Strategy"}`)

	// Re-running replaces instead of duplicating.
	require.NoError(t, Publish(ctx, docs, NewIndexSink(index, nil), &out, nil))
	require.Equal(t, 2, store.Count("commodity-strategy-rag"))

	require.NoError(t, Publish(ctx, nil, NewIndexSink(
		vectorstore.NewIndex(vectorstore.IndexSpec{Name: "empty", Dimension: 32}, store, hashing.NewEmbedder(32)), nil), &out, nil))
	require.Equal(t, 0, store.Count("empty"))
}

func TestSampleTruncates(t *testing.T) {
	d := domain.NewDocument(strings.Repeat("é", 400), domain.Metadata{Month: "2025-04"})
	s := Sample(d)
	require.Contains(t, s, "--- Sample Document ---")
	require.Contains(t, s, strings.Repeat("é", 300)+" ...")
	require.NotContains(t, s, strings.Repeat("é", 301))
}
