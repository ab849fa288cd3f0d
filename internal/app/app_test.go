package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-rag/internal/config"
	"commodity-rag/internal/domain"
	"commodity-rag/internal/embedding/cache"
	"commodity-rag/internal/ingest"
	"commodity-rag/internal/queue"
	"commodity-rag/internal/vectorstore/memory"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Embedder.Type = "hashing"
	cfg.VectorStore.Type = "memory"
	cfg.VectorStore.Memory = nil
	cfg.LLM.Type = "extractive"
	return cfg
}

func TestNewBuildsIndexes(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "hashing", a.Embedder.Name())
	assert.Equal(t, 384, a.Embedder.Dimension())
	assert.IsType(t, &memory.Storage{}, a.Storage)
	assert.Equal(t, cfg.Indexes.Commodities, a.Commodities.Name())
	assert.Equal(t, "world-news-rag", a.News.Name())
	assert.Equal(t, "commodity-strategy-rag", a.Strategies.Name())
}

func TestNewRejectsUnknownTypes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder.Type = "word2vec"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown embedder")

	cfg = testConfig(t)
	cfg.VectorStore.Type = "faiss"
	_, err = New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown vector store")

	cfg = testConfig(t)
	cfg.VectorStore.Type = "qdrant"
	cfg.VectorStore.Qdrant = nil
	_, err = New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "qdrant config missing")
}

func TestEmbeddingCacheIsWired(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Embedder.Cache = config.EmbeddingCacheConfig{Enabled: true, RedisURL: "redis://" + mr.Addr(), TTLSecs: 60}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &cache.Embedder{}, a.Embedder)
	_, err = a.Embedder.Embed(context.Background(), "gold rallied")
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)
}

func TestMemorySnapshotSharedAcrossApps(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.VectorStore.Memory = &config.MemoryConfig{Path: filepath.Join(t.TempDir(), "store.json")}

	writer, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	doc := domain.NewDocument("Gold Trading Strategies\nBuy dips.", domain.Metadata{Commodity: "Gold", Topic: domain.TopicTradingStrategy})
	require.NoError(t, writer.Sink(writer.Strategies).Write(ctx, []domain.Document{doc}))
	require.NoError(t, writer.Close())

	reader, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer reader.Close()
	filter, err := domain.NewFilter("Gold", "", domain.TopicTradingStrategy)
	require.NoError(t, err)
	res, err := reader.Strategies.SimilaritySearch(ctx, "gold strategy", 1, filter)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, doc.ID, res[0].Document.ID)
}

func TestSinkSelection(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ingest.IndexSink{}, a.Sink(a.News))
	require.NoError(t, a.Close())

	cfg.Ingest.Sink = "kafka"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	a, err = New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &queue.Publisher{}, a.Sink(a.News))
	require.NoError(t, a.Close())
}

func TestIndexSinksCoverAllIndexes(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	sinks := a.IndexSinks()
	assert.Len(t, sinks, 3)
	for _, name := range []string{"commodities-rag", "world-news-rag", "commodity-strategy-rag"} {
		assert.Contains(t, sinks, name)
	}
}

func TestMarketDataSelection(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.MarketData()
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())

	cfg.MarketData.Type = "finnhub"
	cfg.MarketData.Finnhub = &config.FinnhubConfig{APIKey: "key"}
	p, err = a.MarketData()
	require.NoError(t, err)
	assert.Equal(t, "finnhub", p.Name())

	cfg.MarketData.Finnhub = nil
	_, err = a.MarketData()
	assert.Error(t, err)
}

func TestAssistantEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	summary := domain.NewDocument("Gold rose steadily through April 2025 and closed near its high.",
		domain.Metadata{Commodity: "Gold", Month: "2025-04"})
	news := domain.NewDocument("April 2025\nCentral banks kept buying gold.",
		domain.Metadata{Month: "2025-04", Topic: domain.TopicWorldNews})
	strategy := domain.NewDocument("Gold Trading Strategies\nBuy pullbacks toward support.",
		domain.Metadata{Commodity: "Gold", Topic: domain.TopicTradingStrategy})
	require.NoError(t, a.Sink(a.Commodities).Write(ctx, []domain.Document{summary}))
	require.NoError(t, a.Sink(a.News).Write(ctx, []domain.Document{news}))
	require.NoError(t, a.Sink(a.Strategies).Write(ctx, []domain.Document{strategy}))

	asst, err := a.Assistant()
	require.NoError(t, err)
	resp, err := asst.Ask(ctx, "How did gold do in April 2025?")
	require.NoError(t, err)

	assert.Equal(t, []string{"Gold"}, resp.Commodities)
	assert.Equal(t, []string{"2025-04"}, resp.Months)
	assert.Contains(t, resp.Prompt, "Gold rose steadily")
	assert.Contains(t, resp.Prompt, "Central banks kept buying gold.")
	assert.Contains(t, resp.Prompt, "Buy pullbacks toward support.")
	assert.NotEmpty(t, resp.Answer)
}
