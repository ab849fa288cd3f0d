package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"commodity-rag/internal/assistant"
	"commodity-rag/internal/chunker"
	"commodity-rag/internal/config"
	"commodity-rag/internal/domain"
	"commodity-rag/internal/embedding"
	"commodity-rag/internal/embedding/cache"
	"commodity-rag/internal/embedding/hashing"
	"commodity-rag/internal/embedding/huggingface"
	"commodity-rag/internal/embedding/openai"
	"commodity-rag/internal/entity"
	"commodity-rag/internal/ingest"
	"commodity-rag/internal/lexicon"
	"commodity-rag/internal/llm"
	"commodity-rag/internal/marketdata"
	"commodity-rag/internal/queue"
	"commodity-rag/internal/retrieval"
	"commodity-rag/internal/vectorstore"
	"commodity-rag/internal/vectorstore/elasticsearch"
	"commodity-rag/internal/vectorstore/memory"
	"commodity-rag/internal/vectorstore/pgvector"
	"commodity-rag/internal/vectorstore/pinecone"
	"commodity-rag/internal/vectorstore/qdrant"
)

// App holds the clients shared by every binary. Build it once with New and
// release it with Close.
type App struct {
	Config      *config.AppConfig
	Lexicon     *lexicon.Lexicon
	Embedder    embedding.Embedder
	Storage     vectorstore.Storage
	Commodities *vectorstore.Index
	News        *vectorstore.Index
	Strategies  *vectorstore.Index

	log     *slog.Logger
	closers []func() error
}

// New assembles the embedder, the vector store and the three indexes.
// Language model and market data clients are built on demand since only some
// binaries need them.
func New(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var lexOpts []lexicon.Option
	if cfg.Lexicon.WholeWordAbbreviations {
		lexOpts = append(lexOpts, lexicon.WholeWordAbbreviations())
	}
	a := &App{
		Config:  cfg,
		Lexicon: lexicon.New(cfg.Lexicon.Years, cfg.Lexicon.Commodities, lexOpts...),
		log:     log,
	}

	emb, err := a.newEmbedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Embedder = emb

	st, err := a.newStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Storage = st

	spec := func(name string) vectorstore.IndexSpec {
		return vectorstore.IndexSpec{
			Name:      name,
			Dimension: cfg.Indexes.Dimension,
			Metric:    cfg.Indexes.Metric,
			Cloud:     cfg.Indexes.Cloud,
			Region:    cfg.Indexes.Region,
		}
	}
	a.Commodities = vectorstore.NewIndex(spec(cfg.Indexes.Commodities), st, emb)
	a.News = vectorstore.NewIndex(spec(cfg.Indexes.News), st, emb)
	a.Strategies = vectorstore.NewIndex(spec(cfg.Indexes.Strategies), st, emb)

	log.Info("components ready", "embedder", emb.Name(), "vector_store", cfg.VectorStore.Type)
	return a, nil
}

// Close releases every client opened by the App, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newEmbedder(ctx context.Context) (embedding.Embedder, error) {
	cfg := a.Config
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Indexes.Dimension)
	case "huggingface", "":
		hc := cfg.Embedder.HuggingFace
		if hc == nil {
			hc = &config.HuggingFaceEmbedderConfig{}
		}
		emb = huggingface.NewClient(huggingface.Config{
			BaseURL:   hc.BaseURL,
			TokenEnv:  hc.TokenEnv,
			Model:     hc.Model,
			Dimension: cfg.Indexes.Dimension,
			Timeout:   seconds(hc.TimeoutSecs),
		})
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    seconds(oc.TimeoutSecs),
			MaxRetries: oc.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	if !cfg.Embedder.Cache.Enabled {
		return emb, nil
	}
	client, err := cache.Connect(ctx, cfg.Embedder.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return cache.New(emb, client, seconds(cfg.Embedder.Cache.TTLSecs), a.log), nil
}

func (a *App) newStorage(ctx context.Context) (vectorstore.Storage, error) {
	vs := a.Config.VectorStore
	switch vs.Type {
	case "memory", "":
		if vs.Memory == nil || vs.Memory.Path == "" {
			return memory.NewStorage(), nil
		}
		st, err := memory.Open(vs.Memory.Path)
		if err != nil {
			return nil, fmt.Errorf("open memory snapshot: %w", err)
		}
		return st, nil
	case "pinecone":
		if vs.Pinecone == nil {
			return nil, errors.New("pinecone config missing")
		}
		st, err := pinecone.NewStorage(pinecone.Config{
			ControlURL: vs.Pinecone.ControlURL,
			APIKey:     vs.Pinecone.APIKey,
			Timeout:    seconds(vs.Pinecone.TimeoutSecs),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case "qdrant":
		if vs.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:     vs.Qdrant.URL,
			APIKey:  vs.Qdrant.APIKey,
			Timeout: seconds(vs.Qdrant.TimeoutSecs),
		}), nil
	case "elasticsearch":
		if vs.Elasticsearch == nil {
			return nil, errors.New("elasticsearch config missing")
		}
		st, err := elasticsearch.New(elasticsearch.Config{
			Addresses: vs.Elasticsearch.Addresses,
			Username:  vs.Elasticsearch.Username,
			Password:  vs.Elasticsearch.Password,
		}, a.log)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "pgvector":
		if vs.PGVector == nil {
			return nil, errors.New("pgvector config missing")
		}
		st, err := pgvector.Connect(ctx, pgvector.Config{URL: vs.PGVector.URL})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", vs.Type)
	}
}

// LanguageModel builds the configured model client.
func (a *App) LanguageModel() (domain.LanguageModel, error) {
	c := a.Config.LLM
	m, err := llm.New(llm.Config{
		Provider:    c.Type,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKeyEnv:   c.APIKeyEnv,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     seconds(c.TimeoutSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}
	return m, nil
}

// MarketData builds the configured price history provider.
func (a *App) MarketData() (marketdata.Provider, error) {
	md := a.Config.MarketData
	switch md.Type {
	case "yahoo", "":
		yc := md.Yahoo
		if yc == nil {
			yc = &config.YahooConfig{}
		}
		return marketdata.NewYahoo(yc.BaseURL, seconds(yc.TimeoutSecs)), nil
	case "finnhub":
		if md.Finnhub == nil || md.Finnhub.APIKey == "" {
			return nil, errors.New("finnhub api key missing")
		}
		return marketdata.NewFinnhub(md.Finnhub.APIKey, md.Finnhub.Symbols), nil
	default:
		return nil, fmt.Errorf("unknown market data provider: %s", md.Type)
	}
}

// CommodityIndexer wires the market data provider and the model into the
// monthly summary pipeline.
func (a *App) CommodityIndexer() (*ingest.CommodityIndexer, error) {
	provider, err := a.MarketData()
	if err != nil {
		return nil, err
	}
	model, err := a.LanguageModel()
	if err != nil {
		return nil, err
	}
	return ingest.NewCommodityIndexer(provider, model, a.Lexicon.Commodities(), a.Config.MarketData.Lookback, a.log), nil
}

// Chunker splits strategy and news sections when chunking is configured.
func (a *App) Chunker() *chunker.SentenceChunker {
	c := a.Config.Ingest.Chunker
	return chunker.NewSentenceChunker(c.SentencesPerChunk, c.OverlapSentences)
}

// Sink returns where an indexer should send documents bound for index: the
// index itself, or the Kafka topic the index worker consumes.
func (a *App) Sink(index *vectorstore.Index) domain.DocumentSink {
	if a.Config.Ingest.Sink != "kafka" {
		return ingest.NewIndexSink(index, a.log)
	}
	w := queue.NewWriter(a.Config.Kafka.Brokers, a.Config.Kafka.Topic)
	a.closers = append(a.closers, w.Close)
	return queue.NewPublisher(w, index.Name())
}

// IndexSinks maps each index name to a direct sink, for the index worker.
func (a *App) IndexSinks() map[string]domain.DocumentSink {
	sinks := make(map[string]domain.DocumentSink, 3)
	for _, idx := range []*vectorstore.Index{a.Commodities, a.News, a.Strategies} {
		sinks[idx.Name()] = ingest.NewIndexSink(idx, a.log)
	}
	return sinks
}

// Assistant wires extraction, the three-index fanout and the model.
func (a *App) Assistant() (*assistant.Assistant, error) {
	model, err := a.LanguageModel()
	if err != nil {
		return nil, err
	}
	fanout := retrieval.NewFanout(a.Commodities, a.News, a.Strategies, a.log)
	return assistant.New(entity.NewExtractor(a.Lexicon), fanout, model, assistant.Config{
		DefaultCommodities: a.Lexicon.CommodityNames(),
		DefaultMonth:       a.Config.Assistant.DefaultMonth,
		MaxContextChars:    a.Config.Assistant.MaxContextChars,
	}, a.log), nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
