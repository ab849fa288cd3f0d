package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/ingest"
	"commodity-rag/internal/lexicon"
)

// LexiconConfig lists the years and commodities questions are matched against.
type LexiconConfig struct {
	Years       []int               `yaml:"years"`
	Commodities []lexicon.Commodity `yaml:"commodities"`

	// WholeWordAbbreviations stops "mar" from matching inside "market".
	WholeWordAbbreviations bool `yaml:"whole_word_abbreviations"`
}

// IndexesConfig names the three indexes and how they are created.
type IndexesConfig struct {
	Commodities string `yaml:"commodities"`
	News        string `yaml:"news"`
	Strategies  string `yaml:"strategies"`
	Dimension   int    `yaml:"dimension"`
	Metric      string `yaml:"metric"`
	Cloud       string `yaml:"cloud"`
	Region      string `yaml:"region"`
}

// HuggingFaceEmbedderConfig configures the feature-extraction embedder.
type HuggingFaceEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	TokenEnv    string `yaml:"token_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbeddingCacheConfig enables the Redis cache in front of the embedder.
type EmbeddingCacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                     `yaml:"type"`
	HuggingFace *HuggingFaceEmbedderConfig `yaml:"huggingface,omitempty"`
	OpenAI      *OpenAIEmbedderConfig      `yaml:"openai,omitempty"`
	Cache       EmbeddingCacheConfig       `yaml:"cache"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type          string               `yaml:"type"`
	Memory        *MemoryConfig        `yaml:"memory,omitempty"`
	Pinecone      *PineconeConfig      `yaml:"pinecone,omitempty"`
	Qdrant        *QdrantConfig        `yaml:"qdrant,omitempty"`
	Elasticsearch *ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
	PGVector      *PGVectorConfig      `yaml:"pgvector,omitempty"`
}

// MemoryConfig persists the in-process store when Path is set.
type MemoryConfig struct {
	Path string `yaml:"path"`
}

type PineconeConfig struct {
	ControlURL  string `yaml:"control_url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

type PGVectorConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig selects the language model used for answers and summaries.
type LLMConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

type MarketDataConfig struct {
	Type     string         `yaml:"type"`
	Lookback string         `yaml:"lookback"`
	Yahoo    *YahooConfig   `yaml:"yahoo,omitempty"`
	Finnhub  *FinnhubConfig `yaml:"finnhub,omitempty"`
}

type YahooConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type FinnhubConfig struct {
	APIKey string `yaml:"api_key"`
	// Symbols maps lexicon tickers to Finnhub symbols.
	Symbols map[string]string `yaml:"symbols"`
}

// ChunkerConfig configures optional sentence chunking of strategy and news
// sections. Zero sentences per chunk keeps each section whole.
type ChunkerConfig struct {
	SentencesPerChunk int `yaml:"sentences_per_chunk"`
	OverlapSentences  int `yaml:"overlap_sentences"`
}

type StrategyConfig struct {
	PDFPath  string                   `yaml:"pdf_path"`
	Sections []ingest.StrategySection `yaml:"sections"`
}

type NewsConfig struct {
	PDFPath string `yaml:"pdf_path"`
	// StrictMonths skips sections whose month cannot be mapped instead of
	// storing the raw heading.
	StrictMonths bool `yaml:"strict_months"`
}

// IngestConfig covers the three indexers.
type IngestConfig struct {
	// Sink is "index" (write directly) or "kafka" (publish for index-worker).
	Sink     string         `yaml:"sink"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Strategy StrategyConfig `yaml:"strategy"`
	News     NewsConfig     `yaml:"news"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type AssistantConfig struct {
	DefaultMonth    string `yaml:"default_month"`
	MaxContextChars int    `yaml:"max_context_chars"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Lexicon     LexiconConfig     `yaml:"lexicon"`
	Indexes     IndexesConfig     `yaml:"indexes"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Assistant   AssistantConfig   `yaml:"assistant"`
	API         APIConfig         `yaml:"api"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied after the file and the result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/commodity-rag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "commodity-rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Lexicon: LexiconConfig{
			Years:       append([]int(nil), lexicon.DefaultYears...),
			Commodities: append([]lexicon.Commodity(nil), lexicon.DefaultCommodities...),
		},
		Indexes: IndexesConfig{
			Commodities: "commodities-rag",
			News:        "world-news-rag",
			Strategies:  "commodity-strategy-rag",
			Dimension:   384,
			Metric:      "cosine",
			Cloud:       "aws",
			Region:      "us-east-1",
		},
		Embedder:    EmbedderConfig{Type: "huggingface"},
		VectorStore: VectorStoreConfig{Type: "memory", Memory: &MemoryConfig{Path: "data/vectors.json"}},
		LLM:         LLMConfig{Type: "huggingface"},
		MarketData:  MarketDataConfig{Type: "yahoo", Lookback: "1y"},
		Ingest: IngestConfig{
			Sink: "index",
			Strategy: StrategyConfig{
				PDFPath:  "resources/file.pdf",
				Sections: append([]ingest.StrategySection(nil), ingest.DefaultStrategySections...),
			},
			News: NewsConfig{PDFPath: "resources/file.pdf"},
		},
		Kafka:     KafkaConfig{Topic: "rag-documents", GroupID: "index-worker"},
		Assistant: AssistantConfig{DefaultMonth: "2025-04"},
		API:       APIConfig{Addr: ":8080"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "huggingface"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "huggingface"
	}
	if cfg.MarketData.Type == "" {
		cfg.MarketData.Type = "yahoo"
	}
	if cfg.Indexes.Dimension == 0 {
		cfg.Indexes.Dimension = 384
	}
	if cfg.Indexes.Metric == "" {
		cfg.Indexes.Metric = "cosine"
	}
	if cfg.Embedder.Type == "huggingface" {
		if cfg.Embedder.HuggingFace == nil {
			cfg.Embedder.HuggingFace = &HuggingFaceEmbedderConfig{}
		}
		if cfg.Embedder.HuggingFace.Model == "" {
			cfg.Embedder.HuggingFace.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if cfg.Embedder.HuggingFace.TimeoutSecs == 0 {
			cfg.Embedder.HuggingFace.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Cache.Enabled && cfg.Embedder.Cache.TTLSecs == 0 {
		cfg.Embedder.Cache.TTLSecs = 7 * 24 * 3600
	}
	if cfg.MarketData.Lookback == "" {
		cfg.MarketData.Lookback = "1y"
	}
	if len(cfg.Ingest.Strategy.Sections) == 0 {
		cfg.Ingest.Strategy.Sections = append([]ingest.StrategySection(nil), ingest.DefaultStrategySections...)
	}
	if cfg.Ingest.Sink == "" {
		cfg.Ingest.Sink = "index"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "rag-documents"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "index-worker"
	}
	if cfg.Assistant.DefaultMonth == "" {
		cfg.Assistant.DefaultMonth = "2025-04"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
}

// applyEnv overlays the environment variables the indexers have always read.
// API keys for the OpenAI, Anthropic and Hugging Face clients are read by the
// clients themselves through their *_env settings.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("INDEX_NAME"); v != "" {
		cfg.Indexes.Commodities = v
	}
	if v := os.Getenv("CLOUD"); v != "" {
		cfg.Indexes.Cloud = v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Indexes.Region = v
	}
	if v := os.Getenv("HF_EMBEDDING_MODEL"); v != "" {
		if cfg.Embedder.HuggingFace == nil {
			cfg.Embedder.HuggingFace = &HuggingFaceEmbedderConfig{}
		}
		cfg.Embedder.HuggingFace.Model = v
	}
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
		cfg.VectorStore.Pinecone.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		if cfg.VectorStore.PGVector == nil {
			cfg.VectorStore.PGVector = &PGVectorConfig{}
		}
		cfg.VectorStore.PGVector.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Embedder.Cache.RedisURL = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		if cfg.MarketData.Finnhub == nil {
			cfg.MarketData.Finnhub = &FinnhubConfig{}
		}
		cfg.MarketData.Finnhub.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects unknown component types and settings the components
// cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown type %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("embedder.type", c.Embedder.Type, "huggingface", "openai", "hashing")
	check("vector_store.type", c.VectorStore.Type, "memory", "pinecone", "qdrant", "elasticsearch", "pgvector")
	check("llm.type", c.LLM.Type, "huggingface", "openai", "anthropic", "extractive")
	check("market_data.type", c.MarketData.Type, "yahoo", "finnhub")
	check("ingest.sink", c.Ingest.Sink, "index", "kafka")

	if c.Indexes.Commodities == "" || c.Indexes.News == "" || c.Indexes.Strategies == "" {
		errs = append(errs, errors.New("indexes: all three index names are required"))
	}
	if c.Indexes.Dimension < 0 {
		errs = append(errs, fmt.Errorf("indexes.dimension: must be positive, got %d", c.Indexes.Dimension))
	}
	if !domain.IsMonthToken(c.Assistant.DefaultMonth) {
		errs = append(errs, fmt.Errorf("assistant.default_month: %q is not YYYY-MM", c.Assistant.DefaultMonth))
	}
	if c.Assistant.MaxContextChars < 0 {
		errs = append(errs, errors.New("assistant.max_context_chars: must not be negative"))
	}
	for _, cm := range c.Lexicon.Commodities {
		if cm.Name == "" || len(cm.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("lexicon.commodities: %q needs a name and at least one keyword", cm.Name))
		}
	}
	if c.Ingest.Sink == "kafka" && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers: required when ingest.sink is kafka"))
	}
	switch c.VectorStore.Type {
	case "pinecone":
		if c.VectorStore.Pinecone == nil || c.VectorStore.Pinecone.APIKey == "" {
			errs = append(errs, errors.New("vector_store.pinecone.api_key: required (or PINECONE_API_KEY)"))
		}
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			errs = append(errs, errors.New("vector_store.qdrant.url: required"))
		}
	case "elasticsearch":
		if c.VectorStore.Elasticsearch == nil || len(c.VectorStore.Elasticsearch.Addresses) == 0 {
			errs = append(errs, errors.New("vector_store.elasticsearch.addresses: required"))
		}
	case "pgvector":
		if c.VectorStore.PGVector == nil || c.VectorStore.PGVector.URL == "" {
			errs = append(errs, errors.New("vector_store.pgvector.url: required (or DATABASE_URL)"))
		}
	}
	if c.MarketData.Type == "finnhub" && (c.MarketData.Finnhub == nil || c.MarketData.Finnhub.APIKey == "") {
		errs = append(errs, errors.New("market_data.finnhub.api_key: required (or FINNHUB_API_KEY)"))
	}
	return errors.Join(errs...)
}
