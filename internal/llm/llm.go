package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"commodity-rag/internal/domain"
)

// Provider names accepted by New.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderExtractive  = "extractive"
)

// Config selects and configures a language model client.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	MaxTokens int
	// Temperature is only sent when positive.
	Temperature float64
	Timeout     time.Duration
}

// New builds the client named by cfg.Provider.
func New(cfg Config) (domain.LanguageModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderHuggingFace:
		return NewHuggingFace(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderExtractive:
		return NewExtractive(0), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func apiKey(env, fallback string) string {
	if env == "" {
		env = fallback
	}
	return os.Getenv(env)
}
