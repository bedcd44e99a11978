package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TextGenerator generates text from a system prompt and user prompt.
// Anthropic, OpenAI(-compatible) and Ollama backends implement it.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrAPIKeyRequired is returned when a hosted provider has no credential.
var ErrAPIKeyRequired = errors.New("ai: api key required")

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

const (
	defaultAnthropicModel  = "claude-3-5-haiku-20241022"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultMaxTokens       = 1500
	defaultTemperature     = 0.7
	defaultGenerateTimeout = 120 * time.Second
)

// GeneratorConfig selects and tunes a text generation backend.
type GeneratorConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func (c GeneratorConfig) normalized() GeneratorConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderAnthropic
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Model = strings.TrimSpace(c.Model)
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultGenerateTimeout
	}
	return c
}

// NewTextGenerator builds the generator named by cfg.Provider.
func NewTextGenerator(cfg GeneratorConfig) (TextGenerator, error) {
	cfg = cfg.normalized()
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicGenerator(cfg)
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg)
	case ProviderOllama:
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL), cfg), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Provider)
	}
}
