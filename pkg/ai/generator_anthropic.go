package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client      anthropicsdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicGenerator builds a TextGenerator backed by the Anthropic SDK.
func NewAnthropicGenerator(cfg GeneratorConfig) (*AnthropicGenerator, error) {
	cfg = cfg.normalized()
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicGenerator{
		client:      anthropicsdk.NewClient(opts...),
		model:       model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

// GenerateText implements TextGenerator and returns the concatenated text blocks.
func (g *AnthropicGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt)),
		},
		Temperature: param.NewOpt(g.temperature),
	}
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: trimmed}}
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("empty response from anthropic api")
	}
	return text, nil
}
