package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaClient talks to an Ollama server. It backs embeddings for verse
// search and, in development, guidance generation.
type OllamaClient struct {
	baseURL string
	http    *http.Client
}

// NewOllamaClient returns a client for baseURL, or the local default.
func NewOllamaClient(baseURL string) *OllamaClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaClient{baseURL: baseURL, http: &http.Client{Timeout: 60 * time.Second}}
}

// ollamaStatusError is a non-2xx reply.
type ollamaStatusError struct {
	Code    int
	Message string
}

func (e *ollamaStatusError) Error() string {
	return fmt.Sprintf("ollama: %d %s", e.Code, e.Message)
}

// Embed returns the vector for text. Servers without /api/embed are asked
// through the older /api/embeddings route.
func (c *OllamaClient) Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("ollama: embedding model required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("ollama: embedding text required")
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
		Embedding  []float32   `json:"embedding"`
	}
	in := map[string]any{"model": model, "input": text}
	if dimensions > 0 {
		in["dimensions"] = dimensions
	}
	err := c.post(ctx, "/api/embed", in, &out)
	var status *ollamaStatusError
	if errors.As(err, &status) && (status.Code == http.StatusNotFound || status.Code == http.StatusMethodNotAllowed) {
		err = c.post(ctx, "/api/embeddings", map[string]any{"model": model, "prompt": text}, &out)
	}
	if err != nil {
		return nil, err
	}
	if len(out.Embeddings) > 0 && len(out.Embeddings[0]) > 0 {
		return out.Embeddings[0], nil
	}
	if len(out.Embedding) > 0 {
		return out.Embedding, nil
	}
	return nil, errors.New("ollama: response has no embedding")
}

func (c *OllamaClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &ollamaStatusError{Code: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OllamaGenerator runs guidance prompts on a local model. Output is
// requested in JSON mode since the guidance parser expects an object.
type OllamaGenerator struct {
	client      *OllamaClient
	model       string
	temperature float64
	maxTokens   int
}

func NewOllamaGenerator(client *OllamaClient, cfg GeneratorConfig) *OllamaGenerator {
	return &OllamaGenerator{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *OllamaGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.model == "" {
		return "", errors.New("ollama: generation model required")
	}
	var messages []ollamaMessage
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: userPrompt})

	var out struct {
		Message ollamaMessage `json:"message"`
	}
	err := g.client.post(ctx, "/api/chat", map[string]any{
		"model":    g.model,
		"messages": messages,
		"stream":   false,
		"format":   "json",
		"options": map[string]any{
			"temperature": g.temperature,
			"num_predict": g.maxTokens,
		},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if strings.TrimSpace(out.Message.Content) == "" {
		return "", errors.New("ollama: empty reply")
	}
	return out.Message.Content, nil
}
