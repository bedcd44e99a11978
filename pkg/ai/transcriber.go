package ai

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error)
}

const (
	defaultTranscribeModel    = "whisper-1"
	defaultTranscribeLanguage = "en"
	defaultTranscribeTimeout  = 60 * time.Second
)

// TranscriberConfig configures the Whisper transcription client.
type TranscriberConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// WhisperTranscriber calls the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	client   openai.Client
	model    string
	language string
}

// NewWhisperTranscriber builds a Transcriber backed by the OpenAI SDK.
func NewWhisperTranscriber(cfg TranscriberConfig) (*WhisperTranscriber, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultTranscribeModel
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultTranscribeLanguage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTranscribeTimeout
	}
	return &WhisperTranscriber{
		client:   openai.NewClient(openAIOptions(apiKey, strings.TrimSpace(cfg.BaseURL), timeout)...),
		model:    model,
		language: language,
	}, nil
}

// Transcribe uploads the audio as multipart form data and returns the text.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio required")
	}
	if filename == "" {
		filename = "audio.webm"
	}
	if contentType == "" {
		contentType = "audio/webm"
	}
	res, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(audio), filename, contentType),
		Model:    openai.AudioModel(w.model),
		Language: openai.String(w.language),
	})
	if err != nil {
		return "", fmt.Errorf("whisper api error: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
