package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"selah/internal/util"
	"selah/pkg/domain"
	"selah/pkg/guidance"
)

const (
	defaultVerseLimit     = 5
	maxVerseLimit         = 20
	defaultVerseThreshold = 0.5
	audioFilename         = "audio.webm"
	audioContentType      = "audio/webm"
)

// GuidanceConfigured reports whether a text generator is wired.
func (a *App) GuidanceConfigured() bool {
	return a.pipeline != nil
}

// Guidance runs the guidance pipeline. Only an invalid request or a missing
// generator is an error; upstream failures come back as fallback results.
func (a *App) Guidance(ctx context.Context, req guidance.Request) (guidance.Result, error) {
	if err := req.Validate(); err != nil {
		return guidance.Result{}, err
	}
	if a.pipeline == nil {
		return guidance.Result{}, ErrGuidanceNotConfigured
	}
	res := a.pipeline.Generate(ctx, req)
	if res.Degraded() {
		util.LoggerFromContext(ctx).Warn("guidance fallback", "kind", res.Kind.String(), "err", res.Reason)
	}
	return res, nil
}

// Transcription is the outcome of a transcribe call. AudioKey and AudioURL
// are set only when the recording was archived.
type Transcription struct {
	Text     string
	AudioKey string
	AudioURL string
}

// TranscriberConfigured reports whether a speech-to-text backend is wired.
func (a *App) TranscriberConfigured() bool {
	return a.transcriber != nil
}

// Transcribe decodes base64 audio and returns its text. The recording is
// archived first when object storage is configured; an archived recording
// is discarded again if transcription fails.
func (a *App) Transcribe(ctx context.Context, audioBase64 string) (Transcription, error) {
	if a.transcriber == nil {
		return Transcription{}, ErrTranscriberNotConfigured
	}
	audioBase64 = strings.TrimSpace(audioBase64)
	if audioBase64 == "" {
		return Transcription{}, ErrAudioRequired
	}
	if i := strings.Index(audioBase64, ";base64,"); i >= 0 && strings.HasPrefix(audioBase64, "data:") {
		audioBase64 = audioBase64[i+len(";base64,"):]
	}
	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil || len(audio) == 0 {
		return Transcription{}, ErrInvalidAudio
	}
	logger := util.LoggerFromContext(ctx)

	var key string
	if a.archive != nil {
		key, err = a.archive.Save(ctx, uuid.NewString(), audio, audioContentType, a.now())
		if err != nil {
			logger.Warn("archive audio failed", "err", err)
			key = ""
		}
	}

	text, err := a.transcriber.Transcribe(ctx, audio, audioFilename, audioContentType)
	if err != nil {
		if key != "" {
			if derr := a.archive.Discard(context.WithoutCancel(ctx), key); derr != nil {
				logger.Warn("discard archived audio failed", "key", key, "err", derr)
			}
		}
		return Transcription{}, fmt.Errorf("transcribe: %w", err)
	}

	out := Transcription{Text: text, AudioKey: key}
	if key != "" {
		url, err := a.archive.PlaybackURL(ctx, key)
		if err != nil {
			logger.Warn("presign audio failed", "key", key, "err", err)
		}
		out.AudioURL = url
	}
	return out, nil
}

// SearchVerses embeds query and returns the closest verses above threshold.
func (a *App) SearchVerses(ctx context.Context, query string, limit int, threshold float64) ([]domain.BibleVerse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	if a.embedder == nil {
		return nil, ErrSearchNotConfigured
	}
	if limit <= 0 {
		limit = defaultVerseLimit
	}
	limit = min(limit, maxVerseLimit)
	if threshold <= 0 || threshold > 1 {
		threshold = defaultVerseThreshold
	}
	vec, err := a.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	verses, err := a.store.SearchVerses(vec, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("search verses: %w", err)
	}
	return verses, nil
}
