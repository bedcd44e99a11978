package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAudioContentType = "audio/webm"
	audioPrefix             = "audio/"
)

// AudioKey returns the object key for a recording made at at.
func AudioKey(id string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s.webm", audioPrefix, at.Year(), int(at.Month()), at.Day(), id)
}

// AudioArchive stores voice recordings submitted for transcription.
type AudioArchive struct {
	store     ObjectStore
	urlExpiry time.Duration
}

// NewAudioArchive wraps store. urlExpiry bounds presigned playback links;
// zero disables them.
func NewAudioArchive(store ObjectStore, urlExpiry time.Duration) *AudioArchive {
	return &AudioArchive{store: store, urlExpiry: urlExpiry}
}

// Save uploads audio under AudioKey(id, at) and returns the key.
func (a *AudioArchive) Save(ctx context.Context, id string, audio []byte, contentType string, at time.Time) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio is empty")
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultAudioContentType
	}
	key := AudioKey(id, at)
	if err := a.store.Put(ctx, key, bytes.NewReader(audio), int64(len(audio)), contentType); err != nil {
		return "", err
	}
	return key, nil
}

// PlaybackURL returns a presigned link for key, or "" when links are disabled.
func (a *AudioArchive) PlaybackURL(ctx context.Context, key string) (string, error) {
	if a.urlExpiry <= 0 {
		return "", nil
	}
	return a.store.PresignGet(ctx, key, a.urlExpiry)
}

// Discard removes an archived recording.
func (a *AudioArchive) Discard(ctx context.Context, key string) error {
	return a.store.Delete(ctx, key)
}
