package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"selah/internal/util"
	"selah/pkg/guidance"
	"selah/services/journal/internal/app"
)

const callFallbackMessage = "Using fallback guidance"

type guidanceResponse struct {
	Success   bool              `json:"success"`
	Guidance  guidance.Guidance `json:"guidance"`
	Degraded  bool              `json:"degraded,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp"`
}

type transcribeRequest struct {
	Audio string `json:"audio"`
}

type transcribeResponse struct {
	Success   bool   `json:"success"`
	Text      string `json:"text,omitempty"`
	AudioURL  string `json:"audioUrl,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeConfigError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "API configuration error",
		"message": message,
	})
}

func (s *Server) handleGuidance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.guidanceLimiter, "too many guidance requests") {
		return
	}
	if !s.app.GuidanceConfigured() {
		writeConfigError(w, "Guidance generator not configured")
		return
	}
	var req guidance.Request
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Guidance(r.Context(), req)
	switch {
	case errors.Is(err, guidance.ErrSituationRequired):
		writeError(w, http.StatusBadRequest, "Situation is required")
		return
	case errors.Is(err, app.ErrGuidanceNotConfigured):
		writeConfigError(w, "Guidance generator not configured")
		return
	case err != nil:
		writeAppError(w, r, err)
		return
	}
	resp := guidanceResponse{
		Success:   res.Kind != guidance.CallFallback,
		Guidance:  res.Guidance,
		Degraded:  res.Degraded(),
		Timestamp: timestamp(),
	}
	if res.Kind == guidance.CallFallback {
		resp.Error = callFallbackMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.transcribeLimiter, "too many transcription requests") {
		return
	}
	if !s.app.TranscriberConfigured() {
		writeConfigError(w, "Transcription service not configured")
		return
	}
	var req transcribeRequest
	// base64 inflates by 4/3; leave room for the JSON envelope.
	if err := decodeJSON(r, s.maxAudioBytes/3*4+4096, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.app.Transcribe(r.Context(), req.Audio)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, transcribeResponse{
			Success:   true,
			Text:      out.Text,
			AudioURL:  out.AudioURL,
			Timestamp: timestamp(),
		})
	case errors.Is(err, app.ErrAudioRequired):
		writeError(w, http.StatusBadRequest, "Audio data is required")
	case errors.Is(err, app.ErrInvalidAudio):
		writeError(w, http.StatusBadRequest, "Audio data must be base64 encoded")
	case errors.Is(err, app.ErrTranscriberNotConfigured):
		writeConfigError(w, "Transcription service not configured")
	default:
		util.LoggerFromContext(r.Context()).Error("transcription failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, transcribeResponse{
			Success:   false,
			Error:     "Transcription failed",
			Timestamp: timestamp(),
		})
	}
}

func (s *Server) handleVerseSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	var threshold float64
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
			return
		}
		threshold = v
	}
	verses, err := s.app.SearchVerses(r.Context(), r.URL.Query().Get("q"), limit, threshold)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verses)
}

func (s *Server) handleScrolls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	catalog := s.app.Scrolls()
	if title := strings.TrimSpace(r.URL.Query().Get("title")); title != "" {
		scroll, ok := catalog.Find(title)
		if !ok {
			writeError(w, http.StatusNotFound, "scroll not found")
			return
		}
		writeJSON(w, http.StatusOK, scroll)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}
