package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"selah/pkg/domain"
	"selah/services/journal/internal/app"
)

type entryRequest struct {
	Date      string      `json:"date"`
	Mood      domain.Mood `json:"mood"`
	Gratitude []string    `json:"gratitude"`
	Content   string      `json:"content"`
	Prayer    string      `json:"prayer"`
}

type prayerRequest struct {
	Request  string                `json:"request"`
	Category domain.PrayerCategory `json:"category"`
}

type answerRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		filter := app.EntryFilter{}
		if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
			since, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
				return
			}
			filter.Since = since
		}
		limit, ok := queryInt(r, "limit")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
		entries, err := s.app.ListEntries(r.Context(), user.ID, filter)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var req entryRequest
		if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, err := s.app.AddEntry(r.Context(), user.ID, app.EntryInput{
			Date:      req.Date,
			Mood:      req.Mood,
			Gratitude: req.Gratitude,
			Content:   req.Content,
			Prayer:    req.Prayer,
		})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/entries/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		entry, err := s.app.GetEntry(user.ID, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.app.DeleteEntry(r.Context(), user.ID, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := s.app.Streak(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	d, err := s.app.Dashboard(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handlePrayers(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		prayers, err := s.app.ListPrayers(user.ID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, prayers)
	case http.MethodPost:
		var req prayerRequest
		if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		prayer, err := s.app.CreatePrayer(user.ID, req.Request, req.Category)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, prayer)
	default:
		methodNotAllowed(w)
	}
}

// handlePrayerByID serves /api/prayers/{id} and /api/prayers/{id}/answer.
func (s *Server) handlePrayerByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/prayers/"), "/"), "/")
	id := parts[0]
	if id == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "answer") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req answerRequest
		if err := decodeJSON(r, maxJSONBytes, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		prayer, err := s.app.AnswerPrayer(user.ID, id, req.Note)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, prayer)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeletePrayer(user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
