package server

import (
	"net/http"

	"selah/pkg/domain"
	"selah/services/journal/internal/app"
)

type shareRequest struct {
	Mood           domain.Mood      `json:"mood"`
	Gratitude      []string         `json:"gratitude"`
	Content        string           `json:"content"`
	Prayer         string           `json:"prayer"`
	ShareType      domain.ShareType `json:"shareType"`
	IsAnonymous    bool             `json:"isAnonymous"`
	JournalEntryID string           `json:"journalEntryId"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req shareRequest
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	post, err := s.app.Share(r.Context(), user, app.ShareInput{
		Mood:           req.Mood,
		Gratitude:      req.Gratitude,
		Content:        req.Content,
		Prayer:         req.Prayer,
		ShareType:      req.ShareType,
		IsAnonymous:    req.IsAnonymous,
		JournalEntryID: req.JournalEntryID,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	posts, err := s.app.ListPosts(limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handlePrayerWall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	items, err := s.app.ListPrayerWall(limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
