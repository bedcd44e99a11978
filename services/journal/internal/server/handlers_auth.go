package server

import (
	"errors"
	"io"
	"net/http"

	"selah/internal/ratelimit"
	"selah/pkg/domain"
)

// credentials covers both signup and login; Name is ignored on login.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type updateMeRequest struct {
	Name *string `json:"name"`
}

// credentialFlow is the shared shape of signup and login.
type credentialFlow struct {
	event   string
	limited string
	status  int
	exec    func(credentials) (domain.User, string, error)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	s.serveCredentials(w, r, s.signupLimiter, credentialFlow{
		event:   "journal.signup",
		limited: "too many signup attempts",
		status:  http.StatusCreated,
		exec: func(c credentials) (domain.User, string, error) {
			return s.app.SignUp(c.Email, c.Password, c.Name)
		},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.serveCredentials(w, r, s.loginLimiter, credentialFlow{
		event:   "journal.login",
		limited: "too many login attempts",
		status:  http.StatusOK,
		exec: func(c credentials) (domain.User, string, error) {
			return s.app.Login(c.Email, c.Password)
		},
	})
}

func (s *Server) serveCredentials(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, flow credentialFlow) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, limiter, flow.limited) {
		s.audit(r, flow.event, "rate_limited")
		return
	}
	var req credentials
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		s.audit(r, flow.event, "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := flow.exec(req)
	if err != nil {
		s.audit(r, flow.event, "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, flow.event, "success", "user_id", user.ID)
	writeJSON(w, flow.status, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "journal.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "journal.logout", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.LogoutAll(user.ID); err != nil {
		s.audit(r, "journal.logout_all", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.logout_all", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateMeRequest
		if err := decodeJSON(r, maxJSONBytes, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == nil {
			writeJSON(w, http.StatusOK, user)
			return
		}
		updated, err := s.app.UpdateProfile(user, *req.Name)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}
