package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"selah/internal/ratelimit"
	"selah/internal/util"
	"selah/pkg/auth"
	"selah/pkg/domain"
	"selah/services/journal/internal/app"
)

const (
	maxJSONBytes         = 1 << 20
	defaultMaxAudioBytes = 25 << 20
	rateWindow           = time.Minute
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
	MaxAudioBytes  int64

	// Redis enables per-IP rate limiting; limits are skipped without it.
	Redis                        redis.UniversalClient
	SignupRateLimitPerMinute     int
	LoginRateLimitPerMinute      int
	GuidanceRateLimitPerMinute   int
	TranscribeRateLimitPerMinute int
}

// Server exposes HTTP endpoints for the journal backend.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	allowedOrigins []string
	trustedProxies *util.TrustedProxies
	maxAudioBytes  int64

	signupLimiter     *ratelimit.FixedWindowLimiter
	loginLimiter      *ratelimit.FixedWindowLimiter
	guidanceLimiter   *ratelimit.FixedWindowLimiter
	transcribeLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	maxAudio := cfg.MaxAudioBytes
	if maxAudio <= 0 {
		maxAudio = defaultMaxAudioBytes
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		maxAudioBytes:  maxAudio,
	}
	if cfg.Redis != nil {
		newLimiter := func(name string, limit, def int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				limit = def
			}
			return ratelimit.NewRedisFixedWindowLimiter(cfg.Redis, "selah:journal:ratelimit:"+name, limit, rateWindow)
		}
		var err error
		if s.signupLimiter, err = newLimiter("signup", cfg.SignupRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
		if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.guidanceLimiter, err = newLimiter("guidance", cfg.GuidanceRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.transcribeLimiter, err = newLimiter("transcribe", cfg.TranscribeRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/logout-all", s.authenticated(s.handleLogoutAll))
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// journal
	s.mux.Handle("/api/entries", s.authenticated(s.handleEntries))
	s.mux.Handle("/api/entries/", s.authenticated(s.handleEntryByID))
	s.mux.Handle("/api/streak", s.authenticated(s.handleStreak))
	s.mux.Handle("/api/dashboard", s.authenticated(s.handleDashboard))
	s.mux.Handle("/api/prayers", s.authenticated(s.handlePrayers))
	s.mux.Handle("/api/prayers/", s.authenticated(s.handlePrayerByID))

	// community
	s.mux.Handle("/api/community/share", s.authenticated(s.handleShare))
	s.mux.HandleFunc("/api/community/posts", s.handlePosts)
	s.mux.HandleFunc("/api/community/prayer-wall", s.handlePrayerWall)

	// guidance & reference
	s.mux.HandleFunc("/api/guidance", s.handleGuidance)
	s.mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("/api/verses/search", s.handleVerseSearch)
	s.mux.HandleFunc("/api/scrolls", s.handleScrolls)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "journal.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.UserByToken(token)
		if err != nil {
			reason := "invalid_token"
			if !errors.Is(err, app.ErrUnauthorized) {
				reason = "lookup_failed"
			}
			s.audit(r, "journal.authorize", "fail", "reason", reason)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", user.ID))
		next(w, r.WithContext(ctx), user)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(r *http.Request, limit int64, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(dst)
}

// writeAppError maps application errors to status codes. Unknown errors
// are logged and reported as 500 with only the request id.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrNameTooLong),
		errors.Is(err, app.ErrEntryEmpty),
		errors.Is(err, app.ErrEntryTooLong),
		errors.Is(err, app.ErrInvalidDate),
		errors.Is(err, app.ErrInvalidMood),
		errors.Is(err, app.ErrPrayerRequired),
		errors.Is(err, app.ErrInvalidCategory),
		errors.Is(err, app.ErrInvalidShareType),
		errors.Is(err, app.ErrEmptyPost),
		errors.Is(err, app.ErrQueryRequired),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrEntryNotFound), errors.Is(err, app.ErrPrayerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists), errors.Is(err, app.ErrPrayerAlreadyAnswered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrSearchNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "internal error",
			"requestId": util.RequestIDFromContext(r.Context()),
		})
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// allowRate applies limiter per path and client IP. A nil limiter allows.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + s.clientIP(r)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter()))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
