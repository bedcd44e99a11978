package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"selah/pkg/domain"
	"selah/pkg/store"
	"selah/services/journal/internal/app"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testPassword satisfies auth.ValidatePassword.
const testPassword = "Passw0rd!Strong"

const validGuidanceJSON = `{"verses":[{"reference":"Psalm 46:1","text":"God is our refuge and strength","application":"Lean on Him"}],"prayer":"Lord, steady me.","actionStep":"Read Psalm 46","encouragement":"You are not alone."}`

type stubGenerator struct {
	out string
	err error
}

func (g *stubGenerator) GenerateText(context.Context, string, string) (string, error) {
	return g.out, g.err
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(context.Context, []byte, string, string) (string, error) {
	return s.text, s.err
}

func newTestServer(t *testing.T, mutateApp func(*app.Config), mutate func(*Config)) *httptest.Server {
	t.Helper()
	sessions, err := store.NewJWTSessionStore(testSecret, time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	appCfg := app.Config{Store: store.NewMemoryStore(), Sessions: sessions}
	if mutateApp != nil {
		mutateApp(&appCfg)
	}
	core, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })

	cfg := Config{App: core}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
			_ = json.Unmarshal(raw, &out)
		} else if err == nil {
			out = map[string]any{"items": raw}
		}
	}
	return resp, out
}

func signup(t *testing.T, baseURL, email string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": testPassword,
		"name":     "Hannah",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup expected 201, got %d %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("signup returned no token: %v", body)
	}
	return token
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := signup(t, ts.URL, "Hannah@Example.com")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"email": "hannah@example.com", "password": testPassword,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup expected 409, got %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"email": "weak@example.com", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password expected 400, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email": "hannah@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login expected 401, got %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email": "hannah@example.com", "password": testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK || body["email"] != "hannah@example.com" {
		t.Fatalf("me returned %d %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/users/me", token, map[string]string{"name": "Hannah S."})
	if resp.StatusCode != http.StatusOK || body["name"] != "Hannah S." {
		t.Fatalf("update me returned %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	for _, path := range []string{"/api/entries", "/api/streak", "/api/dashboard", "/api/prayers", "/api/users/me"} {
		resp, body := doJSON(t, http.MethodGet, ts.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized || body["error"] != "unauthorized" {
			t.Fatalf("%s expected 401, got %d %v", path, resp.StatusCode, body)
		}
	}
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/entries", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("invalid token expected 401, got %d", resp.StatusCode)
	}
}

func TestEntriesAndStreak(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := signup(t, ts.URL, "entries@example.com")
	today := time.Now().UTC().Format(time.DateOnly)
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/entries", token, map[string]any{
		"date": yesterday, "mood": "grateful", "gratitude": []string{"family", " "}, "content": "A quiet morning.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create entry expected 201, got %d %v", resp.StatusCode, body)
	}
	firstID, _ := body["id"].(string)
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/entries", token, map[string]any{
		"date": today, "content": "Grace for today.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create entry expected 201, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/entries", token, map[string]any{"mood": "angry", "content": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid mood expected 400, got %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/entries", token, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty entry expected 400, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/entries", token, "{not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json expected 400, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/streak", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("streak expected 200, got %d", resp.StatusCode)
	}
	if body["current"] != float64(2) || body["longest"] != float64(2) || body["weeklyEntries"] != float64(2) {
		t.Fatalf("unexpected streak %v", body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/entries?limit=1", token, nil)
	var entries []domain.JournalEntry
	if err := json.Unmarshal(body["items"].(json.RawMessage), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(entries) != 1 || entries[0].Content != "Grace for today." {
		t.Fatalf("unexpected entries %d %+v", resp.StatusCode, entries)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/entries?since=yesterday", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad since expected 400, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/entries/"+firstID, token, nil)
	if resp.StatusCode != http.StatusOK || body["mood"] != "grateful" {
		t.Fatalf("get entry returned %d %v", resp.StatusCode, body)
	}
	other := signup(t, ts.URL, "other@example.com")
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/entries/"+firstID, other, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign entry expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/entries/"+firstID, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/entries/"+firstID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/streak", token, nil)
	if resp.StatusCode != http.StatusOK || body["current"] != float64(1) || body["longest"] != float64(2) {
		t.Fatalf("streak after delete %d %v", resp.StatusCode, body)
	}
}

func TestPrayerLifecycle(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := signup(t, ts.URL, "prayer@example.com")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/prayers", token, map[string]string{
		"request": "Healing for my mother", "category": "intercession",
	})
	if resp.StatusCode != http.StatusCreated || body["status"] != "active" {
		t.Fatalf("create prayer returned %d %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/prayers", token, map[string]string{
		"request": "x", "category": "wishes",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad category expected 400, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/prayers/"+id+"/answer", token, map[string]string{"note": "Recovered"})
	if resp.StatusCode != http.StatusOK || body["status"] != "answered" || body["answeredNote"] != "Recovered" {
		t.Fatalf("answer returned %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/prayers/"+id+"/answer", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second answer expected 409, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/dashboard", token, nil)
	if resp.StatusCode != http.StatusOK || body["answeredPrayers"] != float64(1) || body["activePrayers"] != float64(0) {
		t.Fatalf("dashboard returned %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/prayers/"+id+"/extra", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown subpath expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/prayers/"+id, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete prayer expected 204, got %d", resp.StatusCode)
	}
}

func TestCommunityShareAndFeeds(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := signup(t, ts.URL, "share@example.com")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/community/share", token, map[string]any{
		"content": "<b>Hello</b> church", "prayer": "Pray for rain", "shareType": "prayer", "isAnonymous": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("share expected 201, got %d %v", resp.StatusCode, body)
	}
	if body["userName"] != nil || strings.Contains(body["content"].(string), "<b>") {
		t.Fatalf("share not anonymised or sanitized: %v", body)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/community/share", "", map[string]any{"content": "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous share expected 401, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/community/share", token, map[string]any{"shareType": "gossip", "content": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad share type expected 400, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/community/posts", "", nil)
	var posts []domain.CommunityPost
	if err := json.Unmarshal(body["items"].(json.RawMessage), &posts); err != nil || resp.StatusCode != http.StatusOK || len(posts) != 1 {
		t.Fatalf("posts returned %d %v %v", resp.StatusCode, posts, err)
	}
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/community/prayer-wall?limit=5", "", nil)
	var wall []domain.PrayerWallItem
	if err := json.Unmarshal(body["items"].(json.RawMessage), &wall); err != nil || resp.StatusCode != http.StatusOK || len(wall) != 1 {
		t.Fatalf("prayer wall returned %d %v %v", resp.StatusCode, wall, err)
	}
	if wall[0].PrayerRequest != "Pray for rain" || !wall[0].Anonymous {
		t.Fatalf("unexpected wall item %+v", wall[0])
	}
}

func TestGuidanceResponses(t *testing.T) {
	unconfigured := newTestServer(t, nil, nil)
	resp, body := doJSON(t, http.MethodPost, unconfigured.URL+"/api/guidance", "", map[string]string{})
	if resp.StatusCode != http.StatusInternalServerError || body["error"] != "API configuration error" {
		t.Fatalf("unconfigured guidance returned %d %v", resp.StatusCode, body)
	}

	gen := &stubGenerator{out: "Here you go:\n```json\n" + validGuidanceJSON + "\n```"}
	ts := newTestServer(t, func(c *app.Config) { c.Generator = gen }, nil)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/guidance", "", map[string]string{"situation": "  "})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Situation is required" {
		t.Fatalf("blank situation returned %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/guidance", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET guidance expected 405, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/guidance", "", map[string]string{
		"situation": "I lost my job", "mood": "anxious",
	})
	if resp.StatusCode != http.StatusOK || body["success"] != true || body["degraded"] != nil {
		t.Fatalf("guidance returned %d %v", resp.StatusCode, body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Fatalf("bad timestamp %v: %v", body["timestamp"], err)
	}

	gen.out = "I cannot answer in JSON today."
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/guidance", "", map[string]string{"situation": "I lost my job"})
	if resp.StatusCode != http.StatusOK || body["success"] != true || body["degraded"] != true {
		t.Fatalf("parse fallback returned %d %v", resp.StatusCode, body)
	}

	gen.err = errors.New("upstream overloaded")
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/guidance", "", map[string]string{"situation": "I lost my job"})
	if resp.StatusCode != http.StatusOK || body["success"] != false || body["error"] != callFallbackMessage {
		t.Fatalf("call fallback returned %d %v", resp.StatusCode, body)
	}
	g, _ := body["guidance"].(map[string]any)
	if verses, _ := g["verses"].([]any); len(verses) == 0 {
		t.Fatalf("call fallback must carry guidance: %v", body)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
}

func TestTranscribeResponses(t *testing.T) {
	unconfigured := newTestServer(t, nil, nil)
	resp, body := doJSON(t, http.MethodPost, unconfigured.URL+"/api/transcribe", "", map[string]string{"audio": "AAAA"})
	if resp.StatusCode != http.StatusInternalServerError || body["message"] != "Transcription service not configured" {
		t.Fatalf("unconfigured transcribe returned %d %v", resp.StatusCode, body)
	}

	tr := &stubTranscriber{text: "Thank you for this day"}
	ts := newTestServer(t, func(c *app.Config) { c.Transcriber = tr }, nil)
	audio := base64.StdEncoding.EncodeToString([]byte("webm"))

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/transcribe", "", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Audio data is required" {
		t.Fatalf("missing audio returned %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/transcribe", "", map[string]string{"audio": "!!!"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid audio expected 400, got %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/transcribe", "", map[string]string{"audio": "data:audio/webm;base64," + audio})
	if resp.StatusCode != http.StatusOK || body["success"] != true || body["text"] != "Thank you for this day" {
		t.Fatalf("transcribe returned %d %v", resp.StatusCode, body)
	}

	tr.err = errors.New("whisper down")
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/transcribe", "", map[string]string{"audio": audio})
	if resp.StatusCode != http.StatusInternalServerError || body["success"] != false || body["timestamp"] == nil {
		t.Fatalf("failed transcribe returned %d %v", resp.StatusCode, body)
	}
	if strings.Contains(body["error"].(string), "whisper") {
		t.Fatalf("upstream detail leaked: %v", body)
	}
}

func TestVerseSearchAndScrolls(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/verses/search?q=peace", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured search expected 503, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/verses/search?q=peace&threshold=2", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad threshold expected 400, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/scrolls", "", nil)
	var catalog []map[string]any
	if err := json.Unmarshal(body["items"].(json.RawMessage), &catalog); err != nil || resp.StatusCode != http.StatusOK || len(catalog) == 0 {
		t.Fatalf("scrolls returned %d %v", resp.StatusCode, err)
	}
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/scrolls?title=how%20to%20pray%20daily", "", nil)
	if resp.StatusCode != http.StatusOK || body["title"] != "How to Pray Daily" {
		t.Fatalf("scroll lookup returned %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/scrolls?title=missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing scroll expected 404, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ts := newTestServer(t, nil, func(c *Config) {
		c.Redis = client
		c.LoginRateLimitPerMinute = 1
	})

	creds := map[string]string{"email": "nobody@example.com", "password": testPassword}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("first login expected 401, got %d", resp.StatusCode)
	}
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second login expected 429, got %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestServerRequiresApp(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without app")
	}
}
