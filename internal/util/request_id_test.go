package util

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "propagates well-formed id", incoming: "req-incoming-123", keep: true},
		{name: "generates when missing"},
		{name: "replaces id with spaces", incoming: "evil id\nforged=1"},
		{name: "replaces oversized id", incoming: strings.Repeat("a", maxRequestIDBytes+1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tc.incoming != "" {
				req.Header.Set("X-Request-Id", tc.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-Id")
			if got == "" || got != seen {
				t.Fatalf("header %q and context %q must match and be set", got, seen)
			}
			if tc.keep != (got == tc.incoming) {
				t.Fatalf("request id %q, incoming %q, keep=%v", got, tc.incoming, tc.keep)
			}
		})
	}
}

func TestWithRequestIDInjectsLogger(t *testing.T) {
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == slog.Default() {
			t.Fatal("expected request-scoped logger in context")
		}
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger without a scoped one")
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty request id without middleware")
	}
}
