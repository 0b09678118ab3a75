package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(nil, func(*http.Request) string { return "10.0.0.1" })

	var seen string
	var ctxLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("generated request id = %q", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header = %q, want %q", rr.Header().Get(RequestIDHeader), seen)
	}
	if ctxLogger == nil || ctxLogger.Component() != log.ComponentHTTP {
		t.Errorf("request logger not stored in context")
	}
	if got := m.GetMetrics(); got.TotalRequests != 1 || got.ClientErrors != 1 || got.ServerErrors != 0 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	tests := []struct {
		incoming string
		keep     bool
	}{
		{"abc-123", true},
		{"bad id with spaces", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, tt.incoming)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get(RequestIDHeader) == tt.incoming; got != tt.keep {
			t.Errorf("incoming %q kept = %v, want %v", tt.incoming, got, tt.keep)
		}
	}
	if got := m.GetMetrics().ServerErrors; got != 3 {
		t.Errorf("ServerErrors = %d, want 3", got)
	}
}
