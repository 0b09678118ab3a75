package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/x/1").
		Body(map[string]string{"id": "1"}).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if rr.Header().Get("Location") != "/x/1" {
		t.Fatal("custom header missing")
	}
	if strings.TrimSpace(rr.Body.String()) != `{"id":"1"}` {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestJSONResponseBuilderNoContentAndRaw(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("204 wrote %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	NewJSONResponse().Body(json.RawMessage(`{"raw":true}`)).Write(rr)
	if strings.TrimSpace(rr.Body.String()) != `{"raw":true}` {
		t.Fatalf("raw body = %q", rr.Body.String())
	}
}

func TestWriteErrorMapsKinds(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		code     string
		hideBody bool
	}{
		{core.InvalidArgument("bad %s", "x"), http.StatusBadRequest, "invalid_argument", false},
		{core.NotFound("entry %q not found", "e1"), http.StatusNotFound, "not_found", false},
		{core.Conflict("exists"), http.StatusConflict, "conflict", false},
		{core.FailedPrecondition("no funds"), http.StatusUnprocessableEntity, "failed_precondition", false},
		{fmt.Errorf("wrapped: %w", core.NotFound("gone")), http.StatusNotFound, "not_found", false},
		{errors.New("db exploded: password=hunter2"), http.StatusInternalServerError, "internal", true},
		{core.Internal("tenant busy", errors.New("redis down")), http.StatusInternalServerError, "internal", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var body ErrorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code {
				t.Fatalf("code = %q", body.Code)
			}
			if tt.hideBody && body.Error != "internal server error" {
				t.Fatalf("internal details leaked: %q", body.Error)
			}
			if !tt.hideBody && body.Error != tt.err.Error() {
				t.Fatalf("message = %q", body.Error)
			}
		})
	}
}

func TestUnauthorizedErrorSetsChallenge(t *testing.T) {
	rr := httptest.NewRecorder()
	UnauthorizedError("missing bearer token").Write(rr)
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("status=%d headers=%v", rr.Code, rr.Header())
	}
}
