package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mamori/internal/model"
)

func testSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRequestIDMiddlewareGenerates(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddlewarePropagates(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied-id", seen)
}

func TestSecurityHeaders(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(testSlog(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("wrap: %w", model.ErrInvalidInput), http.StatusBadRequest, model.ErrCodeInvalidInput},
		{fmt.Errorf("wrap: %w", model.ErrInvalidCrisisType), http.StatusBadRequest, model.ErrCodeInvalidCrisisType},
		{fmt.Errorf("wrap: %w", model.ErrNotFound), http.StatusNotFound, model.ErrCodeNotFound},
		{fmt.Errorf("wrap: %w", model.ErrAlreadyResolved), http.StatusConflict, model.ErrCodeAlreadyResolved},
		{fmt.Errorf("wrap: %w", model.ErrOwnershipMismatch), http.StatusConflict, model.ErrCodeOwnershipMismatch},
		{fmt.Errorf("wrap: %w", model.ErrExtractorFailure), http.StatusInternalServerError, model.ErrCodeExtractorFailure},
		{errors.New("database is on fire"), http.StatusInternalServerError, model.ErrCodeInternalError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		writeDomainError(rec, req, testSlog(), tc.err)
		assert.Equal(t, tc.wantStatus, rec.Code, "error %v", tc.err)

		var apiErr model.APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
		assert.Equal(t, tc.wantCode, apiErr.Error.Code, "error %v", tc.err)
	}
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeDomainError(rec, req, testSlog(), errors.New("dsn=postgres://secret@host"))

	assert.NotContains(t, rec.Body.String(), "secret", "internal detail must not leak to clients")
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var target map[string]any
		if err := decodeJSON(w, r, &target, 16); err != nil {
			handleDecodeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"text": "this body is far longer than sixteen bytes"}`))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestFormatSSE(t *testing.T) {
	got := formatSSE("mamori_assessments", `{"type":"crisis-detected"}`)
	assert.Equal(t, "event: mamori_assessments\ndata: {\"type\":\"crisis-detected\"}\n\n", string(got))
}
