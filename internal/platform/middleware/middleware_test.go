// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/internal/platform/ctxutil"
	"github.com/taibuivan/careops/internal/platform/middleware"
)

var okHandler = http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
})

/*
TestRequestID generates an id or reuses the client's one.
*/
func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, recorder.Header().Get(constants.HeaderXRequestID))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderXRequestID, "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, "abc-123", seen)
}

/*
TestStructuredLogger tags the final log line with the session user.
*/
func TestStructuredLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))

	identify := func(context.Context) string { return "7" }
	handler := middleware.RequestID()(middleware.StructuredLogger(logger, identify)(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))

	assert.Contains(t, buffer.String(), `"msg":"http_request_finished"`)
	assert.Contains(t, buffer.String(), `"user_id":"7"`)
	assert.Contains(t, buffer.String(), `"status":200`)
}

/*
TestRateLimit rejects requests beyond the burst.
*/
func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 0.001, 2)(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.RemoteAddr = "10.0.0.1:5555"
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type corsConfig struct {
	development bool
	origins     []string
}

func (c corsConfig) IsDevelopment() bool      { return c.development }
func (c corsConfig) AllowedOrigins() []string { return c.origins }

/*
TestCORS only reflects listed origins outside development.
*/
func TestCORS(t *testing.T) {
	handler := middleware.CORS(corsConfig{origins: []string{"https://ops.example.org"}})(okHandler)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://ops.example.org", true},
		{"https://evil.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodOptions, "/", nil)
			request.Header.Set(constants.HeaderOrigin, tt.origin)
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusNoContent, recorder.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, recorder.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

/*
TestPanicRecovery converts a panic into a 500 response.
*/
func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

type fakeAuthorizer struct {
	authenticated bool
	admin         bool
}

func (f fakeAuthorizer) Authenticated(context.Context) bool { return f.authenticated }
func (f fakeAuthorizer) Admin(context.Context) bool         { return f.admin }

/*
TestRequireAdmin distinguishes anonymous from non-admin sessions.
*/
func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		authorizer fakeAuthorizer
		want       int
	}{
		{"anonymous", fakeAuthorizer{}, http.StatusUnauthorized},
		{"user", fakeAuthorizer{authenticated: true}, http.StatusForbidden},
		{"admin", fakeAuthorizer{authenticated: true, admin: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			middleware.RequireAdmin(tt.authorizer)(okHandler).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}

/*
TestRequireSession rejects anonymous sessions only.
*/
func TestRequireSession(t *testing.T) {
	recorder := httptest.NewRecorder()
	middleware.RequireSession(fakeAuthorizer{})(okHandler).ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = httptest.NewRecorder()
	middleware.RequireSession(fakeAuthorizer{authenticated: true})(okHandler).ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}
