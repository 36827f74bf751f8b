// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/access"
	"github.com/taibuivan/careops/internal/api"
	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/config"
	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/internal/platform/metrics"
	"github.com/taibuivan/careops/internal/session"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{ServerPort: "0", Environment: "development"}
	logger := discardLogger()
	registry, m := metrics.NewRegistry()

	vault := credential.NewVault(credential.NewMemoryStore(), credential.NewMemoryStore(), logger)
	manager := session.NewManager(vault, session.Options{PollInterval: time.Hour, Metrics: m}, logger)
	manager.Start(ctx)
	t.Cleanup(manager.Close)

	gate, err := access.NewGate(access.Prefixes{Admin: "/api/admin", SuperAdmin: "/api/superadmin"}, nil)
	require.NoError(t, err)

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{CheckCredentials: vault.Ping}, logger)

	return api.NewServer(ctx, cfg, logger, manager, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(registry),
		Session:   session.NewHandler(manager, gate, nil, session.CookieOptions{}),
	})
}

/*
TestServer_Routes checks that every top-level route is mounted behind the middleware chain.
*/
func TestServer_Routes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/ready", http.StatusOK, "credential_store"},
		{"/metrics", http.StatusOK, "careops_session_derivations_total"},
		{"/api/v1/session", http.StatusOK, `"is_admin":false`},
		{"/api/v1/session/", http.StatusOK, `"is_loading":false`},
		{"/api/v1/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.NotEmpty(t, recorder.Header().Get(constants.HeaderXRequestID))
			if tt.wantBody != "" {
				assert.Contains(t, recorder.Body.String(), tt.wantBody)
			}
		})
	}
}
