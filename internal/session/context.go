// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/taibuivan/careops/internal/platform/ctxkey"
	"github.com/taibuivan/careops/internal/platform/ctxutil"
)

// # Request Context

// WithSnapshot attaches the snapshot observed at request start.
func WithSnapshot(ctx context.Context, snapshot Snapshot) context.Context {
	return context.WithValue(ctx, ctxkey.KeySnapshot, snapshot)
}

// FromContext returns the snapshot attached by [AttachSnapshot].
func FromContext(ctx context.Context) (Snapshot, bool) {
	snapshot, ok := ctx.Value(ctxkey.KeySnapshot).(Snapshot)
	return snapshot, ok
}

// UserID returns the user id of the attached snapshot, "" when absent.
func UserID(ctx context.Context) string {
	snapshot, _ := FromContext(ctx)
	return snapshot.UserID
}

// AttachSnapshot pins the current snapshot to each request so a handler sees
// one consistent view even if the session changes mid-request.
func AttachSnapshot(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			snapshot := manager.Snapshot()
			ctx := WithSnapshot(request.Context(), snapshot)

			if snapshot.UserID != "" {
				logger := ctxutil.GetLogger(ctx).With(slog.String("user_id", snapshot.UserID))
				ctx = ctxutil.WithLogger(ctx, logger)
			}

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Authorization

// Authorizer answers role checks from the attached snapshot.
type Authorizer struct{}

// Authenticated reports whether the request's snapshot carries an identity.
func (Authorizer) Authenticated(ctx context.Context) bool {
	snapshot, ok := FromContext(ctx)
	return ok && !snapshot.IsAnonymous()
}

// Admin reports whether the request's snapshot holds an admin role.
func (Authorizer) Admin(ctx context.Context) bool {
	snapshot, ok := FromContext(ctx)
	return ok && snapshot.IsAdmin
}
