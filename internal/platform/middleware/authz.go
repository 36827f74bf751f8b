// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"

	"github.com/taibuivan/careops/internal/platform/apperr"
	"github.com/taibuivan/careops/internal/platform/respond"
)

// Authorizer answers role questions about the session serving a request.
//
// Defined here so the middleware does not depend on the session package.
type Authorizer interface {
	Authenticated(ctx context.Context) bool
	Admin(ctx context.Context) bool
}

// RequireSession blocks requests while the session is anonymous.
func RequireSession(authorizer Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !authorizer.Authenticated(request.Context()) {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// RequireAdmin blocks requests unless the session holds an admin role.
//
// # Flow
//  1. Anonymous sessions get 401 Unauthorized.
//  2. Authenticated non-admin sessions get 403 Forbidden.
func RequireAdmin(authorizer Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			if !authorizer.Authenticated(ctx) {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			if !authorizer.Admin(ctx) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
