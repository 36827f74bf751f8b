// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/careops/internal/access"
	"github.com/taibuivan/careops/internal/audit"
	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/apperr"
	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/internal/platform/ctxutil"
	"github.com/taibuivan/careops/internal/platform/middleware"
	requestutil "github.com/taibuivan/careops/internal/platform/request"
	"github.com/taibuivan/careops/internal/platform/respond"
	"github.com/taibuivan/careops/internal/platform/validate"
	"github.com/taibuivan/careops/pkg/pagination"
)

// # Handler Implementation

// CookieOptions shape the same-site cookie mirroring the bearer token.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// Handler implements the HTTP layer for the session.
type Handler struct {
	manager *Manager
	gate    *access.Gate
	audit   audit.Store
	cookie  CookieOptions
}

// NewHandler constructs a session [Handler]. A nil audit store lists nothing.
func NewHandler(manager *Manager, gate *access.Gate, auditStore audit.Store, cookie CookieOptions) *Handler {
	if auditStore == nil {
		auditStore = audit.NopRecorder{}
	}
	if cookie.TTL <= 0 {
		cookie.TTL = constants.CookieTTL
	}
	return &Handler{manager: manager, gate: gate, audit: auditStore, cookie: cookie}
}

// Routes returns a [chi.Router] configured with session endpoints.
//
// The handler expects [AttachSnapshot] to run before it.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// ## Streaming (no request deadline)
	router.Get("/events", handler.streamEvents)

	router.Group(func(bounded chi.Router) {
		bounded.Use(chimw.Timeout(constants.GlobalRequestTimeout))

		// ## Read Contract
		bounded.Get("/", handler.getSnapshot)
		bounded.Get("/route", handler.getRoute)

		// ## Credential Lifecycle
		bounded.Post("/login", handler.login)
		bounded.Post("/logout", handler.logout)
		bounded.Post("/refresh", handler.refresh)

		// ## Team Switching
		bounded.With(middleware.RequireSession(Authorizer{})).Post("/team", handler.switchTeam)

		// ## Administrative
		bounded.With(middleware.RequireAdmin(Authorizer{})).Get("/audit", handler.listAudit)
	})

	return router
}

// # Read Endpoints

/*
GET /api/v1/session.

Description: Returns the current session snapshot.

Response:
  - 200: Snapshot
*/
func (handler *Handler) getSnapshot(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, handler.snapshotFor(request))
}

// routeResponse is the consumer read contract for one HTTP verb.
type routeResponse struct {
	Route     access.Route `json:"route"`
	CanMutate bool         `json:"can_mutate"`
}

/*
GET /api/v1/session/route.

Description: Picks the backend endpoint family a consumer should call.

Request:
  - method: string (HTTP verb, default GET)

Response:
  - 200: routeResponse
  - 403: FORBIDDEN: No endpoint family for this session
*/
func (handler *Handler) getRoute(writer http.ResponseWriter, request *http.Request) {
	snapshot := handler.snapshotFor(request)

	route, err := handler.gate.Route(snapshot, requestutil.Query(request, "method"))
	if err != nil {
		if errors.Is(err, access.ErrNoEndpointFamily) {
			respond.Error(writer, request, apperr.Forbidden("No endpoint family is available to this session"))
			return
		}
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, routeResponse{Route: route, CanMutate: handler.gate.CanMutate(snapshot)})
}

// # Credential Lifecycle

type loginRequest struct {
	Token    string `json:"token"`
	Remember bool   `json:"remember"`
}

/*
POST /api/v1/session/login.

Description: Stores a bearer token issued by the platform and derives the snapshot.

Request:
  - token: string
  - remember: bool (durable persistence)

Response:
  - 200: Snapshot
  - 400: VALIDATION_ERROR: Missing or malformed token
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var body loginRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required("token", body.Token)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	snapshot, err := handler.manager.Login(request.Context(), body.Token, credential.PolicyFor(body.Remember))
	if err != nil {
		respond.Error(writer, request, mapError(err))
		return
	}

	handler.setCookie(writer, body.Token)
	respond.OK(writer, snapshot)
}

/*
POST /api/v1/session/logout.

Response:
  - 200: Anonymous snapshot
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	snapshot, err := handler.manager.Logout(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setCookie(writer, "")
	respond.OK(writer, snapshot)
}

/*
POST /api/v1/session/refresh.

Description: Re-derives immediately, bypassing the poll interval.
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, handler.manager.ForceRefresh(request.Context()))
}

// # Team Switching

type switchTeamRequest struct {
	Team string `json:"team"`
}

/*
POST /api/v1/session/team.

Description: Switches the active team and refreshes the token cookie.

Request:
  - team: string

Response:
  - 200: Snapshot
  - 409: TEAM_SWITCH_IN_PROGRESS
  - 422: INVALID_TEAM
  - 502: TEAM_SWITCH_FAILED
*/
func (handler *Handler) switchTeam(writer http.ResponseWriter, request *http.Request) {
	var body switchTeamRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required("team", body.Team).MaxLen("team", body.Team, 64)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	snapshot, err := handler.manager.SwitchTeam(request.Context(), TeamID(body.Team))
	if err != nil {
		respond.Error(writer, request, mapError(err))
		return
	}

	if token, err := handler.manager.Token(request.Context()); err == nil && token != "" {
		handler.setCookie(writer, token)
	}

	respond.OK(writer, snapshot)
}

// # Administrative

/*
GET /api/v1/session/audit.

Request:
  - page: int (default 1)
  - limit: int (default 50, max 500)

Response:
  - 200: []audit.Event: Paginated list, newest first
*/
func (handler *Handler) listAudit(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	events, total, err := handler.audit.Recent(request.Context(), params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, events, pagination.NewMeta(params, total))
}

// # Event Stream

/*
GET /api/v1/session/events.

Description: Server-sent events; one "snapshot" event per applied snapshot,
starting with the current one. The stream ends when the client disconnects or
the session closes.
*/
func (handler *Handler) streamEvents(writer http.ResponseWriter, request *http.Request) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		respond.Error(writer, request, apperr.Internal(errors.New("session: streaming unsupported by response writer")))
		return
	}

	snapshots, cancel := handler.manager.Subscribe()
	defer cancel()

	header := writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := ctxutil.GetLogger(request.Context())

	for {
		select {
		case <-request.Context().Done():
			return
		case snapshot, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(snapshot)
			if err != nil {
				logger.ErrorContext(request.Context(), "session_event_encode_failed", slog.Any("error", err))
				return
			}
			if _, err := fmt.Fprintf(writer, "id: %d\nevent: snapshot\ndata: %s\n\n", snapshot.Generation, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// # Helpers

func (handler *Handler) snapshotFor(request *http.Request) Snapshot {
	if snapshot, ok := FromContext(request.Context()); ok {
		return snapshot
	}
	return handler.manager.Snapshot()
}

// setCookie mirrors token into the same-site cookie. An empty token expires it.
func (handler *Handler) setCookie(writer http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     constants.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   handler.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	if token == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.MaxAge = int(handler.cookie.TTL.Seconds())
		cookie.Expires = time.Now().Add(handler.cookie.TTL)
	}

	http.SetCookie(writer, cookie)
}

// mapError translates session errors into API errors.
func mapError(err error) error {
	var invalidTeam *InvalidTeamError
	var network *TeamSwitchNetworkError
	var malformed *MalformedTokenError

	switch {
	case errors.As(err, &invalidTeam):
		return apperr.Unprocessable("INVALID_TEAM", "Team is not available to this session", err)
	case errors.Is(err, ErrConcurrentSwitch):
		return apperr.Conflict("TEAM_SWITCH_IN_PROGRESS", "A team switch is already in progress")
	case errors.As(err, &network):
		return apperr.BadGateway("TEAM_SWITCH_FAILED", "The platform rejected the team switch", err)
	case errors.As(err, &malformed):
		return apperr.ValidationError("Token is malformed", apperr.FieldError{Field: "token", Message: "cannot be decoded"})
	default:
		return err
	}
}
