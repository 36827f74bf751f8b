// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package backend talks to the platform backend on behalf of the session.

The only call the session makes is the team switch exchange. The client keeps
a cookie jar so that a token rotated through Set-Cookie is visible both to the
session and to later calls made with the same client.
*/
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/careops/internal/platform/constants"
)

// maxResponseBytes bounds the team switch response body.
const maxResponseBytes = 1 << 20

// StatusError reports a non-2xx response from the platform backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config holds the client settings.
type Config struct {
	BaseURL        string
	SwitchTeamPath string
	Timeout        time.Duration
	CookieTTL      time.Duration
}

// # Client

// Client calls the platform backend.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	switchPath string
	cookieTTL  time.Duration
}

// NewClient builds a client with its own cookie jar.
func NewClient(cfg Config) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("backend: invalid base URL %q", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create cookie jar: %w", err)
	}

	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = constants.CookieTTL
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Jar: jar},
		baseURL:    baseURL,
		switchPath: "/" + strings.TrimLeft(cfg.SwitchTeamPath, "/"),
		cookieTTL:  cfg.CookieTTL,
	}, nil
}

type switchTeamRequest struct {
	Team string `json:"team"`
}

// switchTeamResponse accepts every token field name the platform has used.
type switchTeamResponse struct {
	Token            string `json:"token"`
	AccessToken      string `json:"accessToken"`
	AccessTokenSnake string `json:"access_token"`
}

func (response switchTeamResponse) token() string {
	for _, candidate := range []string{response.Token, response.AccessToken, response.AccessTokenSnake} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return ""
}

/*
SwitchTeam asks the platform to make team the active team of the bearer's session.

Description: The rotated token is read from the JSON body, then from a
rotated access_token cookie. An empty result means the backend rotated the
credential elsewhere.

Parameters:
  - ctx: context.Context
  - bearer: string (current token, may be empty)
  - team: string

Returns:
  - string: Rotated token or ""
  - error: *StatusError or transport failures
*/
func (client *Client) SwitchTeam(ctx context.Context, bearer, team string) (string, error) {
	payload, err := json.Marshal(switchTeamRequest{Team: team})
	if err != nil {
		return "", fmt.Errorf("backend: failed to encode request: %w", err)
	}

	endpoint := client.baseURL.JoinPath(client.switchPath)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("backend: failed to build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("backend: team switch request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("backend: failed to read response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded switchTeamResponse
	if len(bytes.TrimSpace(body)) > 0 {
		// Non-JSON success bodies are allowed; the cookie side channel still applies.
		_ = json.Unmarshal(body, &decoded)
	}
	if token := decoded.token(); token != "" {
		return token, nil
	}

	for _, cookie := range response.Cookies() {
		if cookie.Name == constants.CookieName && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	return "", nil
}

// # Cookie Mirror

// Mirror stores token as the same-site access_token cookie in the client's jar.
// An empty token expires the cookie.
func (client *Client) Mirror(token string) error {
	cookie := &http.Cookie{
		Name:     constants.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   client.baseURL.Scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}

	if token == "" {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = time.Now().Add(client.cookieTTL)
	}

	client.httpClient.Jar.SetCookies(client.baseURL, []*http.Cookie{cookie})
	return nil
}

// MirroredToken returns the token currently held in the jar, "" when none.
func (client *Client) MirroredToken() string {
	for _, cookie := range client.httpClient.Jar.Cookies(client.baseURL) {
		if cookie.Name == constants.CookieName {
			return cookie.Value
		}
	}
	return ""
}
