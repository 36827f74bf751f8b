// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"errors"
	"fmt"
)

// # Error Taxonomy

// ErrConcurrentSwitch is returned when a team switch is requested while another is in flight.
var ErrConcurrentSwitch = errors.New("session: a team switch is already in progress")

// MalformedTokenError reports a token that is present but cannot be decoded.
//
// It never crosses the deriver boundary; the deriver recovers with cached or anonymous state.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: malformed token: %s: %v", e.Reason, e.Err)
	}
	return "session: malformed token: " + e.Reason
}

func (e *MalformedTokenError) Unwrap() error { return e.Err }

// InvalidTeamError reports a switch target outside the snapshot's available teams.
type InvalidTeamError struct {
	Team      TeamID
	Available []TeamID
}

func (e *InvalidTeamError) Error() string {
	return fmt.Sprintf("session: team %q is not available to this session", e.Team)
}

// TeamSwitchNetworkError wraps a failed or rejected call to the team switch endpoint.
type TeamSwitchNetworkError struct {
	Team TeamID
	Err  error
}

func (e *TeamSwitchNetworkError) Error() string {
	return fmt.Sprintf("session: switching to team %q failed: %v", e.Team, e.Err)
}

func (e *TeamSwitchNetworkError) Unwrap() error { return e.Err }
