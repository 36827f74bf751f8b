// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package audit keeps the trail of team switch attempts made by the session.

Each attempt, successful or not, is recorded as one [Event]. Without a
configured database the [NopRecorder] keeps the session fully functional.
*/
package audit

import (
	"context"
	"time"

	"github.com/taibuivan/careops/pkg/uuid"
)

// # Outcomes

// Outcome classifies a team switch attempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// # Core Entities

// Event is one team switch attempt.
type Event struct {
	ID        string    `json:"id"` // UUIDv7
	UserID    string    `json:"user_id"`
	Subject   string    `json:"subject"`
	FromTeam  string    `json:"from_team"`
	ToTeam    string    `json:"to_team"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent stamps a fresh id and timestamp. A non-nil err marks the attempt failed
// unless outcome is already set to rejected.
func NewEvent(userID, subject, fromTeam, toTeam string, outcome Outcome, err error) Event {
	event := Event{
		ID:        uuid.New(),
		UserID:    userID,
		Subject:   subject,
		FromTeam:  fromTeam,
		ToTeam:    toTeam,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
		if outcome == OutcomeSuccess {
			event.Outcome = OutcomeFailed
		}
	}
	return event
}

// # Contracts

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Store is a [Recorder] that can also list what it recorded.
type Store interface {
	Recorder
	Recent(ctx context.Context, limit, offset int) ([]Event, int, error)
	Ping(ctx context.Context) error
}

// # No-op

// NopRecorder discards events. It is used when no audit database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }

func (NopRecorder) Recent(context.Context, int, int) ([]Event, int, error) { return []Event{}, 0, nil }

func (NopRecorder) Ping(context.Context) error { return nil }
