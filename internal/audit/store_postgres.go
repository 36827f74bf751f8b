// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/careops/internal/platform/database/schema"
	"github.com/taibuivan/careops/internal/platform/dberr"
	"github.com/taibuivan/careops/internal/platform/postgres"
)

// PostgresStore implements [Store] using pgx.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL backed audit store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var (
	insertEventQuery = fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		schema.SessionTeamSwitchAudit.Table,
		schema.SessionTeamSwitchAudit.ID,
		schema.SessionTeamSwitchAudit.UserID,
		schema.SessionTeamSwitchAudit.Subject,
		schema.SessionTeamSwitchAudit.FromTeam,
		schema.SessionTeamSwitchAudit.ToTeam,
		schema.SessionTeamSwitchAudit.Outcome,
		schema.SessionTeamSwitchAudit.Error,
		schema.SessionTeamSwitchAudit.CreatedAt,
	)

	recentEventsQuery = fmt.Sprintf(
		`SELECT %s, %s, %s, %s, %s, %s, %s, %s, COUNT(*) OVER() FROM %s ORDER BY %s DESC LIMIT $1 OFFSET $2`,
		schema.SessionTeamSwitchAudit.ID,
		schema.SessionTeamSwitchAudit.UserID,
		schema.SessionTeamSwitchAudit.Subject,
		schema.SessionTeamSwitchAudit.FromTeam,
		schema.SessionTeamSwitchAudit.ToTeam,
		schema.SessionTeamSwitchAudit.Outcome,
		schema.SessionTeamSwitchAudit.Error,
		schema.SessionTeamSwitchAudit.CreatedAt,
		schema.SessionTeamSwitchAudit.Table,
		schema.SessionTeamSwitchAudit.CreatedAt,
	)
)

/*
Record inserts one audit event.

Parameters:
  - context: context.Context
  - event: Event

Returns:
  - error: Database write failures
*/
func (store *PostgresStore) Record(context context.Context, event Event) error {
	_, err := store.db.Exec(context, insertEventQuery,
		event.ID, event.UserID, event.Subject, event.FromTeam,
		event.ToTeam, string(event.Outcome), event.Error, event.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "record_team_switch")
	}
	return nil
}

/*
Recent lists one page of events, newest first.

Parameters:
  - context: context.Context
  - limit: int
  - offset: int

Returns:
  - []Event: Events, never nil
  - int: Total number of recorded events
  - error: Database retrieval failures
*/
func (store *PostgresStore) Recent(context context.Context, limit, offset int) ([]Event, int, error) {
	rows, err := store.db.Query(context, recentEventsQuery, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_team_switches")
	}
	defer rows.Close()

	events := []Event{}
	total := 0
	for rows.Next() {
		var event Event
		var outcome string
		if err := rows.Scan(
			&event.ID, &event.UserID, &event.Subject, &event.FromTeam,
			&event.ToTeam, &outcome, &event.Error, &event.CreatedAt, &total,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_team_switch")
		}
		event.Outcome = Outcome(outcome)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "iterate_team_switches")
	}
	return events, total, nil
}

// Ping implements [Store].
func (store *PostgresStore) Ping(context context.Context) error {
	return postgres.Ping(context, store.db)
}
