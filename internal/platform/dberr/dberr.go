// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/careops/internal/platform/apperr"
)

// SQLSTATE codes that get a dedicated mapping.
const (
	codeUndefinedTable  = "42P01"
	codeUndefinedSchema = "3F000"
)

// ErrNotFound is a standard error returned when a queried row doesn't exist.
var ErrNotFound = apperr.NotFound("Resource")

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// A missing table means migrations have not run against this database.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeUndefinedTable || pgErr.Code == codeUndefinedSchema) {
		appErr := apperr.ServiceUnavailable("Audit storage is not migrated")
		appErr.Cause = fmt.Errorf("%s: %w", action, err)
		return appErr
	}

	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}
