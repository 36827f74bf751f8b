// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid provides time-ordered unique identifiers for the daemon.

It wraps the standard UUID library to generate Version 7 values, used for
request correlation IDs and audit event primary keys.
*/
package uuid

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
//
// It falls back to a random v4 value if the v7 generator fails, so callers
// on the request path never have to handle an error.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
