// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn

import (
	"database/sql"

	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// IsErrRetryable returns true if the given error might be transient and
// the interaction can be safely retried.
func IsErrRetryable(err error) bool {
	var dbErr sqlite3.Error
	if errors.As(err, &dbErr) {
		switch dbErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
		return false
	}

	// Unwrapped driver errors surface for connection level failures;
	// a bad connection is worth one more attempt.
	return errors.Is(err, sql.ErrConnDone)
}
