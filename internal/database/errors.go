// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// IsErrConstraintUnique returns true if the input error was returned by
// SQLite due to violation of a unique constraint. Partial unique indexes
// report through this code as well.
func IsErrConstraintUnique(err error) bool {
	var dbErr sqlite3.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// IsErrConstraintPrimaryKey returns true if the input error was returned
// by SQLite due to violation of a primary key constraint.
func IsErrConstraintPrimaryKey(err error) bool {
	var dbErr sqlite3.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// IsErrConstraintForeignKey returns true if the input error was returned
// by SQLite due to violation of a foreign key constraint.
func IsErrConstraintForeignKey(err error) bool {
	var dbErr sqlite3.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// IsErrConstraintCheck returns true if the input error was returned by
// SQLite due to violation of a check constraint.
func IsErrConstraintCheck(err error) bool {
	var dbErr sqlite3.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.ExtendedCode == sqlite3.ErrConstraintCheck
}

// IsErrConstraintNotNull returns true if the input error was returned by
// SQLite due to violation of a not null constraint.
func IsErrConstraintNotNull(err error) bool {
	var dbErr sqlite3.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.ExtendedCode == sqlite3.ErrConstraintNotNull
}

// IsErrConstraint returns true if the input error was returned by SQLite
// due to violation of any constraint.
func IsErrConstraint(err error) bool {
	var dbErr sqlite3.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.Code == sqlite3.ErrConstraint
}
