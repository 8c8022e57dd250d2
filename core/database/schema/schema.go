// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/juju/errors"

	"github.com/canonical/filevault/core/database"
)

// Patch applies a specific schema change to a database, and returns an
// error if anything goes wrong.
type Patch struct {
	run func(context.Context, *sql.Tx) error
}

// MakePatch returns a patch that runs the given statement with the given
// arguments.
func MakePatch(statement string, args ...any) Patch {
	return Patch{
		run: func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, statement, args...); err != nil {
				return errors.Annotate(err, "running schema patch")
			}
			return nil
		},
	}
}

// Schema captures the schema of a database in terms of a series of ordered
// updates.
type Schema struct {
	patches []Patch
}

// New creates a new schema Schema with the given patches.
func New(patches ...Patch) *Schema {
	return &Schema{
		patches: patches,
	}
}

// Add a new patch to the schema.
func (s *Schema) Add(patches ...Patch) {
	s.patches = append(s.patches, patches...)
}

// Len returns the number of total patches in the schema.
func (s *Schema) Len() int {
	return len(s.patches)
}

// ChangeSet returns the schema changes for the schema when they're applied.
type ChangeSet struct {
	Current, Post int
}

// Ensure makes sure that the actual schema in the given database matches
// the one defined by our updates. Missing patches are applied in order,
// within a single transaction, and the reached version is recorded in
// the schema bookkeeping table.
func (s *Schema) Ensure(ctx context.Context, runner database.TxnRunner) (ChangeSet, error) {
	var (
		current, post int
	)
	err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := createSchemaTable(ctx, tx); err != nil {
			return errors.Trace(err)
		}

		var err error
		if current, err = queryCurrentVersion(ctx, tx); err != nil {
			return errors.Trace(err)
		}
		if current > len(s.patches) {
			return errors.Errorf(
				"schema version %d is more recent than expected %d",
				current, len(s.patches))
		}

		for i, patch := range s.patches[current:] {
			if err := patch.run(ctx, tx); err != nil {
				return errors.Annotatef(err, "applying patch %d", current+i)
			}
		}
		post = len(s.patches)

		if post != current {
			if err := recordVersion(ctx, tx, post); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
	if err != nil {
		return ChangeSet{}, errors.Annotate(err, "ensuring schema")
	}
	return ChangeSet{Current: current, Post: post}, nil
}

func createSchemaTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema (
    version    INT NOT NULL PRIMARY KEY,
    updated_at DATETIME NOT NULL
);`)
	return errors.Trace(err)
}

func queryCurrentVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var version int
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema").Scan(&version)
	if err != nil {
		return 0, errors.Annotate(err, "querying schema version")
	}
	return version, nil
}

func recordVersion(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO schema (version, updated_at) VALUES (%d, DATETIME('now'))
ON CONFLICT (version) DO UPDATE SET updated_at = excluded.updated_at;`, version))
	return errors.Trace(err)
}
