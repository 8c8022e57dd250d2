// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/juju/tc"
	_ "github.com/mattn/go-sqlite3"

	coredatabase "github.com/canonical/filevault/core/database"
	"github.com/canonical/filevault/internal/database"
)

// SqliteSuite is used to provide a sql.DB reference to tests.
// The database is a real file backed SQLite database, created fresh for
// every test, with foreign keys enforced.
type SqliteSuite struct {
	db     *sql.DB
	runner coredatabase.TxnRunner
}

// SetUpTest creates a new database for the test.
func (s *SqliteSuite) SetUpTest(c *tc.C) {
	path := filepath.Join(c.MkDir(), "db.sqlite3")
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	c.Assert(err, tc.ErrorIsNil)

	s.db = db
	s.runner = database.NewTxnRunner(db)
}

// TearDownTest closes the database.
func (s *SqliteSuite) TearDownTest(c *tc.C) {
	if s.db != nil {
		c.Check(s.db.Close(), tc.ErrorIsNil)
		s.db = nil
		s.runner = nil
	}
}

// DB returns the raw database handle.
func (s *SqliteSuite) DB() *sql.DB {
	return s.db
}

// TxnRunner returns the suite's transaction runner.
func (s *SqliteSuite) TxnRunner() coredatabase.TxnRunner {
	return s.runner
}

// TxnRunnerFactory returns a factory yielding the suite's transaction
// runner.
func (s *SqliteSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return coredatabase.NewTxnRunnerFactoryForRunner(s.runner)
}

// SchemaApplier is anything that can apply a schema to the database
// behind a transaction runner.
type SchemaApplier interface {
	Apply(c *tc.C, ctx context.Context, runner coredatabase.TxnRunner)
}

// ApplyDDL applies the given schema to the suite's database.
func (s *SqliteSuite) ApplyDDL(c *tc.C, applier SchemaApplier) {
	applier.Apply(c, c.Context(), s.runner)
}
