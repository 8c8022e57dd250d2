// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/juju/tc"

	"github.com/canonical/filevault/internal/database"
	databasetesting "github.com/canonical/filevault/internal/database/testing"
)

type errorsSuite struct {
	databasetesting.SqliteSuite
}

func TestErrorsSuite(t *testing.T) {
	tc.Run(t, &errorsSuite{})
}

func (s *errorsSuite) SetUpTest(c *tc.C) {
	s.SqliteSuite.SetUpTest(c)

	_, err := s.DB().ExecContext(c.Context(), `
CREATE TABLE parent (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE child (
    id        INTEGER PRIMARY KEY,
    parent_id INTEGER NOT NULL REFERENCES parent(id)
);`)
	c.Assert(err, tc.ErrorIsNil)
	_, err = s.DB().ExecContext(c.Context(), "INSERT INTO parent (id, name) VALUES (1, 'one')")
	c.Assert(err, tc.ErrorIsNil)
}

func (s *errorsSuite) TestIsErrConstraintUnique(c *tc.C) {
	_, err := s.DB().ExecContext(c.Context(), "INSERT INTO parent (id, name) VALUES (2, 'one')")
	c.Assert(err, tc.NotNil)
	c.Check(database.IsErrConstraintUnique(err), tc.IsTrue)
	c.Check(database.IsErrConstraintForeignKey(err), tc.IsFalse)
	c.Check(database.IsErrConstraint(err), tc.IsTrue)
}

func (s *errorsSuite) TestIsErrConstraintPrimaryKey(c *tc.C) {
	_, err := s.DB().ExecContext(c.Context(), "INSERT INTO parent (id, name) VALUES (1, 'two')")
	c.Assert(err, tc.NotNil)
	c.Check(database.IsErrConstraintPrimaryKey(err), tc.IsTrue)
}

func (s *errorsSuite) TestIsErrConstraintForeignKey(c *tc.C) {
	_, err := s.DB().ExecContext(c.Context(), "INSERT INTO child (id, parent_id) VALUES (1, 99)")
	c.Assert(err, tc.NotNil)
	c.Check(database.IsErrConstraintForeignKey(err), tc.IsTrue)
	c.Check(database.IsErrConstraintUnique(err), tc.IsFalse)
}

func (s *errorsSuite) TestIsErrConstraintNotNull(c *tc.C) {
	_, err := s.DB().ExecContext(c.Context(), "INSERT INTO parent (id) VALUES (3)")
	c.Assert(err, tc.NotNil)
	c.Check(database.IsErrConstraintNotNull(err), tc.IsTrue)
}

func (s *errorsSuite) TestNonConstraintError(c *tc.C) {
	_, err := s.DB().ExecContext(c.Context(), "INSERT INTO missing (id) VALUES (1)")
	c.Assert(err, tc.NotNil)
	c.Check(database.IsErrConstraint(err), tc.IsFalse)
	c.Check(database.IsErrConstraint(errors.New("boom")), tc.IsFalse)
}
