// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"

	"github.com/juju/tc"

	coredatabase "github.com/canonical/filevault/core/database"
	"github.com/canonical/filevault/core/database/schema"
	domainschema "github.com/canonical/filevault/domain/schema"
	databasetesting "github.com/canonical/filevault/internal/database/testing"
)

// VaultSuite is used to provide a database reference to tests.
// It is pre-populated with the file vault schema.
type VaultSuite struct {
	databasetesting.SqliteSuite
}

// SetUpTest is responsible for setting up a testing database suite
// initialised with the file vault schema.
func (s *VaultSuite) SetUpTest(c *tc.C) {
	s.SqliteSuite.SetUpTest(c)
	s.SqliteSuite.ApplyDDL(c, &SchemaApplier{
		Schema: domainschema.VaultDDL(),
	})
}

// SchemaApplier applies a schema to a database.
type SchemaApplier struct {
	Schema *schema.Schema
}

// Apply is responsible for applying the schema to the database behind
// the given transaction runner.
func (s *SchemaApplier) Apply(c *tc.C, ctx context.Context, runner coredatabase.TxnRunner) {
	changeSet, err := s.Schema.Ensure(ctx, runner)
	c.Assert(err, tc.ErrorIsNil)
	c.Assert(changeSet.Post, tc.Equals, s.Schema.Len())
}
