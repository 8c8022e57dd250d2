// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package file

import (
	"testing"
	"time"

	"github.com/juju/tc"
)

type optionalSuite struct{}

func TestOptionalSuite(t *testing.T) {
	tc.Run(t, &optionalSuite{})
}

func (*optionalSuite) TestUnset(c *tc.C) {
	var field Optional[string]
	c.Check(field.IsSet(), tc.IsFalse)

	value, ok := field.Value()
	c.Check(ok, tc.IsFalse)
	c.Check(value, tc.Equals, "")
	c.Check(field.ValueOr("fallback"), tc.Equals, "fallback")
}

func (*optionalSuite) TestSet(c *tc.C) {
	field := Set("value")
	c.Check(field.IsSet(), tc.IsTrue)

	value, ok := field.Value()
	c.Check(ok, tc.IsTrue)
	c.Check(value, tc.Equals, "value")
	c.Check(field.ValueOr("fallback"), tc.Equals, "value")
}

func (*optionalSuite) TestSetToEmptyIsStillSet(c *tc.C) {
	field := Set("")
	c.Check(field.IsSet(), tc.IsTrue)
	c.Check(field.ValueOr("fallback"), tc.Equals, "")
}

type fileSuite struct{}

func TestFileSuite(t *testing.T) {
	tc.Run(t, &fileSuite{})
}

func (*fileSuite) TestDeleted(c *tc.C) {
	var file File
	c.Check(file.Deleted(), tc.IsFalse)

	now := time.Now()
	file.DeletedAt = &now
	c.Check(file.Deleted(), tc.IsTrue)
}
