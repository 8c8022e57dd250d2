// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/juju/tc"
)

type digestSuite struct{}

func TestDigestSuite(t *testing.T) {
	tc.Run(t, &digestSuite{})
}

func (*digestSuite) TestValidate(c *tc.C) {
	sum := sha256.Sum256([]byte("anything"))
	digest := Digest(hex.EncodeToString(sum[:]))
	c.Check(digest.Validate(), tc.ErrorIsNil)
}

func (*digestSuite) TestValidateInvalid(c *tc.C) {
	for _, invalid := range []Digest{
		"",
		"abc123",
		Digest(strings.Repeat("g", DigestLength)),
		Digest(strings.Repeat("A", DigestLength)),
		Digest(strings.Repeat("0", DigestLength-1) + "/"),
	} {
		c.Check(invalid.Validate(), tc.ErrorIs, errors.NotValid)
	}
}
