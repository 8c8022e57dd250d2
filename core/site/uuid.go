// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package site

import (
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// UUID represents a site unique identifier. Sites are the top level
// containers; every page belongs to exactly one site.
type UUID string

// NewUUID is a convenience function for generating a new site uuid.
func NewUUID() (UUID, error) {
	uuid, err := utils.NewUUID()
	if err != nil {
		return UUID(""), err
	}
	return UUID(uuid.String()), nil
}

// Validate ensures the consistency of the UUID.
func (u UUID) Validate() error {
	if u == "" {
		return errors.NotValidf("empty site uuid")
	}
	if !utils.IsValidUUIDString(string(u)) {
		return errors.NotValidf("site uuid %q", u)
	}
	return nil
}

// String implements the stringer interface for UUID.
func (u UUID) String() string {
	return string(u)
}
