// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package blob

import (
	"time"

	"github.com/juju/errors"
)

// DigestLength is the length of a hex encoded SHA-256 digest.
const DigestLength = 64

// Digest identifies blob content by the hex encoded SHA-256 hash of its
// bytes. Identical content always yields the same digest, which is what
// makes deduplicated storage possible.
type Digest string

// Validate ensures the consistency of the digest.
func (d Digest) Validate() error {
	if len(d) != DigestLength {
		return errors.NotValidf("digest %q", d)
	}
	for _, c := range d {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return errors.NotValidf("digest %q", d)
		}
	}
	return nil
}

// String implements the stringer interface for Digest.
func (d Digest) String() string {
	return string(d)
}

// Metadata describes stored blob content. It is derived entirely from
// the content bytes at put time.
type Metadata struct {
	// Digest is the content address of the blob.
	Digest Digest

	// MediaType is the sniffed media type of the content.
	MediaType string

	// Size is the content length in bytes.
	Size int64
}

// Blob is the metadata database's view of stored content, including the
// number of revisions that currently reference it.
type Blob struct {
	Metadata

	// RefCount is the number of file revisions referencing the digest.
	// Physical content must never be removed while it is non zero.
	RefCount int64

	// CreatedAt is the time the first referencing revision was recorded.
	CreatedAt time.Time
}
