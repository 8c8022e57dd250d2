// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package file

import (
	"time"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/page"
	"github.com/canonical/filevault/core/site"
	"github.com/canonical/filevault/core/user"
)

// RevisionKind is the kind of a revision record in a file's history.
type RevisionKind string

const (
	// KindFirst is the kind of the revision that created the file. It is
	// always revision number 1, and every file has exactly one.
	KindFirst RevisionKind = "first"

	// KindUpdate records a change to the file's name, content or
	// licensing.
	KindUpdate RevisionKind = "update"

	// KindMove records a relocation of the file to another page,
	// possibly under a new name.
	KindMove RevisionKind = "move"

	// KindTombstone records a soft deletion. When it is the latest
	// revision, the file is deleted.
	KindTombstone RevisionKind = "tombstone"

	// KindRestore reverses a preceding tombstone.
	KindRestore RevisionKind = "restore"
)

// Optional is a tri-state request field: it is either unset, meaning the
// previous revision's value carries forward unchanged, or set to a value,
// which overwrites even when the value is empty. The distinction between
// "not provided" and "provided as empty" is load bearing for update
// requests, which is why these fields are not plain pointers in the
// public arguments.
type Optional[T any] struct {
	value T
	set   bool
}

// Set returns an Optional holding the given value.
func Set[T any](value T) Optional[T] {
	return Optional[T]{value: value, set: true}
}

// IsSet reports whether the field was explicitly provided.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Value returns the provided value and whether it was set at all.
func (o Optional[T]) Value() (T, bool) {
	return o.value, o.set
}

// ValueOr returns the provided value, or the given fallback when the
// field is unset.
func (o Optional[T]) ValueOr(fallback T) T {
	if o.set {
		return o.value
	}
	return fallback
}

// CreateFileArgs holds the caller supplied metadata for creating a file.
// The content bytes travel separately.
type CreateFileArgs struct {
	// UserUUID is the acting user.
	UserUUID user.UUID

	// Name is the file's display name, unique among live files in the
	// target page.
	Name string

	// Licensing is an opaque licensing document recorded on the
	// revision.
	Licensing string

	// Comment is the free text revision comment.
	Comment string
}

// UpdateFileArgs holds the caller supplied changes for updating a file.
// Unset fields carry the previous revision's values forward.
type UpdateFileArgs struct {
	// UserUUID is the acting user.
	UserUUID user.UUID

	// Comment is the free text revision comment.
	Comment string

	// Name, when set, renames the file.
	Name Optional[string]

	// Data, when set, replaces the file's content.
	Data Optional[[]byte]

	// Licensing, when set, replaces the licensing document.
	Licensing Optional[string]
}

// MoveFileArgs holds the caller supplied changes for moving a file to
// another page.
type MoveFileArgs struct {
	// UserUUID is the acting user.
	UserUUID user.UUID

	// Comment is the free text revision comment.
	Comment string

	// DestinationPageUUID is the page the file is moving to. It must
	// belong to the same site as the file's current page.
	DestinationPageUUID page.UUID

	// Name, when set, renames the file as part of the move. When unset
	// the name is unchanged.
	Name Optional[string]
}

// DeleteFileArgs holds the caller supplied metadata for soft deleting a
// file.
type DeleteFileArgs struct {
	// UserUUID is the acting user.
	UserUUID user.UUID

	// Comment is the free text revision comment.
	Comment string
}

// RestoreFileArgs holds the caller supplied metadata for restoring a
// soft deleted file.
type RestoreFileArgs struct {
	// UserUUID is the acting user.
	UserUUID user.UUID

	// Comment is the free text revision comment.
	Comment string
}

// File is the denormalized current state of a file. It mirrors the
// latest revision's page and name, and exists so that existence and
// uniqueness checks never have to walk the revision chain.
type File struct {
	// UUID is the file's stable identifier.
	UUID corefile.UUID

	// PageUUID is the page the file currently belongs to.
	PageUUID page.UUID

	// Name is the file's current display name.
	Name string

	// CreatedAt is the time the file was created.
	CreatedAt time.Time

	// UpdatedAt is the time of the latest revision.
	UpdatedAt time.Time

	// DeletedAt is the soft deletion time. It is nil exactly when the
	// latest revision is not a tombstone.
	DeletedAt *time.Time
}

// Deleted reports whether the file is currently soft deleted.
func (f File) Deleted() bool {
	return f.DeletedAt != nil
}

// Revision is one immutable record in a file's append-only history.
type Revision struct {
	// FileUUID is the owning file.
	FileUUID corefile.UUID

	// Number is the 1-based position in the chain. Numbers are
	// contiguous; number 1 is always the first revision.
	Number int

	// Kind describes what this revision records.
	Kind RevisionKind

	// SiteUUID is the site the file belonged to as of this revision.
	SiteUUID site.UUID

	// PageUUID is the page the file belonged to as of this revision.
	// Moves record the destination page; earlier revisions keep the
	// page they were made in.
	PageUUID page.UUID

	// UserUUID is the user that made this revision.
	UserUUID user.UUID

	// Name is the file's name as of this revision.
	Name string

	// Digest is the content address of the file's bytes as of this
	// revision. Metadata-only revisions carry the previous digest
	// forward, so the blob reference count accounts for every revision
	// in every chain.
	Digest blob.Digest

	// MediaTypeHint is the media type sniffed when the referenced
	// content was uploaded.
	MediaTypeHint string

	// SizeHint is the content size in bytes as recorded at upload time.
	SizeHint int64

	// Licensing is the opaque licensing document as of this revision.
	Licensing string

	// Comment is the free text comment supplied with the revision.
	Comment string

	// CreatedAt is the time the revision was appended.
	CreatedAt time.Time
}

// Audit is a record of a privileged operation against a file.
type Audit struct {
	// UUID identifies the audit record.
	UUID string

	// Operation names the privileged operation performed.
	Operation string

	// FileUUID is the file the operation targeted. Audit records
	// outlive the files they describe.
	FileUUID corefile.UUID

	// Digest is the content address the operation targeted, when it
	// had one.
	Digest blob.Digest

	// UserUUID is the user that performed the operation.
	UserUUID user.UUID

	// Detail is a free text account of what was done.
	Detail string

	// CreatedAt is the time the operation was performed.
	CreatedAt time.Time
}
