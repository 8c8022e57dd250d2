// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"
	"time"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/page"
	"github.com/canonical/filevault/core/site"
	"github.com/canonical/filevault/core/user"
	domainfile "github.com/canonical/filevault/domain/file"
)

// These structs represent the persistent file vault schema in the
// database.

// dbFile represents a row from the file table.
type dbFile struct {
	UUID      string       `db:"uuid"`
	PageUUID  string       `db:"page_uuid"`
	Name      string       `db:"name"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
	DeletedAt sql.NullTime `db:"deleted_at"`
}

// toDomain converts the row into the domain file representation.
func (f dbFile) toDomain() domainfile.File {
	var deletedAt *time.Time
	if f.DeletedAt.Valid {
		t := f.DeletedAt.Time
		deletedAt = &t
	}
	return domainfile.File{
		UUID:      corefile.UUID(f.UUID),
		PageUUID:  page.UUID(f.PageUUID),
		Name:      f.Name,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		DeletedAt: deletedAt,
	}
}

// dbFileUUID is used to pass a file uuid to a query.
type dbFileUUID struct {
	UUID string `db:"uuid"`
}

// dbPageUUID is used to pass a page uuid to a query.
type dbPageUUID struct {
	UUID string `db:"uuid"`
}

// dbPage represents a row from the page table.
type dbPage struct {
	UUID     string `db:"uuid"`
	SiteUUID string `db:"site_uuid"`
}

// dbFileName is used for live name conflict probes.
type dbFileName struct {
	PageUUID string `db:"page_uuid"`
	Name     string `db:"name"`
}

// dbRevision represents a row from the file_revision table, with the
// revision kind resolved from its lookup table.
type dbRevision struct {
	FileUUID      string         `db:"file_uuid"`
	Number        int            `db:"revision_number"`
	Kind          string         `db:"kind"`
	SiteUUID      string         `db:"site_uuid"`
	PageUUID      string         `db:"page_uuid"`
	UserUUID      string         `db:"user_uuid"`
	Name          string         `db:"name"`
	BlobDigest    sql.NullString `db:"blob_digest"`
	MediaTypeHint string         `db:"media_type_hint"`
	SizeHint      int64          `db:"size_hint"`
	Licensing     string         `db:"licensing"`
	Comment       string         `db:"comment"`
	CreatedAt     time.Time      `db:"created_at"`
}

// toDomain converts the row into the domain revision representation.
func (r dbRevision) toDomain() domainfile.Revision {
	return domainfile.Revision{
		FileUUID:      corefile.UUID(r.FileUUID),
		Number:        r.Number,
		Kind:          domainfile.RevisionKind(r.Kind),
		SiteUUID:      site.UUID(r.SiteUUID),
		PageUUID:      page.UUID(r.PageUUID),
		UserUUID:      user.UUID(r.UserUUID),
		Name:          r.Name,
		Digest:        blob.Digest(r.BlobDigest.String),
		MediaTypeHint: r.MediaTypeHint,
		SizeHint:      r.SizeHint,
		Licensing:     r.Licensing,
		Comment:       r.Comment,
		CreatedAt:     r.CreatedAt,
	}
}

// dbBlob represents a row from the blob table.
type dbBlob struct {
	Digest    string    `db:"digest"`
	Size      int64     `db:"size"`
	MediaType string    `db:"media_type"`
	RefCount  int64     `db:"ref_count"`
	CreatedAt time.Time `db:"created_at"`
}

// toDomain converts the row into the core blob representation.
func (b dbBlob) toDomain() blob.Blob {
	return blob.Blob{
		Metadata: blob.Metadata{
			Digest:    blob.Digest(b.Digest),
			MediaType: b.MediaType,
			Size:      b.Size,
		},
		RefCount:  b.RefCount,
		CreatedAt: b.CreatedAt,
	}
}

// dbDigest is used to pass a blob digest to a query.
type dbDigest struct {
	Digest string `db:"digest"`
}

// dbAudit represents a row in the file_audit table.
type dbAudit struct {
	UUID       string         `db:"uuid"`
	Operation  string         `db:"operation"`
	FileUUID   string         `db:"file_uuid"`
	BlobDigest sql.NullString `db:"blob_digest"`
	UserUUID   string         `db:"user_uuid"`
	Detail     string         `db:"detail"`
	CreatedAt  time.Time      `db:"created_at"`
}

// toDomain converts the row into the domain audit representation.
func (a dbAudit) toDomain() domainfile.Audit {
	return domainfile.Audit{
		UUID:      a.UUID,
		Operation: a.Operation,
		FileUUID:  corefile.UUID(a.FileUUID),
		Digest:    blob.Digest(a.BlobDigest.String),
		UserUUID:  user.UUID(a.UserUUID),
		Detail:    a.Detail,
		CreatedAt: a.CreatedAt,
	}
}

// nullString returns a NULL value for the empty string, which is how
// digest-less revisions are stored.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime wraps a time for storage in a nullable column.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// uuids is a slice of uuid values for IN clause expansion.
type uuids []string

// digests is a slice of digest values for IN clause expansion.
type digests []string
