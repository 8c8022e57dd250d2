// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/canonical/filevault/core/blob"
	coredatabase "github.com/canonical/filevault/core/database"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/page"
	"github.com/canonical/filevault/domain"
	domainfile "github.com/canonical/filevault/domain/file"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
	internaldatabase "github.com/canonical/filevault/internal/database"
)

// State implements the persistence layer for the file vault domain.
// Every exported mutating method is one atomic unit: the file row
// mutation and the revision append commit together or not at all.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with the underlying file
// vault database.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// CreateFile inserts the file row, the blob reference and the first
// revision in one transaction, returning the appended revision. It
// returns an error satisfying [fileerrors.PageNotFound] if the target
// page does not exist, and [fileerrors.NameConflict] if a live file
// with the same name already exists in the page.
func (s *State) CreateFile(ctx context.Context, params domainfile.CreateFileParams) (domainfile.Revision, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}

	file := dbFile{
		UUID:      params.UUID.String(),
		PageUUID:  params.PageUUID.String(),
		Name:      params.Name,
		CreatedAt: params.CreatedAt,
		UpdatedAt: params.CreatedAt,
	}

	insertStmt, err := s.Prepare(`
INSERT INTO file (uuid, page_uuid, name, created_at, updated_at, deleted_at)
VALUES ($dbFile.*)`, file)
	if err != nil {
		return domainfile.Revision{}, errors.Annotate(err, "preparing insert file statement")
	}

	var revision dbRevision
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		pageRow, err := s.getPageTx(ctx, tx, params.PageUUID)
		if err != nil {
			return errors.Trace(err)
		}

		if err := s.checkNameAvailableTx(ctx, tx, params.PageUUID, params.Name, ""); err != nil {
			return errors.Trace(err)
		}

		if err := tx.Query(ctx, insertStmt, file).Run(); err != nil {
			// The partial unique index is the authoritative conflict
			// guard; the probe above only delivers the common case
			// without relying on it.
			if internaldatabase.IsErrConstraintUnique(err) {
				return errors.Annotatef(fileerrors.NameConflict, "creating file %q", params.Name)
			}
			if internaldatabase.IsErrConstraintForeignKey(err) {
				return errors.Annotatef(fileerrors.PageNotFound, "creating file %q", params.Name)
			}
			return errors.Annotate(err, "inserting file")
		}

		if err := s.upsertBlobTx(ctx, tx, params.Blob, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}

		revision = dbRevision{
			FileUUID:      params.UUID.String(),
			Number:        1,
			Kind:          string(domainfile.KindFirst),
			SiteUUID:      pageRow.SiteUUID,
			PageUUID:      params.PageUUID.String(),
			UserUUID:      params.UserUUID.String(),
			Name:          params.Name,
			BlobDigest:    nullString(params.Blob.Digest.String()),
			MediaTypeHint: params.Blob.MediaType,
			SizeHint:      params.Blob.Size,
			Licensing:     params.Licensing,
			Comment:       params.Comment,
			CreatedAt:     params.CreatedAt,
		}
		return errors.Trace(s.insertRevisionTx(ctx, tx, revision))
	})
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}
	return revision.toDomain(), nil
}

// GetFile returns the file with the given uuid, scoped to the given
// page. Soft deleted files are returned; callers inspect DeletedAt.
// It returns an error satisfying [fileerrors.FileNotFound] if no such
// file exists in the page.
func (s *State) GetFile(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (domainfile.File, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	args := dbFile{UUID: uuid.String(), PageUUID: pageUUID.String()}
	stmt, err := s.Prepare(`
SELECT &dbFile.*
FROM file
WHERE uuid = $dbFile.uuid AND page_uuid = $dbFile.page_uuid`, args)
	if err != nil {
		return domainfile.File{}, errors.Annotate(err, "preparing select file statement")
	}

	var row dbFile
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, stmt, args).Get(&row)
	})
	if errors.Is(err, sqlair.ErrNoRows) {
		return domainfile.File{}, errors.Annotatef(fileerrors.FileNotFound, "file %q in page %q", uuid, pageUUID)
	} else if err != nil {
		return domainfile.File{}, errors.Annotatef(err, "retrieving file %q", uuid)
	}
	return row.toDomain(), nil
}

// GetFileDirect returns the file with the given uuid regardless of the
// page it currently belongs to. It returns an error satisfying
// [fileerrors.FileNotFound] if the file does not exist.
func (s *State) GetFileDirect(ctx context.Context, uuid corefile.UUID) (domainfile.File, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	var row dbFile
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var err error
		row, err = s.getFileTx(ctx, tx, uuid)
		return errors.Trace(err)
	})
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	return row.toDomain(), nil
}

// CheckNameAvailable returns an error satisfying
// [fileerrors.NameConflict] if a live file with the given name exists
// in the given page. A nil return is advisory only: the authoritative
// enforcement is the unique index checked inside mutating transactions.
func (s *State) CheckNameAvailable(ctx context.Context, pageUUID page.UUID, name string) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return s.checkNameAvailableTx(ctx, tx, pageUUID, name, "")
	})
	return errors.Trace(err)
}

// GetBlob returns the blob record for the given digest, including its
// current reference count. It returns an error satisfying
// [fileerrors.BlobNotFound] if no revision has recorded the digest.
func (s *State) GetBlob(ctx context.Context, digest blob.Digest) (blob.Blob, error) {
	db, err := s.DB()
	if err != nil {
		return blob.Blob{}, errors.Trace(err)
	}

	args := dbDigest{Digest: digest.String()}
	stmt, err := s.Prepare(`
SELECT &dbBlob.*
FROM blob
WHERE digest = $dbDigest.digest`, dbBlob{}, args)
	if err != nil {
		return blob.Blob{}, errors.Annotate(err, "preparing select blob statement")
	}

	var row dbBlob
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, stmt, args).Get(&row)
	})
	if errors.Is(err, sqlair.ErrNoRows) {
		return blob.Blob{}, errors.Annotatef(fileerrors.BlobNotFound, "blob %q", digest)
	} else if err != nil {
		return blob.Blob{}, errors.Annotatef(err, "retrieving blob %q", digest)
	}
	return row.toDomain(), nil
}

// getPageTx resolves a page row, failing with
// [fileerrors.PageNotFound] when absent.
func (s *State) getPageTx(ctx context.Context, tx *sqlair.TX, pageUUID page.UUID) (dbPage, error) {
	args := dbPageUUID{UUID: pageUUID.String()}
	stmt, err := s.Prepare(`
SELECT (uuid, site_uuid) AS (&dbPage.*)
FROM page
WHERE uuid = $dbPageUUID.uuid`, dbPage{}, args)
	if err != nil {
		return dbPage{}, errors.Annotate(err, "preparing select page statement")
	}

	var row dbPage
	if err := tx.Query(ctx, stmt, args).Get(&row); errors.Is(err, sqlair.ErrNoRows) {
		return dbPage{}, errors.Annotatef(fileerrors.PageNotFound, "page %q", pageUUID)
	} else if err != nil {
		return dbPage{}, errors.Annotatef(err, "retrieving page %q", pageUUID)
	}
	return row, nil
}

// getFileTx resolves a file row by uuid alone, failing with
// [fileerrors.FileNotFound] when absent.
func (s *State) getFileTx(ctx context.Context, tx *sqlair.TX, uuid corefile.UUID) (dbFile, error) {
	args := dbFileUUID{UUID: uuid.String()}
	stmt, err := s.Prepare(`
SELECT &dbFile.*
FROM file
WHERE uuid = $dbFileUUID.uuid`, dbFile{}, args)
	if err != nil {
		return dbFile{}, errors.Annotate(err, "preparing select file statement")
	}

	var row dbFile
	if err := tx.Query(ctx, stmt, args).Get(&row); errors.Is(err, sqlair.ErrNoRows) {
		return dbFile{}, errors.Annotatef(fileerrors.FileNotFound, "file %q", uuid)
	} else if err != nil {
		return dbFile{}, errors.Annotatef(err, "retrieving file %q", uuid)
	}
	return row, nil
}

// checkNameAvailableTx probes for a live file with the given name in
// the given page. The excluded uuid, when not empty, ignores the file
// itself so that a no-op rename does not conflict with its own row.
func (s *State) checkNameAvailableTx(ctx context.Context, tx *sqlair.TX, pageUUID page.UUID, name string, excluded corefile.UUID) error {
	probe := dbFileName{PageUUID: pageUUID.String(), Name: name}
	exclude := dbFileUUID{UUID: excluded.String()}
	stmt, err := s.Prepare(`
SELECT uuid AS &dbFileUUID.uuid
FROM file
WHERE page_uuid = $dbFileName.page_uuid
AND name = $dbFileName.name
AND deleted_at IS NULL
AND uuid != $dbFileUUID.uuid`, probe, exclude)
	if err != nil {
		return errors.Annotate(err, "preparing conflict probe statement")
	}

	var existing dbFileUUID
	if err := tx.Query(ctx, stmt, probe, exclude).Get(&existing); errors.Is(err, sqlair.ErrNoRows) {
		return nil
	} else if err != nil {
		return errors.Annotate(err, "probing name conflict")
	}
	return errors.Annotatef(fileerrors.NameConflict, "file %q in page %q", name, pageUUID)
}

// upsertBlobTx records a revision's reference to a digest: the blob row
// is created on first reference, and its reference count incremented on
// every subsequent one.
func (s *State) upsertBlobTx(ctx context.Context, tx *sqlair.TX, meta blob.Metadata, now time.Time) error {
	row := dbBlob{
		Digest:    meta.Digest.String(),
		Size:      meta.Size,
		MediaType: meta.MediaType,
		RefCount:  1,
		CreatedAt: now,
	}
	stmt, err := s.Prepare(`
INSERT INTO blob (digest, size, media_type, ref_count, created_at)
VALUES ($dbBlob.*)
ON CONFLICT (digest) DO UPDATE SET ref_count = ref_count + 1`, row)
	if err != nil {
		return errors.Annotate(err, "preparing upsert blob statement")
	}

	if err := tx.Query(ctx, stmt, row).Run(); err != nil {
		return errors.Annotatef(err, "recording blob reference %q", meta.Digest)
	}
	return nil
}

// insertRevisionTx appends a revision row. The primary key on
// (file_uuid, revision_number) guarantees that no sequence number is
// ever reused, even under concurrent appends to the same chain.
func (s *State) insertRevisionTx(ctx context.Context, tx *sqlair.TX, revision dbRevision) error {
	stmt, err := s.Prepare(`
INSERT INTO file_revision (file_uuid, revision_number, kind_id, site_uuid,
                           page_uuid, user_uuid, name, blob_digest,
                           media_type_hint, size_hint, licensing, comment,
                           created_at)
SELECT $dbRevision.file_uuid, $dbRevision.revision_number, k.id,
       $dbRevision.site_uuid, $dbRevision.page_uuid, $dbRevision.user_uuid,
       $dbRevision.name, $dbRevision.blob_digest, $dbRevision.media_type_hint,
       $dbRevision.size_hint, $dbRevision.licensing, $dbRevision.comment,
       $dbRevision.created_at
FROM file_revision_kind k
WHERE k.kind = $dbRevision.kind`, revision)
	if err != nil {
		return errors.Annotate(err, "preparing insert revision statement")
	}

	var outcome sqlair.Outcome
	if err := tx.Query(ctx, stmt, revision).Get(&outcome); err != nil {
		return errors.Annotatef(err, "inserting revision %d for file %q", revision.Number, revision.FileUUID)
	}
	if rows, err := outcome.Result().RowsAffected(); err != nil {
		return errors.Trace(err)
	} else if rows != 1 {
		return errors.Errorf("expected 1 revision row to be inserted, got %d", rows)
	}
	return nil
}
