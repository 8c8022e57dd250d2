// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/page"
	domainfile "github.com/canonical/filevault/domain/file"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
	internaldatabase "github.com/canonical/filevault/internal/database"
)

// UpdateFile merges the given changes over the file's latest revision
// and appends the result as a new update revision. It returns the
// appended revision, or nil when no field was set and nothing was
// written. It returns an error satisfying [fileerrors.FileNotFound] if
// the file does not exist or has been soft deleted, and
// [fileerrors.NameConflict] if a rename collides with a live file in
// the same page.
func (s *State) UpdateFile(ctx context.Context, uuid corefile.UUID, params domainfile.UpdateFileParams) (*domainfile.Revision, error) {
	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	var (
		revision dbRevision
		updated  bool
	)
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		file, err := s.getFileTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if file.DeletedAt.Valid {
			return errors.Annotatef(fileerrors.FileNotFound, "file %q is deleted", uuid)
		}

		// The file must exist and be live even when there is nothing
		// to change.
		if !params.Name.IsSet() && !params.Blob.IsSet() && !params.Licensing.IsSet() {
			return nil
		}

		latest, err := s.latestRevisionTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}

		name := params.Name.ValueOr(latest.Name)
		if params.Name.IsSet() {
			if err := s.checkNameAvailableTx(ctx, tx, page.UUID(file.PageUUID), name, uuid); err != nil {
				return errors.Trace(err)
			}
		}

		meta := blob.Metadata{
			Digest:    blob.Digest(latest.BlobDigest.String),
			MediaType: latest.MediaTypeHint,
			Size:      latest.SizeHint,
		}
		if changed, ok := params.Blob.Value(); ok {
			meta = changed
		}

		if err := s.renameFileTx(ctx, tx, uuid, name, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}
		if err := s.upsertBlobTx(ctx, tx, meta, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}

		revision = dbRevision{
			FileUUID:      uuid.String(),
			Number:        latest.Number + 1,
			Kind:          string(domainfile.KindUpdate),
			SiteUUID:      latest.SiteUUID,
			PageUUID:      file.PageUUID,
			UserUUID:      params.UserUUID.String(),
			Name:          name,
			BlobDigest:    nullString(meta.Digest.String()),
			MediaTypeHint: meta.MediaType,
			SizeHint:      meta.Size,
			Licensing:     params.Licensing.ValueOr(latest.Licensing),
			Comment:       params.Comment,
			CreatedAt:     params.CreatedAt,
		}
		updated = true
		return errors.Trace(s.insertRevisionTx(ctx, tx, revision))
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !updated {
		return nil, nil
	}
	result := revision.toDomain()
	return &result, nil
}

// MoveFile relocates a file to another page in the same site,
// optionally renaming it, and appends a move revision. It returns the
// appended revision, or nil when the destination and name already match
// and nothing was written. It returns an error satisfying
// [fileerrors.FileNotFound] if the file does not exist or has been soft
// deleted, [fileerrors.PageNotFound] if the destination page does not
// exist or belongs to another site, and [fileerrors.NameConflict] if
// the name collides with a live file in the destination page.
func (s *State) MoveFile(ctx context.Context, uuid corefile.UUID, params domainfile.MoveFileParams) (*domainfile.Revision, error) {
	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	var (
		revision dbRevision
		moved    bool
	)
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		file, err := s.getFileTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if file.DeletedAt.Valid {
			return errors.Annotatef(fileerrors.FileNotFound, "file %q is deleted", uuid)
		}

		latest, err := s.latestRevisionTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}

		destination, err := s.getPageTx(ctx, tx, params.DestinationPageUUID)
		if err != nil {
			return errors.Trace(err)
		}
		if destination.SiteUUID != latest.SiteUUID {
			return errors.Annotatef(fileerrors.PageNotFound,
				"page %q is not in site %q", params.DestinationPageUUID, latest.SiteUUID)
		}

		name := params.Name.ValueOr(file.Name)
		if destination.UUID == file.PageUUID && name == file.Name {
			return nil
		}

		if err := s.checkNameAvailableTx(ctx, tx, params.DestinationPageUUID, name, uuid); err != nil {
			return errors.Trace(err)
		}
		if err := s.relocateFileTx(ctx, tx, uuid, params.DestinationPageUUID, name, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}

		meta := blob.Metadata{
			Digest:    blob.Digest(latest.BlobDigest.String),
			MediaType: latest.MediaTypeHint,
			Size:      latest.SizeHint,
		}
		if err := s.upsertBlobTx(ctx, tx, meta, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}

		revision = dbRevision{
			FileUUID:      uuid.String(),
			Number:        latest.Number + 1,
			Kind:          string(domainfile.KindMove),
			SiteUUID:      latest.SiteUUID,
			PageUUID:      destination.UUID,
			UserUUID:      params.UserUUID.String(),
			Name:          name,
			BlobDigest:    latest.BlobDigest,
			MediaTypeHint: latest.MediaTypeHint,
			SizeHint:      latest.SizeHint,
			Licensing:     latest.Licensing,
			Comment:       params.Comment,
			CreatedAt:     params.CreatedAt,
		}
		moved = true
		return errors.Trace(s.insertRevisionTx(ctx, tx, revision))
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !moved {
		return nil, nil
	}
	result := revision.toDomain()
	return &result, nil
}

// DeleteFile soft deletes a file, releasing its name for reuse, and
// appends a tombstone revision. The revision chain and blob references
// are untouched. It returns the file as it stands after deletion, and
// an error satisfying [fileerrors.FileNotFound] if the file does not
// exist or is already deleted.
func (s *State) DeleteFile(ctx context.Context, uuid corefile.UUID, params domainfile.DeleteFileParams) (domainfile.File, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	file := dbFile{
		UUID:      uuid.String(),
		UpdatedAt: params.CreatedAt,
		DeletedAt: nullTime(params.CreatedAt),
	}
	stmt, err := s.Prepare(`
UPDATE file
SET deleted_at = $dbFile.deleted_at, updated_at = $dbFile.updated_at
WHERE uuid = $dbFile.uuid
AND deleted_at IS NULL`, file)
	if err != nil {
		return domainfile.File{}, errors.Annotate(err, "preparing delete file statement")
	}

	var row dbFile
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		current, err := s.getFileTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if current.DeletedAt.Valid {
			return errors.Annotatef(fileerrors.FileNotFound, "file %q is deleted", uuid)
		}

		latest, err := s.latestRevisionTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}

		var outcome sqlair.Outcome
		if err := tx.Query(ctx, stmt, file).Get(&outcome); err != nil {
			return errors.Annotatef(err, "deleting file %q", uuid)
		}
		if rows, err := outcome.Result().RowsAffected(); err != nil {
			return errors.Trace(err)
		} else if rows != 1 {
			return errors.Annotatef(fileerrors.FileNotFound, "file %q is not live", uuid)
		}

		meta := blob.Metadata{
			Digest:    blob.Digest(latest.BlobDigest.String),
			MediaType: latest.MediaTypeHint,
			Size:      latest.SizeHint,
		}
		if err := s.upsertBlobTx(ctx, tx, meta, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}

		revision := dbRevision{
			FileUUID:      uuid.String(),
			Number:        latest.Number + 1,
			Kind:          string(domainfile.KindTombstone),
			SiteUUID:      latest.SiteUUID,
			PageUUID:      latest.PageUUID,
			UserUUID:      params.UserUUID.String(),
			Name:          latest.Name,
			BlobDigest:    latest.BlobDigest,
			MediaTypeHint: latest.MediaTypeHint,
			SizeHint:      latest.SizeHint,
			Licensing:     latest.Licensing,
			Comment:       params.Comment,
			CreatedAt:     params.CreatedAt,
		}
		if err := s.insertRevisionTx(ctx, tx, revision); err != nil {
			return errors.Trace(err)
		}

		row, err = s.getFileTx(ctx, tx, uuid)
		return errors.Trace(err)
	})
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	return row.toDomain(), nil
}

// RestoreFile brings a soft deleted file back to life in its current
// page under its current name, and appends a restore revision. It
// returns an error satisfying [fileerrors.FileNotFound] if the file
// does not exist, [fileerrors.FileNotDeleted] if it is not deleted,
// and [fileerrors.NameConflict] if the name has since been claimed by
// a live file in the page.
func (s *State) RestoreFile(ctx context.Context, uuid corefile.UUID, params domainfile.RestoreFileParams) (domainfile.File, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	file := dbFile{UUID: uuid.String(), UpdatedAt: params.CreatedAt}
	stmt, err := s.Prepare(`
UPDATE file
SET deleted_at = NULL, updated_at = $dbFile.updated_at
WHERE uuid = $dbFile.uuid
AND deleted_at IS NOT NULL`, file)
	if err != nil {
		return domainfile.File{}, errors.Annotate(err, "preparing restore file statement")
	}

	var row dbFile
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		current, err := s.getFileTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if !current.DeletedAt.Valid {
			return errors.Annotatef(fileerrors.FileNotDeleted, "file %q", uuid)
		}

		if err := s.checkNameAvailableTx(ctx, tx, page.UUID(current.PageUUID), current.Name, uuid); err != nil {
			return errors.Trace(err)
		}

		latest, err := s.latestRevisionTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}

		var outcome sqlair.Outcome
		if err := tx.Query(ctx, stmt, file).Get(&outcome); err != nil {
			if internaldatabase.IsErrConstraintUnique(err) {
				return errors.Annotatef(fileerrors.NameConflict, "restoring file %q", current.Name)
			}
			return errors.Annotatef(err, "restoring file %q", uuid)
		}
		if rows, err := outcome.Result().RowsAffected(); err != nil {
			return errors.Trace(err)
		} else if rows != 1 {
			return errors.Annotatef(fileerrors.FileNotDeleted, "file %q", uuid)
		}

		meta := blob.Metadata{
			Digest:    blob.Digest(latest.BlobDigest.String),
			MediaType: latest.MediaTypeHint,
			Size:      latest.SizeHint,
		}
		if err := s.upsertBlobTx(ctx, tx, meta, params.CreatedAt); err != nil {
			return errors.Trace(err)
		}

		revision := dbRevision{
			FileUUID:      uuid.String(),
			Number:        latest.Number + 1,
			Kind:          string(domainfile.KindRestore),
			SiteUUID:      latest.SiteUUID,
			PageUUID:      current.PageUUID,
			UserUUID:      params.UserUUID.String(),
			Name:          current.Name,
			BlobDigest:    latest.BlobDigest,
			MediaTypeHint: latest.MediaTypeHint,
			SizeHint:      latest.SizeHint,
			Licensing:     latest.Licensing,
			Comment:       params.Comment,
			CreatedAt:     params.CreatedAt,
		}
		if err := s.insertRevisionTx(ctx, tx, revision); err != nil {
			return errors.Trace(err)
		}

		row, err = s.getFileTx(ctx, tx, uuid)
		return errors.Trace(err)
	})
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	return row.toDomain(), nil
}

// GetLatestRevision returns the newest revision of the file with the
// given uuid in the given page. It returns an error satisfying
// [fileerrors.FileNotFound] if no such file exists in the page.
func (s *State) GetLatestRevision(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (domainfile.Revision, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}

	var row dbRevision
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		file, err := s.getFileTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if file.PageUUID != pageUUID.String() {
			return errors.Annotatef(fileerrors.FileNotFound, "file %q in page %q", uuid, pageUUID)
		}
		row, err = s.latestRevisionTx(ctx, tx, uuid)
		return errors.Trace(err)
	})
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}
	return row.toDomain(), nil
}

// ListRevisions returns the full revision chain of the file with the
// given uuid, oldest first. It returns an error satisfying
// [fileerrors.FileNotFound] if the file does not exist.
func (s *State) ListRevisions(ctx context.Context, uuid corefile.UUID) ([]domainfile.Revision, error) {
	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	args := dbFileUUID{UUID: uuid.String()}
	stmt, err := s.Prepare(`
SELECT (r.file_uuid, r.revision_number, r.site_uuid, r.page_uuid,
        r.user_uuid, r.name, r.blob_digest, r.media_type_hint,
        r.size_hint, r.licensing, r.comment, r.created_at) AS (&dbRevision.*),
       k.kind AS &dbRevision.kind
FROM file_revision r
JOIN file_revision_kind k ON k.id = r.kind_id
WHERE r.file_uuid = $dbFileUUID.uuid
ORDER BY r.revision_number ASC`, dbRevision{}, args)
	if err != nil {
		return nil, errors.Annotate(err, "preparing list revisions statement")
	}

	var rows []dbRevision
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if _, err := s.getFileTx(ctx, tx, uuid); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, stmt, args).GetAll(&rows); err != nil && !errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(err, "listing revisions for file %q", uuid)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return transform.Slice(rows, dbRevision.toDomain), nil
}

// latestRevisionTx returns the newest revision row of a file's chain.
func (s *State) latestRevisionTx(ctx context.Context, tx *sqlair.TX, uuid corefile.UUID) (dbRevision, error) {
	args := dbFileUUID{UUID: uuid.String()}
	stmt, err := s.Prepare(`
SELECT (r.file_uuid, r.revision_number, r.site_uuid, r.page_uuid,
        r.user_uuid, r.name, r.blob_digest, r.media_type_hint,
        r.size_hint, r.licensing, r.comment, r.created_at) AS (&dbRevision.*),
       k.kind AS &dbRevision.kind
FROM file_revision r
JOIN file_revision_kind k ON k.id = r.kind_id
WHERE r.file_uuid = $dbFileUUID.uuid
ORDER BY r.revision_number DESC
LIMIT 1`, dbRevision{}, args)
	if err != nil {
		return dbRevision{}, errors.Annotate(err, "preparing latest revision statement")
	}

	var row dbRevision
	if err := tx.Query(ctx, stmt, args).Get(&row); errors.Is(err, sqlair.ErrNoRows) {
		return dbRevision{}, errors.Annotatef(fileerrors.RevisionNotFound, "file %q has no revisions", uuid)
	} else if err != nil {
		return dbRevision{}, errors.Annotatef(err, "retrieving latest revision for file %q", uuid)
	}
	return row, nil
}

// renameFileTx updates a live file row's name, mapping a unique
// constraint violation to [fileerrors.NameConflict].
func (s *State) renameFileTx(ctx context.Context, tx *sqlair.TX, uuid corefile.UUID, name string, now time.Time) error {
	file := dbFile{UUID: uuid.String(), Name: name, UpdatedAt: now}
	stmt, err := s.Prepare(`
UPDATE file
SET name = $dbFile.name, updated_at = $dbFile.updated_at
WHERE uuid = $dbFile.uuid
AND deleted_at IS NULL`, file)
	if err != nil {
		return errors.Annotate(err, "preparing rename file statement")
	}

	var outcome sqlair.Outcome
	if err := tx.Query(ctx, stmt, file).Get(&outcome); err != nil {
		if internaldatabase.IsErrConstraintUnique(err) {
			return errors.Annotatef(fileerrors.NameConflict, "renaming file to %q", name)
		}
		return errors.Annotatef(err, "renaming file %q", uuid)
	}
	if rows, err := outcome.Result().RowsAffected(); err != nil {
		return errors.Trace(err)
	} else if rows != 1 {
		return errors.Annotatef(fileerrors.FileNotFound, "file %q is not live", uuid)
	}
	return nil
}

// relocateFileTx updates a live file row's page and name, mapping
// constraint violations to domain errors.
func (s *State) relocateFileTx(ctx context.Context, tx *sqlair.TX, uuid corefile.UUID, pageUUID page.UUID, name string, now time.Time) error {
	file := dbFile{UUID: uuid.String(), PageUUID: pageUUID.String(), Name: name, UpdatedAt: now}
	stmt, err := s.Prepare(`
UPDATE file
SET page_uuid = $dbFile.page_uuid, name = $dbFile.name, updated_at = $dbFile.updated_at
WHERE uuid = $dbFile.uuid
AND deleted_at IS NULL`, file)
	if err != nil {
		return errors.Annotate(err, "preparing relocate file statement")
	}

	var outcome sqlair.Outcome
	if err := tx.Query(ctx, stmt, file).Get(&outcome); err != nil {
		if internaldatabase.IsErrConstraintUnique(err) {
			return errors.Annotatef(fileerrors.NameConflict, "moving file to name %q", name)
		}
		if internaldatabase.IsErrConstraintForeignKey(err) {
			return errors.Annotatef(fileerrors.PageNotFound, "moving file to page %q", pageUUID)
		}
		return errors.Annotatef(err, "moving file %q", uuid)
	}
	if rows, err := outcome.Result().RowsAffected(); err != nil {
		return errors.Trace(err)
	} else if rows != 1 {
		return errors.Annotatef(fileerrors.FileNotFound, "file %q is not live", uuid)
	}
	return nil
}
