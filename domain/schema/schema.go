// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	"github.com/canonical/filevault/core/database/schema"
)

// VaultDDL is used to create the file vault database schema.
func VaultDDL() *schema.Schema {
	patches := []func() schema.Patch{
		containerSchema,
		blobSchema,
		fileSchema,
		fileRevisionSchema,
		fileAuditSchema,
	}

	vaultSchema := schema.New()
	for _, fn := range patches {
		vaultSchema.Add(fn())
	}
	return vaultSchema
}

// containerSchema holds the minimal site and page rows that files hang
// off. Site and page lifecycle management is external to this module;
// the rows exist so that container NotFound and referential integrity
// are enforced by the database rather than by convention.
func containerSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE site (
    uuid       TEXT NOT NULL PRIMARY KEY,
    slug       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT (DATETIME('now')),
    CONSTRAINT chk_site_slug_not_empty
        CHECK (slug != '')
);

CREATE UNIQUE INDEX idx_site_slug
ON site (slug);

CREATE TABLE page (
    uuid       TEXT NOT NULL PRIMARY KEY,
    site_uuid  TEXT NOT NULL,
    slug       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT (DATETIME('now')),
    CONSTRAINT fk_page_site
        FOREIGN KEY (site_uuid)
        REFERENCES site(uuid),
    CONSTRAINT chk_page_slug_not_empty
        CHECK (slug != '')
);

CREATE UNIQUE INDEX idx_page_site_slug
ON page (site_uuid, slug);
`)
}

func blobSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE blob (
    digest     TEXT NOT NULL PRIMARY KEY,
    size       INT NOT NULL,
    media_type TEXT NOT NULL,
    ref_count  INT NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    CONSTRAINT chk_blob_ref_count_not_negative
        CHECK (ref_count >= 0)
);
`)
}

func fileSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE file (
    uuid       TEXT NOT NULL PRIMARY KEY,
    page_uuid  TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    deleted_at DATETIME,
    CONSTRAINT fk_file_page
        FOREIGN KEY (page_uuid)
        REFERENCES page(uuid),
    CONSTRAINT chk_file_name_not_empty
        CHECK (name != '')
);

-- Name uniqueness among live files sharing a page. This partial index
-- is the authoritative conflict guard: two concurrent operations cannot
-- both commit a duplicate live name, regardless of what any prior
-- read-only check observed. Soft deleted files leave the uniqueness
-- domain, so a live file may share a name with any number of deleted
-- ones.
CREATE UNIQUE INDEX idx_file_page_name_live
ON file (page_uuid, name)
WHERE deleted_at IS NULL;

CREATE INDEX idx_file_page
ON file (page_uuid);
`)
}

func fileRevisionSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE file_revision_kind (
    id   INT NOT NULL PRIMARY KEY,
    kind TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_file_revision_kind
ON file_revision_kind (kind);

INSERT INTO file_revision_kind VALUES
    (0, 'first'),
    (1, 'update'),
    (2, 'move'),
    (3, 'tombstone'),
    (4, 'restore');

CREATE TABLE file_revision (
    file_uuid       TEXT NOT NULL,
    revision_number INT NOT NULL,
    kind_id         INT NOT NULL,
    site_uuid       TEXT NOT NULL,
    page_uuid       TEXT NOT NULL,
    user_uuid       TEXT NOT NULL,
    name            TEXT NOT NULL,
    blob_digest     TEXT,
    media_type_hint TEXT NOT NULL,
    size_hint       INT NOT NULL,
    licensing       TEXT NOT NULL,
    comment         TEXT NOT NULL,
    created_at      DATETIME NOT NULL,
    CONSTRAINT pk_file_revision
        PRIMARY KEY (file_uuid, revision_number),
    CONSTRAINT fk_file_revision_file
        FOREIGN KEY (file_uuid)
        REFERENCES file(uuid),
    CONSTRAINT fk_file_revision_kind
        FOREIGN KEY (kind_id)
        REFERENCES file_revision_kind(id),
    CONSTRAINT fk_file_revision_site
        FOREIGN KEY (site_uuid)
        REFERENCES site(uuid),
    CONSTRAINT fk_file_revision_page
        FOREIGN KEY (page_uuid)
        REFERENCES page(uuid),
    CONSTRAINT fk_file_revision_blob
        FOREIGN KEY (blob_digest)
        REFERENCES blob(digest),
    CONSTRAINT chk_file_revision_number_positive
        CHECK (revision_number >= 1),
    CONSTRAINT chk_file_revision_first
        CHECK (kind_id != 0 OR revision_number = 1)
);

CREATE INDEX idx_file_revision_blob
ON file_revision (blob_digest);
`)
}

func fileAuditSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE file_audit (
    uuid        TEXT NOT NULL PRIMARY KEY,
    operation   TEXT NOT NULL,
    file_uuid   TEXT NOT NULL,
    blob_digest TEXT,
    user_uuid   TEXT NOT NULL,
    detail      TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE INDEX idx_file_audit_file
ON file_audit (file_uuid);
`)
}
