package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the report database schema.
// Timestamps are stored as Unix nanoseconds so range comparisons are exact
// and driver independent.
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    branch_id TEXT NOT NULL,

    -- Stage machine
    stage TEXT NOT NULL,
    stage1_completed_at INTEGER,
    stage2_completed_at INTEGER,

    -- Soft delete
    is_deleted INTEGER NOT NULL DEFAULT 0,
    deleted_at INTEGER,
    expiration_reason TEXT NOT NULL DEFAULT '',

    -- Authoring timestamps
    created_at INTEGER NOT NULL,
    last_edited INTEGER NOT NULL,

    -- Opaque content (JSON object)
    content TEXT NOT NULL DEFAULT '{}',

    CHECK ((is_deleted = 1) = (deleted_at IS NOT NULL))
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Reclamation candidate scans
CREATE INDEX IF NOT EXISTS idx_reports_deleted ON reports(is_deleted, deleted_at, id);
CREATE INDEX IF NOT EXISTS idx_reports_stale ON reports(is_deleted, last_edited, id);

-- Authoring lookups
CREATE INDEX IF NOT EXISTS idx_reports_owner ON reports(owner_id);
CREATE INDEX IF NOT EXISTS idx_reports_branch ON reports(branch_id);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at, id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const reportColumns = `id, owner_id, branch_id, stage, stage1_completed_at, stage2_completed_at,
	is_deleted, deleted_at, expiration_reason, created_at, last_edited, content`
