// Package sqlite implements the embedded cache store on SQLite.
package sqlite

// Times are stored as RFC 3339 TEXT with nanoseconds; JSON columns as TEXT.
// parent_id deliberately has no foreign key: parent linkage is validated by the
// cache before it is written.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS work_items (
    id                  INTEGER PRIMARY KEY,
    url                 TEXT NOT NULL DEFAULT '',
    rev                 INTEGER NOT NULL DEFAULT 0,
    type                TEXT NOT NULL DEFAULT '',
    title               TEXT NOT NULL DEFAULT '',
    state               TEXT NOT NULL DEFAULT '',
    reason              TEXT NOT NULL DEFAULT '',
    area_path           TEXT NOT NULL DEFAULT '',
    area_id             INTEGER NOT NULL DEFAULT 0,
    iteration_path      TEXT NOT NULL DEFAULT '',
    iteration_id        INTEGER NOT NULL DEFAULT 0,
    priority            INTEGER,
    value_area          TEXT NOT NULL DEFAULT '',
    tags                TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    history             TEXT NOT NULL DEFAULT '',
    acceptance_criteria TEXT NOT NULL DEFAULT '',
    assigned_to_name    TEXT NOT NULL DEFAULT '',
    assigned_to_email   TEXT NOT NULL DEFAULT '',
    created_by_name     TEXT NOT NULL DEFAULT '',
    created_by_email    TEXT NOT NULL DEFAULT '',
    changed_by_name     TEXT NOT NULL DEFAULT '',
    changed_by_email    TEXT NOT NULL DEFAULT '',
    created_date        TEXT NOT NULL DEFAULT '',
    changed_date        TEXT NOT NULL DEFAULT '',
    state_change_date   TEXT NOT NULL DEFAULT '',
    parent_id           INTEGER,
    board_column        TEXT NOT NULL DEFAULT '',
    board_column_done   INTEGER NOT NULL DEFAULT 0,
    comment_count       INTEGER NOT NULL DEFAULT 0,
    watermark           INTEGER NOT NULL DEFAULT 0,
    stack_rank          REAL,
    effort              REAL,
    story_points        REAL,
    business_value      INTEGER,
    productboard_id     TEXT NOT NULL DEFAULT '',
    unrecognized        TEXT NOT NULL DEFAULT '',
    raw                 TEXT NOT NULL DEFAULT '',
    last_synced_at      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_work_items_type ON work_items (type);
CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items (parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_productboard ON work_items (productboard_id);

CREATE TABLE IF NOT EXISTS relations (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id            INTEGER NOT NULL REFERENCES work_items (id) ON DELETE CASCADE,
    target_id            INTEGER,
    target_url           TEXT NOT NULL DEFAULT '',
    rel_type             TEXT NOT NULL DEFAULT '',
    attributes           TEXT NOT NULL DEFAULT '',
    is_parent            INTEGER NOT NULL DEFAULT 0,
    is_child             INTEGER NOT NULL DEFAULT 0,
    is_related           INTEGER NOT NULL DEFAULT 0,
    is_hyperlink         INTEGER NOT NULL DEFAULT 0,
    is_cross_system_link INTEGER NOT NULL DEFAULT 0,
    cross_system_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_relations_source ON relations (source_id);

CREATE TABLE IF NOT EXISTS area_paths (
    id             INTEGER PRIMARY KEY,
    identifier     TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    path           TEXT NOT NULL,
    structure_type TEXT NOT NULL DEFAULT '',
    has_children   INTEGER NOT NULL DEFAULT 0,
    last_synced_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS teams (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    url            TEXT NOT NULL DEFAULT '',
    last_synced_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS work_item_types (
    name           TEXT PRIMARY KEY,
    reference_name TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    color          TEXT NOT NULL DEFAULT '',
    icon           TEXT NOT NULL DEFAULT '',
    is_disabled    INTEGER NOT NULL DEFAULT 0,
    last_synced_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS mappings (
    ps_id                TEXT PRIMARY KEY,
    wts_id               INTEGER,
    wts_url              TEXT NOT NULL DEFAULT '',
    last_known_ps_status TEXT NOT NULL DEFAULT '',
    last_synced_at       TEXT NOT NULL DEFAULT '',
    sync_status          TEXT NOT NULL DEFAULT '',
    sync_error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_mappings_wts ON mappings (wts_id);

CREATE TABLE IF NOT EXISTS sync_history (
    entity_type    TEXT PRIMARY KEY,
    last_sync_time TEXT NOT NULL DEFAULT '',
    items_synced   INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_logs (
    id         TEXT PRIMARY KEY,
    event_type TEXT NOT NULL DEFAULT '',
    item_id    TEXT NOT NULL DEFAULT '',
    item_type  TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    details    TEXT NOT NULL DEFAULT '',
    ado_id     INTEGER,
    payload    TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_logs_created ON sync_logs (created_at);
CREATE INDEX IF NOT EXISTS idx_sync_logs_item ON sync_logs (item_id);
`
