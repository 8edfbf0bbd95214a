// Package postgres implements the cache store on Postgres for deployments that
// share one cache between several webhook workers.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS work_items (
    id                  BIGINT PRIMARY KEY,
    url                 TEXT NOT NULL DEFAULT '',
    rev                 INTEGER NOT NULL DEFAULT 0,
    type                TEXT NOT NULL DEFAULT '',
    title               TEXT NOT NULL DEFAULT '',
    state               TEXT NOT NULL DEFAULT '',
    reason              TEXT NOT NULL DEFAULT '',
    area_path           TEXT NOT NULL DEFAULT '',
    area_id             BIGINT NOT NULL DEFAULT 0,
    iteration_path      TEXT NOT NULL DEFAULT '',
    iteration_id        BIGINT NOT NULL DEFAULT 0,
    priority            BIGINT,
    value_area          TEXT NOT NULL DEFAULT '',
    tags                JSONB,
    description         TEXT NOT NULL DEFAULT '',
    history             TEXT NOT NULL DEFAULT '',
    acceptance_criteria TEXT NOT NULL DEFAULT '',
    assigned_to_name    TEXT NOT NULL DEFAULT '',
    assigned_to_email   TEXT NOT NULL DEFAULT '',
    created_by_name     TEXT NOT NULL DEFAULT '',
    created_by_email    TEXT NOT NULL DEFAULT '',
    changed_by_name     TEXT NOT NULL DEFAULT '',
    changed_by_email    TEXT NOT NULL DEFAULT '',
    created_date        TIMESTAMPTZ,
    changed_date        TIMESTAMPTZ,
    state_change_date   TIMESTAMPTZ,
    parent_id           BIGINT,
    board_column        TEXT NOT NULL DEFAULT '',
    board_column_done   BOOLEAN NOT NULL DEFAULT FALSE,
    comment_count       INTEGER NOT NULL DEFAULT 0,
    watermark           BIGINT NOT NULL DEFAULT 0,
    stack_rank          DOUBLE PRECISION,
    effort              DOUBLE PRECISION,
    story_points        DOUBLE PRECISION,
    business_value      BIGINT,
    productboard_id     TEXT NOT NULL DEFAULT '',
    unrecognized        JSONB,
    raw                 JSONB,
    last_synced_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_work_items_type ON work_items (type);
CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items (parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_productboard ON work_items (productboard_id);

CREATE TABLE IF NOT EXISTS relations (
    id                   BIGSERIAL PRIMARY KEY,
    source_id            BIGINT NOT NULL REFERENCES work_items (id) ON DELETE CASCADE,
    target_id            BIGINT,
    target_url           TEXT NOT NULL DEFAULT '',
    rel_type             TEXT NOT NULL DEFAULT '',
    attributes           JSONB,
    is_parent            BOOLEAN NOT NULL DEFAULT FALSE,
    is_child             BOOLEAN NOT NULL DEFAULT FALSE,
    is_related           BOOLEAN NOT NULL DEFAULT FALSE,
    is_hyperlink         BOOLEAN NOT NULL DEFAULT FALSE,
    is_cross_system_link BOOLEAN NOT NULL DEFAULT FALSE,
    cross_system_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_relations_source ON relations (source_id);

CREATE TABLE IF NOT EXISTS area_paths (
    id             BIGINT PRIMARY KEY,
    identifier     TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    path           TEXT NOT NULL,
    structure_type TEXT NOT NULL DEFAULT '',
    has_children   BOOLEAN NOT NULL DEFAULT FALSE,
    last_synced_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS teams (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    url            TEXT NOT NULL DEFAULT '',
    last_synced_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS work_item_types (
    name           TEXT PRIMARY KEY,
    reference_name TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    color          TEXT NOT NULL DEFAULT '',
    icon           TEXT NOT NULL DEFAULT '',
    is_disabled    BOOLEAN NOT NULL DEFAULT FALSE,
    last_synced_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS mappings (
    ps_id                TEXT PRIMARY KEY,
    wts_id               BIGINT,
    wts_url              TEXT NOT NULL DEFAULT '',
    last_known_ps_status TEXT NOT NULL DEFAULT '',
    last_synced_at       TIMESTAMPTZ,
    sync_status          TEXT NOT NULL DEFAULT '',
    sync_error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_mappings_wts ON mappings (wts_id);

CREATE TABLE IF NOT EXISTS sync_history (
    entity_type    TEXT PRIMARY KEY,
    last_sync_time TIMESTAMPTZ,
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
    ado_id     BIGINT,
    payload    JSONB,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_logs_created ON sync_logs (created_at);
CREATE INDEX IF NOT EXISTS idx_sync_logs_item ON sync_logs (item_id);
`
