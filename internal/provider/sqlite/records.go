package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// ListAreaPaths returns cached area paths ordered by path.
func (s *Store) ListAreaPaths(ctx context.Context) ([]types.AreaPath, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identifier, name, path, structure_type, has_children, last_synced_at
		FROM area_paths ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list area paths: %w", err)
	}
	defer rows.Close()

	var out []types.AreaPath
	for rows.Next() {
		var (
			a           types.AreaPath
			hasChildren int
			synced      string
		)
		if err := rows.Scan(&a.ID, &a.Identifier, &a.Name, &a.Path, &a.StructureType, &hasChildren, &synced); err != nil {
			return nil, err
		}
		a.HasChildren = hasChildren != 0
		a.LastSyncedAt = decodeTime(synced)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAreaPaths upserts area paths on their node id.
func (s *Store) UpsertAreaPaths(ctx context.Context, paths []types.AreaPath) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range paths {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO area_paths (id, identifier, name, path, structure_type, has_children, last_synced_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					identifier     = excluded.identifier,
					name           = excluded.name,
					path           = excluded.path,
					structure_type = excluded.structure_type,
					has_children   = excluded.has_children,
					last_synced_at = excluded.last_synced_at`,
				a.ID, a.Identifier, a.Name, a.Path, a.StructureType, boolInt(a.HasChildren), encodeTime(a.LastSyncedAt))
			if err != nil {
				return fmt.Errorf("upsert area path %s: %w", a.Path, err)
			}
		}
		return nil
	})
}

// ListTeams returns cached teams ordered by name.
func (s *Store) ListTeams(ctx context.Context) ([]types.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, url, last_synced_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []types.Team
	for rows.Next() {
		var (
			t      types.Team
			synced string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.URL, &synced); err != nil {
			return nil, err
		}
		t.LastSyncedAt = decodeTime(synced)
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTeams upserts teams on their id.
func (s *Store) UpsertTeams(ctx context.Context, teams []types.Team) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range teams {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO teams (id, name, description, url, last_synced_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					name           = excluded.name,
					description    = excluded.description,
					url            = excluded.url,
					last_synced_at = excluded.last_synced_at`,
				t.ID, t.Name, t.Description, t.URL, encodeTime(t.LastSyncedAt))
			if err != nil {
				return fmt.Errorf("upsert team %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListWorkItemTypes returns cached work item types ordered by name.
func (s *Store) ListWorkItemTypes(ctx context.Context) ([]types.WorkItemType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, reference_name, description, color, icon, is_disabled, last_synced_at
		FROM work_item_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list work item types: %w", err)
	}
	defer rows.Close()

	var out []types.WorkItemType
	for rows.Next() {
		var (
			w        types.WorkItemType
			disabled int
			synced   string
		)
		if err := rows.Scan(&w.Name, &w.ReferenceName, &w.Description, &w.Color, &w.Icon, &disabled, &synced); err != nil {
			return nil, err
		}
		w.IsDisabled = disabled != 0
		w.LastSyncedAt = decodeTime(synced)
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertWorkItemTypes upserts work item types on their name.
func (s *Store) UpsertWorkItemTypes(ctx context.Context, wits []types.WorkItemType) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, w := range wits {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO work_item_types (name, reference_name, description, color, icon, is_disabled, last_synced_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (name) DO UPDATE SET
					reference_name = excluded.reference_name,
					description    = excluded.description,
					color          = excluded.color,
					icon           = excluded.icon,
					is_disabled    = excluded.is_disabled,
					last_synced_at = excluded.last_synced_at`,
				w.Name, w.ReferenceName, w.Description, w.Color, w.Icon, boolInt(w.IsDisabled), encodeTime(w.LastSyncedAt))
			if err != nil {
				return fmt.Errorf("upsert work item type %s: %w", w.Name, err)
			}
		}
		return nil
	})
}

const mappingColumns = "ps_id, wts_id, wts_url, last_known_ps_status, last_synced_at, sync_status, sync_error"

func scanMapping(sc interface{ Scan(...any) error }) (types.Mapping, error) {
	var (
		m      types.Mapping
		wtsID  sql.NullInt64
		synced string
		status string
	)
	if err := sc.Scan(&m.PSID, &wtsID, &m.WTSURL, &m.LastKnownPSStatus, &synced, &status, &m.SyncError); err != nil {
		return types.Mapping{}, err
	}
	if wtsID.Valid {
		m.WTSID = int(wtsID.Int64)
	}
	m.LastSyncedAt = decodeTime(synced)
	m.SyncStatus = types.MappingStatus(status)
	return m, nil
}

// GetMapping returns the mapping for a ProductBoard id, or nil when none exists.
func (s *Store) GetMapping(ctx context.Context, psID string) (*types.Mapping, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+mappingColumns+" FROM mappings WHERE ps_id = ?", psID)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping %s: %w", psID, err)
	}
	return &m, nil
}

// UpsertMapping writes the mapping row keyed on ps_id; the last write wins.
func (s *Store) UpsertMapping(ctx context.Context, m types.Mapping) error {
	var wtsID any
	if m.WTSID > 0 {
		wtsID = m.WTSID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ps_id) DO UPDATE SET
			wts_id               = excluded.wts_id,
			wts_url              = excluded.wts_url,
			last_known_ps_status = excluded.last_known_ps_status,
			last_synced_at       = excluded.last_synced_at,
			sync_status          = excluded.sync_status,
			sync_error           = excluded.sync_error`,
		m.PSID, wtsID, m.WTSURL, m.LastKnownPSStatus, encodeTime(m.LastSyncedAt), string(m.SyncStatus), m.SyncError)
	if err != nil {
		return fmt.Errorf("upsert mapping %s: %w", m.PSID, err)
	}
	return nil
}

// ListMappings returns mappings ordered by ProductBoard id.
func (s *Store) ListMappings(ctx context.Context, limit int) ([]types.Mapping, error) {
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+mappingColumns+" FROM mappings ORDER BY ps_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []types.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanHistory(sc interface{ Scan(...any) error }) (types.SyncHistoryRecord, error) {
	var (
		rec          types.SyncHistoryRecord
		et, status   string
		lastSyncTime string
	)
	if err := sc.Scan(&et, &lastSyncTime, &rec.ItemsSynced, &status, &rec.ErrorMessage); err != nil {
		return types.SyncHistoryRecord{}, err
	}
	rec.EntityType = types.EntityType(et)
	rec.Status = types.SyncStatus(status)
	rec.LastSyncTime = decodeTime(lastSyncTime)
	return rec, nil
}

// GetSyncHistory returns the watermark for an entity type, or nil when none exists.
func (s *Store) GetSyncHistory(ctx context.Context, entityType types.EntityType) (*types.SyncHistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_type, last_sync_time, items_synced, status, error_message
		FROM sync_history WHERE entity_type = ?`, string(entityType))
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync history %s: %w", entityType, err)
	}
	return &rec, nil
}

// PutSyncHistory overwrites the watermark for an entity type.
func (s *Store) PutSyncHistory(ctx context.Context, rec types.SyncHistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_history (entity_type, last_sync_time, items_synced, status, error_message)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type) DO UPDATE SET
			last_sync_time = excluded.last_sync_time,
			items_synced   = excluded.items_synced,
			status         = excluded.status,
			error_message  = excluded.error_message`,
		string(rec.EntityType), encodeTime(rec.LastSyncTime), rec.ItemsSynced, string(rec.Status), rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("put sync history %s: %w", rec.EntityType, err)
	}
	return nil
}

// ListSyncHistory returns all watermarks ordered by entity type.
func (s *Store) ListSyncHistory(ctx context.Context) ([]types.SyncHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, last_sync_time, items_synced, status, error_message
		FROM sync_history ORDER BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("list sync history: %w", err)
	}
	defer rows.Close()

	var out []types.SyncHistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const syncLogColumns = "id, event_type, item_id, item_type, status, details, ado_id, payload, created_at, updated_at"

func scanSyncLog(sc interface{ Scan(...any) error }) (types.SyncLog, error) {
	var (
		l                types.SyncLog
		status           string
		adoID            sql.NullInt64
		payload          sql.NullString
		created, updated string
	)
	if err := sc.Scan(&l.ID, &l.EventType, &l.ItemID, &l.ItemType, &status, &l.Details,
		&adoID, &payload, &created, &updated); err != nil {
		return types.SyncLog{}, err
	}
	l.Status = types.SyncLogStatus(status)
	if adoID.Valid {
		l.ADOID = int(adoID.Int64)
	}
	if payload.Valid && payload.String != "" {
		l.Payload = []byte(payload.String)
	}
	l.CreatedAt = decodeTime(created)
	l.UpdatedAt = decodeTime(updated)
	return l, nil
}

func nullPayload(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

func nullADOID(id int) any {
	if id <= 0 {
		return nil
	}
	return id
}

// CreateSyncLog inserts a new audit row.
func (s *Store) CreateSyncLog(ctx context.Context, l types.SyncLog) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO sync_logs ("+syncLogColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		l.ID, l.EventType, l.ItemID, l.ItemType, string(l.Status), l.Details,
		nullADOID(l.ADOID), nullPayload(l.Payload), encodeTime(l.CreatedAt), encodeTime(l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

// UpdateSyncLog updates an audit row in place. An empty payload keeps the stored one.
func (s *Store) UpdateSyncLog(ctx context.Context, l types.SyncLog) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs SET
			event_type = ?, item_id = ?, item_type = ?, status = ?, details = ?,
			ado_id = ?, payload = COALESCE(?, payload), updated_at = ?
		WHERE id = ?`,
		l.EventType, l.ItemID, l.ItemType, string(l.Status), l.Details,
		nullADOID(l.ADOID), nullPayload(l.Payload), encodeTime(l.UpdatedAt), l.ID)
	if err != nil {
		return fmt.Errorf("update sync log %s: %w", l.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync log %s: %w", l.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update sync log %s: %w", l.ID, types.ErrNotFound)
	}
	return nil
}

// GetSyncLog returns one audit row, or nil when none exists.
func (s *Store) GetSyncLog(ctx context.Context, id string) (*types.SyncLog, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+syncLogColumns+" FROM sync_logs WHERE id = ?", id)
	l, err := scanSyncLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync log %s: %w", id, err)
	}
	return &l, nil
}

// ListSyncLogs returns the most recent audit rows, newest first.
func (s *Store) ListSyncLogs(ctx context.Context, limit int) ([]types.SyncLog, error) {
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+syncLogColumns+" FROM sync_logs ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	defer rows.Close()

	var out []types.SyncLog
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
