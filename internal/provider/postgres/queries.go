package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

var selectWorkItemSQL = "SELECT " + strings.Join(workItemColumns, ", ") + ", parent_id FROM work_items"

func scanWorkItem(row pgx.Row) (types.WorkItem, error) {
	var (
		wi                                     types.WorkItem
		tags, unrecognized, raw                []byte
		created, changed, stateChanged, synced *time.Time
	)
	err := row.Scan(
		&wi.ID, &wi.URL, &wi.Rev, &wi.Type, &wi.Title, &wi.State, &wi.Reason,
		&wi.AreaPath, &wi.AreaID, &wi.IterationPath, &wi.IterationID, &wi.Priority, &wi.ValueArea,
		&tags, &wi.Description, &wi.History, &wi.AcceptanceCriteria,
		&wi.AssignedTo.DisplayName, &wi.AssignedTo.UniqueName,
		&wi.CreatedBy.DisplayName, &wi.CreatedBy.UniqueName,
		&wi.ChangedBy.DisplayName, &wi.ChangedBy.UniqueName,
		&created, &changed, &stateChanged,
		&wi.BoardColumn, &wi.BoardColumnDone, &wi.CommentCount, &wi.Watermark,
		&wi.StackRank, &wi.Effort, &wi.StoryPoints, &wi.BusinessValue,
		&wi.ProductBoardID, &unrecognized, &raw, &synced,
		&wi.ParentID,
	)
	if err != nil {
		return types.WorkItem{}, err
	}
	wi.CreatedDate = timeOf(created)
	wi.ChangedDate = timeOf(changed)
	wi.StateChangeDate = timeOf(stateChanged)
	wi.LastSyncedAt = timeOf(synced)
	decodeJSON(tags, &wi.Tags)
	decodeJSON(unrecognized, &wi.Unrecognized)
	if len(raw) > 0 {
		wi.Raw = raw
	}
	return wi, nil
}

func (s *Store) queryWorkItems(ctx context.Context, query string, args ...any) ([]types.WorkItem, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.WorkItem
	for rows.Next() {
		wi, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, wi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int, len(items))
	for i, wi := range items {
		ids[i] = wi.ID
	}
	rels, err := s.GetRelations(ctx, ids)
	if err != nil {
		return nil, err
	}
	bySource := make(map[int][]types.Relation)
	for _, r := range rels {
		bySource[r.SourceID] = append(bySource[r.SourceID], r)
	}
	for i := range items {
		items[i].Relations = bySource[items[i].ID]
	}
	return items, nil
}

// GetWorkItems returns the cached items among ids, ordered by id.
func (s *Store) GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := s.queryWorkItems(ctx, selectWorkItemSQL+" WHERE id = ANY($1) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("get work items: %w", err)
	}
	return items, nil
}

// ListWorkItemsByType returns cached items of one type, ordered by id.
func (s *Store) ListWorkItemsByType(ctx context.Context, workItemType string) ([]types.WorkItem, error) {
	items, err := s.queryWorkItems(ctx, selectWorkItemSQL+" WHERE type = $1 ORDER BY id", workItemType)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}

// ExistingWorkItemIDs reports which of ids are cached.
func (s *Store) ExistingWorkItemIDs(ctx context.Context, ids []int) (map[int]bool, error) {
	out := make(map[int]bool)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, "SELECT id FROM work_items WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("existing work items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// GetRelations returns the relations of the given sources ordered by source and insertion.
func (s *Store) GetRelations(ctx context.Context, sourceIDs []int) ([]types.Relation, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT source_id, target_id, target_url, rel_type, attributes,
			is_parent, is_child, is_related, is_hyperlink, is_cross_system_link, cross_system_id
		FROM relations WHERE source_id = ANY($1)
		ORDER BY source_id, id
	`, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("get relations: %w", err)
	}
	defer rows.Close()

	var out []types.Relation
	for rows.Next() {
		var (
			r     types.Relation
			attrs []byte
		)
		if err := rows.Scan(&r.SourceID, &r.TargetID, &r.TargetURL, &r.RelType, &attrs,
			&r.IsParent, &r.IsChild, &r.IsRelated, &r.IsHyperlink, &r.IsCrossSystemLink, &r.CrossSystemID); err != nil {
			return nil, err
		}
		decodeJSON(attrs, &r.Attributes)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAreaPaths returns cached area paths ordered by path.
func (s *Store) ListAreaPaths(ctx context.Context) ([]types.AreaPath, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identifier, name, path, structure_type, has_children, last_synced_at
		FROM area_paths ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("list area paths: %w", err)
	}
	defer rows.Close()

	var out []types.AreaPath
	for rows.Next() {
		var (
			a      types.AreaPath
			synced *time.Time
		)
		if err := rows.Scan(&a.ID, &a.Identifier, &a.Name, &a.Path, &a.StructureType, &a.HasChildren, &synced); err != nil {
			return nil, err
		}
		a.LastSyncedAt = timeOf(synced)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListTeams returns cached teams ordered by name.
func (s *Store) ListTeams(ctx context.Context) ([]types.Team, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, description, url, last_synced_at FROM teams ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []types.Team
	for rows.Next() {
		var (
			t      types.Team
			synced *time.Time
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.URL, &synced); err != nil {
			return nil, err
		}
		t.LastSyncedAt = timeOf(synced)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListWorkItemTypes returns cached work item types ordered by name.
func (s *Store) ListWorkItemTypes(ctx context.Context) ([]types.WorkItemType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, reference_name, description, color, icon, is_disabled, last_synced_at
		FROM work_item_types ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list work item types: %w", err)
	}
	defer rows.Close()

	var out []types.WorkItemType
	for rows.Next() {
		var (
			w      types.WorkItemType
			synced *time.Time
		)
		if err := rows.Scan(&w.Name, &w.ReferenceName, &w.Description, &w.Color, &w.Icon, &w.IsDisabled, &synced); err != nil {
			return nil, err
		}
		w.LastSyncedAt = timeOf(synced)
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanMapping(row pgx.Row) (types.Mapping, error) {
	var (
		m      types.Mapping
		wtsID  *int
		synced *time.Time
		status string
	)
	if err := row.Scan(&m.PSID, &wtsID, &m.WTSURL, &m.LastKnownPSStatus, &synced, &status, &m.SyncError); err != nil {
		return types.Mapping{}, err
	}
	if wtsID != nil {
		m.WTSID = *wtsID
	}
	m.LastSyncedAt = timeOf(synced)
	m.SyncStatus = types.MappingStatus(status)
	return m, nil
}

const mappingColumns = "ps_id, wts_id, wts_url, last_known_ps_status, last_synced_at, sync_status, sync_error"

// GetMapping returns the mapping for a ProductBoard id, or nil when none exists.
func (s *Store) GetMapping(ctx context.Context, psID string) (*types.Mapping, error) {
	m, err := scanMapping(s.pool.QueryRow(ctx, "SELECT "+mappingColumns+" FROM mappings WHERE ps_id = $1", psID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping %s: %w", psID, err)
	}
	return &m, nil
}

// ListMappings returns mappings ordered by ProductBoard id.
func (s *Store) ListMappings(ctx context.Context, limit int) ([]types.Mapping, error) {
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, "SELECT "+mappingColumns+" FROM mappings ORDER BY ps_id LIMIT $1", limit)
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

func scanHistory(row pgx.Row) (types.SyncHistoryRecord, error) {
	var (
		rec        types.SyncHistoryRecord
		et, status string
		last       *time.Time
	)
	if err := row.Scan(&et, &last, &rec.ItemsSynced, &status, &rec.ErrorMessage); err != nil {
		return types.SyncHistoryRecord{}, err
	}
	rec.EntityType = types.EntityType(et)
	rec.Status = types.SyncStatus(status)
	rec.LastSyncTime = timeOf(last)
	return rec, nil
}

// GetSyncHistory returns the watermark for an entity type, or nil when none exists.
func (s *Store) GetSyncHistory(ctx context.Context, entityType types.EntityType) (*types.SyncHistoryRecord, error) {
	rec, err := scanHistory(s.pool.QueryRow(ctx, `
		SELECT entity_type, last_sync_time, items_synced, status, error_message
		FROM sync_history WHERE entity_type = $1
	`, string(entityType)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync history %s: %w", entityType, err)
	}
	return &rec, nil
}

// ListSyncHistory returns all watermarks ordered by entity type.
func (s *Store) ListSyncHistory(ctx context.Context) ([]types.SyncHistoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_type, last_sync_time, items_synced, status, error_message
		FROM sync_history ORDER BY entity_type
	`)
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

func scanSyncLog(row pgx.Row) (types.SyncLog, error) {
	var (
		l       types.SyncLog
		status  string
		adoID   *int
		payload []byte
	)
	if err := row.Scan(&l.ID, &l.EventType, &l.ItemID, &l.ItemType, &status, &l.Details,
		&adoID, &payload, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return types.SyncLog{}, err
	}
	l.Status = types.SyncLogStatus(status)
	if adoID != nil {
		l.ADOID = *adoID
	}
	if len(payload) > 0 {
		l.Payload = payload
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}

// GetSyncLog returns one audit row, or nil when none exists.
func (s *Store) GetSyncLog(ctx context.Context, id string) (*types.SyncLog, error) {
	l, err := scanSyncLog(s.pool.QueryRow(ctx, "SELECT "+syncLogColumns+" FROM sync_logs WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		"SELECT "+syncLogColumns+" FROM sync_logs ORDER BY created_at DESC, id DESC LIMIT $1", limit)
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
