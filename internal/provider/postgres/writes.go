package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// workItemColumns lists every written column. parent_id is absent: it is only
// written by SetParentIDs.
var workItemColumns = []string{
	"id", "url", "rev", "type", "title", "state", "reason",
	"area_path", "area_id", "iteration_path", "iteration_id", "priority", "value_area",
	"tags", "description", "history", "acceptance_criteria",
	"assigned_to_name", "assigned_to_email", "created_by_name", "created_by_email",
	"changed_by_name", "changed_by_email",
	"created_date", "changed_date", "state_change_date",
	"board_column", "board_column_done", "comment_count", "watermark",
	"stack_rank", "effort", "story_points", "business_value",
	"productboard_id", "unrecognized", "raw", "last_synced_at",
}

var upsertWorkItemSQL = func() string {
	params := make([]string, len(workItemColumns))
	sets := make([]string, 0, len(workItemColumns)-1)
	for i, c := range workItemColumns {
		params[i] = "$" + strconv.Itoa(i+1)
		if i > 0 {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}
	return "INSERT INTO work_items (" + strings.Join(workItemColumns, ", ") + ") VALUES (" +
		strings.Join(params, ", ") + ") ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
}()

func workItemArgs(wi types.WorkItem) ([]any, error) {
	tags, err := jsonOrNull(wi.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags of %d: %w", wi.ID, err)
	}
	unrecognized, err := jsonOrNull(wi.Unrecognized)
	if err != nil {
		return nil, fmt.Errorf("marshal unrecognized fields of %d: %w", wi.ID, err)
	}
	raw, err := jsonOrNull(wi.Raw)
	if err != nil {
		return nil, err
	}
	return []any{
		wi.ID, wi.URL, wi.Rev, wi.Type, wi.Title, wi.State, wi.Reason,
		wi.AreaPath, wi.AreaID, wi.IterationPath, wi.IterationID, wi.Priority, wi.ValueArea,
		tags, wi.Description, wi.History, wi.AcceptanceCriteria,
		wi.AssignedTo.DisplayName, wi.AssignedTo.UniqueName,
		wi.CreatedBy.DisplayName, wi.CreatedBy.UniqueName,
		wi.ChangedBy.DisplayName, wi.ChangedBy.UniqueName,
		nullTime(wi.CreatedDate), nullTime(wi.ChangedDate), nullTime(wi.StateChangeDate),
		wi.BoardColumn, wi.BoardColumnDone, wi.CommentCount, wi.Watermark,
		wi.StackRank, wi.Effort, wi.StoryPoints, wi.BusinessValue,
		wi.ProductBoardID, unrecognized, raw, nullTime(wi.LastSyncedAt),
	}, nil
}

// UpsertWorkItems writes items in one batched transaction, leaving parent_id untouched.
func (s *Store) UpsertWorkItems(ctx context.Context, items []types.WorkItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, wi := range items {
		args, err := workItemArgs(wi)
		if err != nil {
			return err
		}
		batch.Queue(upsertWorkItemSQL, args...)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, wi := range items {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert work item %d: %w", wi.ID, err)
			}
		}
		return br.Close()
	})
}

// SetParentIDs writes parent links; a zero parent clears the link.
func (s *Store) SetParentIDs(ctx context.Context, parents map[int]int) error {
	if len(parents) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for id, parent := range parents {
			if _, err := tx.Exec(ctx, "UPDATE work_items SET parent_id = $1 WHERE id = $2", nullID(parent), id); err != nil {
				return fmt.Errorf("set parent of %d: %w", id, err)
			}
		}
		return nil
	})
}

// DeleteRelationsForSources removes every relation of the given sources.
func (s *Store) DeleteRelationsForSources(ctx context.Context, sourceIDs []int) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM relations WHERE source_id = ANY($1)", sourceIDs); err != nil {
		return fmt.Errorf("delete relations: %w", err)
	}
	return nil
}

// ReplaceRelations deletes the relations of sourceIDs and inserts rels in one transaction.
func (s *Store) ReplaceRelations(ctx context.Context, sourceIDs []int, rels []types.Relation) error {
	if len(sourceIDs) == 0 && len(rels) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if len(sourceIDs) > 0 {
			if _, err := tx.Exec(ctx, "DELETE FROM relations WHERE source_id = ANY($1)", sourceIDs); err != nil {
				return fmt.Errorf("delete relations: %w", err)
			}
		}
		for _, r := range rels {
			attrs, err := jsonOrNull(r.Attributes)
			if err != nil {
				return fmt.Errorf("marshal relation attributes: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO relations (source_id, target_id, target_url, rel_type, attributes,
					is_parent, is_child, is_related, is_hyperlink, is_cross_system_link, cross_system_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, r.SourceID, r.TargetID, r.TargetURL, r.RelType, attrs,
				r.IsParent, r.IsChild, r.IsRelated, r.IsHyperlink, r.IsCrossSystemLink, r.CrossSystemID)
			if err != nil {
				return fmt.Errorf("insert relation of %d: %w", r.SourceID, err)
			}
		}
		return nil
	})
}

// UpsertAreaPaths upserts area paths on their node id.
func (s *Store) UpsertAreaPaths(ctx context.Context, paths []types.AreaPath) error {
	if len(paths) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range paths {
		batch.Queue(`
			INSERT INTO area_paths (id, identifier, name, path, structure_type, has_children, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				identifier     = EXCLUDED.identifier,
				name           = EXCLUDED.name,
				path           = EXCLUDED.path,
				structure_type = EXCLUDED.structure_type,
				has_children   = EXCLUDED.has_children,
				last_synced_at = EXCLUDED.last_synced_at
		`, a.ID, a.Identifier, a.Name, a.Path, a.StructureType, a.HasChildren, nullTime(a.LastSyncedAt))
	}
	return s.sendBatch(ctx, "upsert area paths", batch)
}

// UpsertTeams upserts teams on their id.
func (s *Store) UpsertTeams(ctx context.Context, teams []types.Team) error {
	if len(teams) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range teams {
		batch.Queue(`
			INSERT INTO teams (id, name, description, url, last_synced_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name           = EXCLUDED.name,
				description    = EXCLUDED.description,
				url            = EXCLUDED.url,
				last_synced_at = EXCLUDED.last_synced_at
		`, t.ID, t.Name, t.Description, t.URL, nullTime(t.LastSyncedAt))
	}
	return s.sendBatch(ctx, "upsert teams", batch)
}

// UpsertWorkItemTypes upserts work item types on their name.
func (s *Store) UpsertWorkItemTypes(ctx context.Context, wits []types.WorkItemType) error {
	if len(wits) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range wits {
		batch.Queue(`
			INSERT INTO work_item_types (name, reference_name, description, color, icon, is_disabled, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (name) DO UPDATE SET
				reference_name = EXCLUDED.reference_name,
				description    = EXCLUDED.description,
				color          = EXCLUDED.color,
				icon           = EXCLUDED.icon,
				is_disabled    = EXCLUDED.is_disabled,
				last_synced_at = EXCLUDED.last_synced_at
		`, w.Name, w.ReferenceName, w.Description, w.Color, w.Icon, w.IsDisabled, nullTime(w.LastSyncedAt))
	}
	return s.sendBatch(ctx, "upsert work item types", batch)
}

func (s *Store) sendBatch(ctx context.Context, op string, batch *pgx.Batch) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// UpsertMapping writes the mapping row keyed on ps_id; the last write wins.
func (s *Store) UpsertMapping(ctx context.Context, m types.Mapping) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mappings (ps_id, wts_id, wts_url, last_known_ps_status, last_synced_at, sync_status, sync_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ps_id) DO UPDATE SET
			wts_id               = EXCLUDED.wts_id,
			wts_url              = EXCLUDED.wts_url,
			last_known_ps_status = EXCLUDED.last_known_ps_status,
			last_synced_at       = EXCLUDED.last_synced_at,
			sync_status          = EXCLUDED.sync_status,
			sync_error           = EXCLUDED.sync_error
	`, m.PSID, nullID(m.WTSID), m.WTSURL, m.LastKnownPSStatus, nullTime(m.LastSyncedAt), string(m.SyncStatus), m.SyncError)
	if err != nil {
		return fmt.Errorf("upsert mapping %s: %w", m.PSID, err)
	}
	return nil
}

// PutSyncHistory overwrites the watermark for an entity type.
func (s *Store) PutSyncHistory(ctx context.Context, rec types.SyncHistoryRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_history (entity_type, last_sync_time, items_synced, status, error_message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type) DO UPDATE SET
			last_sync_time = EXCLUDED.last_sync_time,
			items_synced   = EXCLUDED.items_synced,
			status         = EXCLUDED.status,
			error_message  = EXCLUDED.error_message
	`, string(rec.EntityType), nullTime(rec.LastSyncTime), rec.ItemsSynced, string(rec.Status), rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("put sync history %s: %w", rec.EntityType, err)
	}
	return nil
}

// CreateSyncLog inserts a new audit row.
func (s *Store) CreateSyncLog(ctx context.Context, l types.SyncLog) error {
	payload, _ := jsonOrNull(l.Payload)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_logs (id, event_type, item_id, item_type, status, details, ado_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.EventType, l.ItemID, l.ItemType, string(l.Status), l.Details,
		nullID(l.ADOID), payload, l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

// UpdateSyncLog updates an audit row in place. An empty payload keeps the stored one.
func (s *Store) UpdateSyncLog(ctx context.Context, l types.SyncLog) error {
	payload, _ := jsonOrNull(l.Payload)
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_logs SET
			event_type = $2, item_id = $3, item_type = $4, status = $5, details = $6,
			ado_id = $7, payload = COALESCE($8, payload), updated_at = $9
		WHERE id = $1
	`, l.ID, l.EventType, l.ItemID, l.ItemType, string(l.Status), l.Details,
		nullID(l.ADOID), payload, l.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update sync log %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update sync log %s: %w", l.ID, types.ErrNotFound)
	}
	return nil
}
