package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

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

var (
	upsertWorkItemSQL = func() string {
		sets := make([]string, 0, len(workItemColumns)-1)
		for _, c := range workItemColumns[1:] {
			sets = append(sets, c+" = excluded."+c)
		}
		return "INSERT INTO work_items (" + strings.Join(workItemColumns, ", ") + ") VALUES (" +
			strings.TrimSuffix(strings.Repeat("?, ", len(workItemColumns)), ", ") +
			") ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
	}()
	selectWorkItemSQL = "SELECT " + strings.Join(workItemColumns, ", ") + ", parent_id FROM work_items"
)

func workItemArgs(wi types.WorkItem) ([]any, error) {
	tags, err := encodeJSON(wi.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags of %d: %w", wi.ID, err)
	}
	unrecognized, err := encodeJSON(wi.Unrecognized)
	if err != nil {
		return nil, fmt.Errorf("encoding unrecognized fields of %d: %w", wi.ID, err)
	}
	return []any{
		wi.ID, wi.URL, wi.Rev, wi.Type, wi.Title, wi.State, wi.Reason,
		wi.AreaPath, wi.AreaID, wi.IterationPath, wi.IterationID, nullInt(wi.Priority), wi.ValueArea,
		tags, wi.Description, wi.History, wi.AcceptanceCriteria,
		wi.AssignedTo.DisplayName, wi.AssignedTo.UniqueName,
		wi.CreatedBy.DisplayName, wi.CreatedBy.UniqueName,
		wi.ChangedBy.DisplayName, wi.ChangedBy.UniqueName,
		encodeTime(wi.CreatedDate), encodeTime(wi.ChangedDate), encodeTime(wi.StateChangeDate),
		wi.BoardColumn, boolInt(wi.BoardColumnDone), wi.CommentCount, wi.Watermark,
		nullFloat(wi.StackRank), nullFloat(wi.Effort), nullFloat(wi.StoryPoints), nullInt(wi.BusinessValue),
		wi.ProductBoardID, unrecognized, string(wi.Raw), encodeTime(wi.LastSyncedAt),
	}, nil
}

func scanWorkItem(rows *sql.Rows) (types.WorkItem, error) {
	var (
		wi                                     types.WorkItem
		priority, businessValue, parent        sql.NullInt64
		stackRank, effort, storyPoints         sql.NullFloat64
		tags, unrecognized, raw                string
		created, changed, stateChanged, synced string
		boardDone                              int
	)
	err := rows.Scan(
		&wi.ID, &wi.URL, &wi.Rev, &wi.Type, &wi.Title, &wi.State, &wi.Reason,
		&wi.AreaPath, &wi.AreaID, &wi.IterationPath, &wi.IterationID, &priority, &wi.ValueArea,
		&tags, &wi.Description, &wi.History, &wi.AcceptanceCriteria,
		&wi.AssignedTo.DisplayName, &wi.AssignedTo.UniqueName,
		&wi.CreatedBy.DisplayName, &wi.CreatedBy.UniqueName,
		&wi.ChangedBy.DisplayName, &wi.ChangedBy.UniqueName,
		&created, &changed, &stateChanged,
		&wi.BoardColumn, &boardDone, &wi.CommentCount, &wi.Watermark,
		&stackRank, &effort, &storyPoints, &businessValue,
		&wi.ProductBoardID, &unrecognized, &raw, &synced,
		&parent,
	)
	if err != nil {
		return types.WorkItem{}, err
	}
	wi.Priority = intFrom(priority)
	wi.BusinessValue = intFrom(businessValue)
	wi.ParentID = intFrom(parent)
	wi.StackRank = floatFrom(stackRank)
	wi.Effort = floatFrom(effort)
	wi.StoryPoints = floatFrom(storyPoints)
	wi.BoardColumnDone = boardDone != 0
	wi.CreatedDate = decodeTime(created)
	wi.ChangedDate = decodeTime(changed)
	wi.StateChangeDate = decodeTime(stateChanged)
	wi.LastSyncedAt = decodeTime(synced)
	decodeJSON(tags, &wi.Tags)
	decodeJSON(unrecognized, &wi.Unrecognized)
	if raw != "" {
		wi.Raw = []byte(raw)
	}
	return wi, nil
}

func (s *Store) queryWorkItems(ctx context.Context, query string, args ...any) ([]types.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return items, nil
}

func (s *Store) attachRelations(ctx context.Context, items []types.WorkItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int, len(items))
	for i, wi := range items {
		ids[i] = wi.ID
	}
	rels, err := s.GetRelations(ctx, ids)
	if err != nil {
		return err
	}
	bySource := make(map[int][]types.Relation)
	for _, r := range rels {
		bySource[r.SourceID] = append(bySource[r.SourceID], r)
	}
	for i := range items {
		items[i].Relations = bySource[items[i].ID]
	}
	return nil
}

// GetWorkItems returns the cached items among ids, ordered by id.
func (s *Store) GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error) {
	var items []types.WorkItem
	for _, chunk := range chunks(ids) {
		in, args := inList(chunk)
		got, err := s.queryWorkItems(ctx, selectWorkItemSQL+" WHERE id IN ("+in+") ORDER BY id", args...)
		if err != nil {
			return nil, fmt.Errorf("get work items: %w", err)
		}
		items = append(items, got...)
	}
	if err := s.attachRelations(ctx, items); err != nil {
		return nil, fmt.Errorf("get work items: %w", err)
	}
	return items, nil
}

// ListWorkItemsByType returns cached items of one type, ordered by id.
func (s *Store) ListWorkItemsByType(ctx context.Context, workItemType string) ([]types.WorkItem, error) {
	items, err := s.queryWorkItems(ctx, selectWorkItemSQL+" WHERE type = ? ORDER BY id", workItemType)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	if err := s.attachRelations(ctx, items); err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}

// UpsertWorkItems writes items in one transaction, leaving parent_id untouched.
func (s *Store) UpsertWorkItems(ctx context.Context, items []types.WorkItem) error {
	if len(items) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertWorkItemSQL)
		if err != nil {
			return fmt.Errorf("prepare work item upsert: %w", err)
		}
		defer stmt.Close()
		for _, wi := range items {
			args, err := workItemArgs(wi)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("upsert work item %d: %w", wi.ID, err)
			}
		}
		return nil
	})
}

// ExistingWorkItemIDs reports which of ids are cached.
func (s *Store) ExistingWorkItemIDs(ctx context.Context, ids []int) (map[int]bool, error) {
	out := make(map[int]bool)
	for _, chunk := range chunks(ids) {
		in, args := inList(chunk)
		rows, err := s.db.QueryContext(ctx, "SELECT id FROM work_items WHERE id IN ("+in+")", args...)
		if err != nil {
			return nil, fmt.Errorf("existing work items: %w", err)
		}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SetParentIDs writes parent links; a zero parent clears the link.
func (s *Store) SetParentIDs(ctx context.Context, parents map[int]int) error {
	if len(parents) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for id, parent := range parents {
			var value any
			if parent != 0 {
				value = parent
			}
			if _, err := tx.ExecContext(ctx, "UPDATE work_items SET parent_id = ? WHERE id = ?", value, id); err != nil {
				return fmt.Errorf("set parent of %d: %w", id, err)
			}
		}
		return nil
	})
}

// GetRelations returns the relations of the given sources ordered by source and insertion.
func (s *Store) GetRelations(ctx context.Context, sourceIDs []int) ([]types.Relation, error) {
	var out []types.Relation
	for _, chunk := range chunks(sourceIDs) {
		in, args := inList(chunk)
		rows, err := s.db.QueryContext(ctx, `
			SELECT source_id, target_id, target_url, rel_type, attributes,
				is_parent, is_child, is_related, is_hyperlink, is_cross_system_link, cross_system_id
			FROM relations WHERE source_id IN (`+in+`) ORDER BY source_id, id`, args...)
		if err != nil {
			return nil, fmt.Errorf("get relations: %w", err)
		}
		for rows.Next() {
			var (
				r                                           types.Relation
				target                                      sql.NullInt64
				attrs                                       string
				parent, child, related, hyperlink, crossSys int
			)
			if err := rows.Scan(&r.SourceID, &target, &r.TargetURL, &r.RelType, &attrs,
				&parent, &child, &related, &hyperlink, &crossSys, &r.CrossSystemID); err != nil {
				rows.Close()
				return nil, err
			}
			r.TargetID = intFrom(target)
			r.IsParent, r.IsChild, r.IsRelated = parent != 0, child != 0, related != 0
			r.IsHyperlink, r.IsCrossSystemLink = hyperlink != 0, crossSys != 0
			decodeJSON(attrs, &r.Attributes)
			out = append(out, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func deleteRelations(ctx context.Context, tx *sql.Tx, sourceIDs []int) error {
	for _, chunk := range chunks(sourceIDs) {
		in, args := inList(chunk)
		if _, err := tx.ExecContext(ctx, "DELETE FROM relations WHERE source_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("delete relations: %w", err)
		}
	}
	return nil
}

// DeleteRelationsForSources removes every relation of the given sources.
func (s *Store) DeleteRelationsForSources(ctx context.Context, sourceIDs []int) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteRelations(ctx, tx, sourceIDs)
	})
}

// ReplaceRelations deletes the relations of sourceIDs and inserts rels in one transaction.
func (s *Store) ReplaceRelations(ctx context.Context, sourceIDs []int, rels []types.Relation) error {
	if len(sourceIDs) == 0 && len(rels) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteRelations(ctx, tx, sourceIDs); err != nil {
			return err
		}
		for _, r := range rels {
			attrs, err := encodeJSON(r.Attributes)
			if err != nil {
				return fmt.Errorf("encoding relation attributes: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO relations (source_id, target_id, target_url, rel_type, attributes,
					is_parent, is_child, is_related, is_hyperlink, is_cross_system_link, cross_system_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.SourceID, nullInt(r.TargetID), r.TargetURL, r.RelType, attrs,
				boolInt(r.IsParent), boolInt(r.IsChild), boolInt(r.IsRelated),
				boolInt(r.IsHyperlink), boolInt(r.IsCrossSystemLink), r.CrossSystemID)
			if err != nil {
				return fmt.Errorf("insert relation of %d: %w", r.SourceID, err)
			}
		}
		return nil
	})
}
