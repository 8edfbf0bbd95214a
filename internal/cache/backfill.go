package cache

import (
	"context"
	"sort"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// maxBackfillDepth bounds how many ancestor levels are fetched for one batch.
// The hierarchy has three levels, so two hops reach an epic from a story.
const maxBackfillDepth = 2

// persistWorkItems writes fetched items in two phases. Phase one upserts the
// items and replaces their relations without touching parent_id. Missing
// parents are then fetched and upserted the same way. Phase two writes
// parent_id only for parents confirmed present in the store, so no row ever
// points at a parent that was never cached. Failures are logged and counted.
func (c *Cache) persistWorkItems(ctx context.Context, items []types.WorkItem) {
	if len(items) == 0 {
		return
	}

	linked := make(map[int]*int, len(items))
	attempted := make(map[int]bool)
	batch := items
	for depth := 0; ; depth++ {
		if !c.upsertPhaseOne(ctx, batch) {
			return
		}
		for _, wi := range batch {
			linked[wi.ID] = wi.ParentID
		}
		if depth == maxBackfillDepth {
			break
		}
		missing := c.missingParents(ctx, linked, attempted)
		if len(missing) == 0 {
			break
		}
		for _, id := range missing {
			attempted[id] = true
		}
		parents, err := c.remote.GetWorkItems(ctx, missing)
		if err != nil {
			c.logger.Warn("parent backfill fetch failed", "parents", len(missing), "error", err)
			break
		}
		c.logger.Debug("backfilled parents", "requested", len(missing), "fetched", len(parents))
		if len(parents) == 0 {
			break
		}
		batch = parents
	}

	c.linkParents(ctx, linked)
}

func (c *Cache) upsertPhaseOne(ctx context.Context, batch []types.WorkItem) bool {
	now := c.now()
	rows := make([]types.WorkItem, len(batch))
	ids := make([]int, len(batch))
	var rels []types.Relation
	for i, wi := range batch {
		if wi.LastSyncedAt.IsZero() {
			wi.LastSyncedAt = now
		}
		rows[i] = wi
		ids[i] = wi.ID
		rels = append(rels, wi.Relations...)
	}
	if err := c.store.UpsertWorkItems(ctx, rows); err != nil {
		c.writeFailed("upsert_work_items", err)
		return false
	}
	if err := c.store.ReplaceRelations(ctx, ids, rels); err != nil {
		c.writeFailed("replace_relations", err)
	}
	return true
}

// missingParents returns referenced parent ids that are neither part of the
// written set nor already cached, in ascending order. Ids already requested
// once are skipped.
func (c *Cache) missingParents(ctx context.Context, linked map[int]*int, attempted map[int]bool) []int {
	var want []int
	seen := make(map[int]bool)
	for _, parent := range linked {
		if parent == nil || seen[*parent] || attempted[*parent] {
			continue
		}
		seen[*parent] = true
		if _, ok := linked[*parent]; !ok {
			want = append(want, *parent)
		}
	}
	if len(want) == 0 {
		return nil
	}
	existing, err := c.store.ExistingWorkItemIDs(ctx, want)
	if err != nil {
		c.logger.Warn("cache read failed", "op", "existing_work_items", "error", err)
		existing = nil
	}
	var missing []int
	for _, id := range want {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	sort.Ints(missing)
	return missing
}

// linkParents is phase two. Items without a parent relation get their link
// cleared; items whose parent is still absent stay unlinked.
func (c *Cache) linkParents(ctx context.Context, linked map[int]*int) {
	var parentIDs []int
	for _, parent := range linked {
		if parent != nil {
			parentIDs = append(parentIDs, *parent)
		}
	}
	present := map[int]bool{}
	if len(parentIDs) > 0 {
		var err error
		present, err = c.store.ExistingWorkItemIDs(ctx, parentIDs)
		if err != nil {
			c.writeFailed("confirm_parents", err)
			return
		}
	}

	updates := make(map[int]int, len(linked))
	for id, parent := range linked {
		switch {
		case parent == nil:
			updates[id] = 0
		case present[*parent]:
			updates[id] = *parent
		default:
			c.logger.Debug("parent not cached, leaving unlinked", "ado_id", id, "parent_id", *parent)
		}
	}
	if err := c.store.SetParentIDs(ctx, updates); err != nil {
		c.writeFailed("set_parent_ids", err)
	}
}
