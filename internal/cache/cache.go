// Package cache layers read-through, write-through and fallback semantics over
// a provider.Store for data fetched from Azure DevOps.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Source tells which path produced a FetchResult.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceNone   Source = "none"
)

// FetchResult is the outcome of a cached fetch. On a degraded result Source is
// SourceCache and Err carries the remote failure that forced the fallback.
// SourceNone means neither path produced data and Err is set.
type FetchResult[T any] struct {
	Value  T
	Source Source
	Err    error
}

// Degraded reports whether the value came from the cache after a remote failure.
func (r FetchResult[T]) Degraded() bool {
	return r.Source == SourceCache && r.Err != nil
}

// Remote is the subset of the Azure DevOps client the cache reads through.
type Remote interface {
	GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error)
	QueryByType(ctx context.Context, workItemType string, since time.Time) ([]types.WorkItem, error)
	ListWorkItemTypes(ctx context.Context) ([]types.WorkItemType, error)
	ListAreaPaths(ctx context.Context) ([]types.AreaPath, error)
	ListTeams(ctx context.Context) ([]types.Team, error)
}

// Cache reads Azure DevOps data through a local store.
type Cache struct {
	remote Remote
	store  provider.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cache. A nil logger uses slog.Default().
func New(remote Remote, store provider.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		remote: remote,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WorkItems returns the work items among ids. The cache answers only when every
// requested id is present and force is false; a partial hit fetches the full
// set remotely. Fetched items are written through, and a remote failure falls
// back to whatever the cache holds.
func (c *Cache) WorkItems(ctx context.Context, ids []int, force bool) FetchResult[[]types.WorkItem] {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return FetchResult[[]types.WorkItem]{Source: SourceCache}
	}

	if !force {
		cached, err := c.store.GetWorkItems(ctx, ids)
		switch {
		case err != nil:
			c.logger.Warn("cache read failed", "op", "get_work_items", "error", err)
		case len(cached) == len(ids):
			metrics.CacheHits.Add(1)
			return FetchResult[[]types.WorkItem]{Value: cached, Source: SourceCache}
		}
	}
	metrics.CacheMisses.Add(1)

	items, err := c.remote.GetWorkItems(ctx, ids)
	if err != nil {
		return fallback(c, "get_work_items", err, func() ([]types.WorkItem, error) {
			return c.store.GetWorkItems(ctx, ids)
		})
	}
	c.persistWorkItems(ctx, items)
	return FetchResult[[]types.WorkItem]{Value: items, Source: SourceRemote}
}

// QueryByType queries work items of a type changed since the cutoff (all of
// them when since is zero). Queries always go remote because the cache cannot
// prove it holds every match; on failure the cached items of the type are
// returned instead.
func (c *Cache) QueryByType(ctx context.Context, workItemType string, since time.Time) FetchResult[[]types.WorkItem] {
	items, err := c.remote.QueryByType(ctx, workItemType, since)
	if err != nil {
		return fallback(c, "query_by_type", err, func() ([]types.WorkItem, error) {
			return c.store.ListWorkItemsByType(ctx, workItemType)
		})
	}
	c.persistWorkItems(ctx, items)
	return FetchResult[[]types.WorkItem]{Value: items, Source: SourceRemote}
}

// WorkItemTypes returns work item types, from the cache when it holds any and
// force is false.
func (c *Cache) WorkItemTypes(ctx context.Context, force bool) FetchResult[[]types.WorkItemType] {
	return readThrough(ctx, c, "work_item_types", force,
		c.store.ListWorkItemTypes, c.remote.ListWorkItemTypes,
		func(ctx context.Context, wits []types.WorkItemType) error {
			now := c.now()
			for i := range wits {
				wits[i].LastSyncedAt = now
			}
			return c.store.UpsertWorkItemTypes(ctx, wits)
		})
}

// AreaPaths returns area paths, from the cache when it holds any and force is false.
func (c *Cache) AreaPaths(ctx context.Context, force bool) FetchResult[[]types.AreaPath] {
	return readThrough(ctx, c, "area_paths", force,
		c.store.ListAreaPaths, c.remote.ListAreaPaths,
		func(ctx context.Context, paths []types.AreaPath) error {
			now := c.now()
			for i := range paths {
				paths[i].LastSyncedAt = now
			}
			return c.store.UpsertAreaPaths(ctx, paths)
		})
}

// Teams returns teams, from the cache when it holds any and force is false.
func (c *Cache) Teams(ctx context.Context, force bool) FetchResult[[]types.Team] {
	return readThrough(ctx, c, "teams", force,
		c.store.ListTeams, c.remote.ListTeams,
		func(ctx context.Context, teams []types.Team) error {
			now := c.now()
			for i := range teams {
				teams[i].LastSyncedAt = now
			}
			return c.store.UpsertTeams(ctx, teams)
		})
}

func readThrough[T any](
	ctx context.Context,
	c *Cache,
	op string,
	force bool,
	read func(context.Context) ([]T, error),
	fetch func(context.Context) ([]T, error),
	write func(context.Context, []T) error,
) FetchResult[[]T] {
	if !force {
		cached, err := read(ctx)
		switch {
		case err != nil:
			c.logger.Warn("cache read failed", "op", op, "error", err)
		case len(cached) > 0:
			metrics.CacheHits.Add(1)
			return FetchResult[[]T]{Value: cached, Source: SourceCache}
		}
	}
	metrics.CacheMisses.Add(1)

	fresh, err := fetch(ctx)
	if err != nil {
		return fallback(c, op, err, func() ([]T, error) { return read(ctx) })
	}
	if len(fresh) > 0 {
		if err := write(ctx, fresh); err != nil {
			c.writeFailed(op, err)
		}
	}
	return FetchResult[[]T]{Value: fresh, Source: SourceRemote}
}

// fallback serves cached data after a remote failure. An empty cache
// propagates the remote error.
func fallback[T any](c *Cache, op string, remoteErr error, read func() ([]T, error)) FetchResult[[]T] {
	c.logger.Warn("remote fetch failed, falling back to cache", "op", op, "error", remoteErr)
	cached, err := read()
	if err != nil {
		c.logger.Warn("cache read failed", "op", op, "error", err)
		return FetchResult[[]T]{Source: SourceNone, Err: remoteErr}
	}
	if len(cached) == 0 {
		return FetchResult[[]T]{Source: SourceNone, Err: remoteErr}
	}
	metrics.CacheFallbacks.Add(1)
	return FetchResult[[]T]{Value: cached, Source: SourceCache, Err: remoteErr}
}

func (c *Cache) writeFailed(op string, err error) {
	metrics.CacheWriteErrors.Add(1)
	c.logger.Warn("cache write failed", "op", op, "error", err)
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
