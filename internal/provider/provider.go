// Package provider defines the storage backend interface for the local cache.
package provider

import (
	"context"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Store is the relational cache of ADO entities, cross-system mappings, sync
// watermarks and the webhook audit log. Implementations: sqlite (default),
// postgres and the in-memory testutil.MockStore.
type Store interface {
	// Work items. Reads attach each item's cached relations. UpsertWorkItems
	// never writes parent_id: new rows get NULL and existing rows keep their
	// value. Parent linkage is written separately by SetParentIDs once the
	// referenced parents are confirmed present.
	GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error)
	ListWorkItemsByType(ctx context.Context, workItemType string) ([]types.WorkItem, error)
	UpsertWorkItems(ctx context.Context, items []types.WorkItem) error
	ExistingWorkItemIDs(ctx context.Context, ids []int) (map[int]bool, error)
	SetParentIDs(ctx context.Context, parents map[int]int) error // a zero parent clears the link

	// Relations are replaced wholesale per source item.
	GetRelations(ctx context.Context, sourceIDs []int) ([]types.Relation, error)
	DeleteRelationsForSources(ctx context.Context, sourceIDs []int) error
	ReplaceRelations(ctx context.Context, sourceIDs []int, rels []types.Relation) error

	// Reference data, upserted on its natural key.
	ListAreaPaths(ctx context.Context) ([]types.AreaPath, error)
	UpsertAreaPaths(ctx context.Context, paths []types.AreaPath) error
	ListTeams(ctx context.Context) ([]types.Team, error)
	UpsertTeams(ctx context.Context, teams []types.Team) error
	ListWorkItemTypes(ctx context.Context) ([]types.WorkItemType, error)
	UpsertWorkItemTypes(ctx context.Context, wits []types.WorkItemType) error

	// Mappings, at most one per ProductBoard id. GetMapping returns nil, nil
	// when no row exists.
	GetMapping(ctx context.Context, psID string) (*types.Mapping, error)
	UpsertMapping(ctx context.Context, m types.Mapping) error
	ListMappings(ctx context.Context, limit int) ([]types.Mapping, error)

	// Sync history watermarks, one per entity type.
	GetSyncHistory(ctx context.Context, entityType types.EntityType) (*types.SyncHistoryRecord, error)
	PutSyncHistory(ctx context.Context, rec types.SyncHistoryRecord) error
	ListSyncHistory(ctx context.Context) ([]types.SyncHistoryRecord, error)

	// Webhook audit log. Rows are created once and updated in place; they are
	// never deleted. UpdateSyncLog returns types.ErrNotFound for unknown ids.
	CreateSyncLog(ctx context.Context, log types.SyncLog) error
	UpdateSyncLog(ctx context.Context, log types.SyncLog) error
	GetSyncLog(ctx context.Context, id string) (*types.SyncLog, error)
	ListSyncLogs(ctx context.Context, limit int) ([]types.SyncLog, error) // newest first

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// DefaultListLimit bounds list reads when the caller passes a non-positive limit.
const DefaultListLimit = 100
