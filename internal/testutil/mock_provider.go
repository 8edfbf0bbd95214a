// Package testutil provides shared test utilities: an in-memory Store and
// fake Azure DevOps and ProductBoard servers.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Store = (*MockStore)(nil)

// ErrInjected is returned by MockStore operations while failure injection is on.
var ErrInjected = errors.New("injected store failure")

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.Mutex
	items     map[int]types.WorkItem
	relations map[int][]types.Relation
	areas     map[int]types.AreaPath
	teams     map[string]types.Team
	wits      map[string]types.WorkItemType
	mappings  map[string]types.Mapping
	history   map[types.EntityType]types.SyncHistoryRecord
	logs      map[string]types.SyncLog
	logOrder  []string

	failWrites   atomic.Bool
	failReads    atomic.Bool
	failMappings atomic.Bool
	writeCount   atomic.Int64
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		items:     make(map[int]types.WorkItem),
		relations: make(map[int][]types.Relation),
		areas:     make(map[int]types.AreaPath),
		teams:     make(map[string]types.Team),
		wits:      make(map[string]types.WorkItemType),
		mappings:  make(map[string]types.Mapping),
		history:   make(map[types.EntityType]types.SyncHistoryRecord),
		logs:      make(map[string]types.SyncLog),
	}
}

// FailWrites makes every cache write fail until reset.
func (m *MockStore) FailWrites(on bool) { m.failWrites.Store(on) }

// FailReads makes every cache read fail until reset.
func (m *MockStore) FailReads(on bool) { m.failReads.Store(on) }

// FailMappingWrites makes UpsertMapping fail until reset. Other writes succeed.
func (m *MockStore) FailMappingWrites(on bool) { m.failMappings.Store(on) }

// WriteCount returns the number of successful write calls.
func (m *MockStore) WriteCount() int64 { return m.writeCount.Load() }

func (m *MockStore) write() error {
	if m.failWrites.Load() {
		return ErrInjected
	}
	m.writeCount.Add(1)
	return nil
}

func (m *MockStore) read() error {
	if m.failReads.Load() {
		return ErrInjected
	}
	return nil
}

func (m *MockStore) withRelations(wi types.WorkItem) types.WorkItem {
	if rels := m.relations[wi.ID]; len(rels) > 0 {
		wi.Relations = append([]types.Relation(nil), rels...)
	} else {
		wi.Relations = nil
	}
	return wi
}

func (m *MockStore) GetWorkItems(_ context.Context, ids []int) ([]types.WorkItem, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int]bool, len(ids))
	var out []types.WorkItem
	for _, id := range ids {
		if wi, ok := m.items[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, m.withRelations(wi))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) ListWorkItemsByType(_ context.Context, workItemType string) ([]types.WorkItem, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.WorkItem
	for _, wi := range m.items {
		if wi.Type == workItemType {
			out = append(out, m.withRelations(wi))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) UpsertWorkItems(_ context.Context, items []types.WorkItem) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wi := range items {
		var parent *int
		if prev, ok := m.items[wi.ID]; ok {
			parent = prev.ParentID
		}
		wi.ParentID = parent
		wi.Relations = nil
		m.items[wi.ID] = wi
	}
	return nil
}

func (m *MockStore) ExistingWorkItemIDs(_ context.Context, ids []int) (map[int]bool, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]bool)
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *MockStore) SetParentIDs(_ context.Context, parents map[int]int) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, parent := range parents {
		wi, ok := m.items[id]
		if !ok {
			continue
		}
		if parent == 0 {
			wi.ParentID = nil
		} else {
			p := parent
			wi.ParentID = &p
		}
		m.items[id] = wi
	}
	return nil
}

func (m *MockStore) GetRelations(_ context.Context, sourceIDs []int) ([]types.Relation, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]int(nil), sourceIDs...)
	sort.Ints(ids)
	var out []types.Relation
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		out = append(out, m.relations[id]...)
	}
	return out, nil
}

func (m *MockStore) DeleteRelationsForSources(_ context.Context, sourceIDs []int) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sourceIDs {
		delete(m.relations, id)
	}
	return nil
}

func (m *MockStore) ReplaceRelations(_ context.Context, sourceIDs []int, rels []types.Relation) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sourceIDs {
		delete(m.relations, id)
	}
	for _, r := range rels {
		m.relations[r.SourceID] = append(m.relations[r.SourceID], r)
	}
	return nil
}

func (m *MockStore) ListAreaPaths(_ context.Context) ([]types.AreaPath, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AreaPath, 0, len(m.areas))
	for _, a := range m.areas {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MockStore) UpsertAreaPaths(_ context.Context, paths []types.AreaPath) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range paths {
		m.areas[a.ID] = a
	}
	return nil
}

func (m *MockStore) ListTeams(_ context.Context) ([]types.Team, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) UpsertTeams(_ context.Context, teams []types.Team) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range teams {
		m.teams[t.ID] = t
	}
	return nil
}

func (m *MockStore) ListWorkItemTypes(_ context.Context) ([]types.WorkItemType, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.WorkItemType, 0, len(m.wits))
	for _, w := range m.wits {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) UpsertWorkItemTypes(_ context.Context, wits []types.WorkItemType) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range wits {
		m.wits[w.Name] = w
	}
	return nil
}

func (m *MockStore) GetMapping(_ context.Context, psID string) (*types.Mapping, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.mappings[psID]
	if !ok {
		return nil, nil
	}
	return &mp, nil
}

func (m *MockStore) UpsertMapping(_ context.Context, mp types.Mapping) error {
	if m.failMappings.Load() {
		return ErrInjected
	}
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[mp.PSID] = mp
	return nil
}

func (m *MockStore) ListMappings(_ context.Context, limit int) ([]types.Mapping, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Mapping, 0, len(m.mappings))
	for _, mp := range m.mappings {
		out = append(out, mp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PSID < out[j].PSID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) GetSyncHistory(_ context.Context, entityType types.EntityType) (*types.SyncHistoryRecord, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.history[entityType]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockStore) PutSyncHistory(_ context.Context, rec types.SyncHistoryRecord) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[rec.EntityType] = rec
	return nil
}

func (m *MockStore) ListSyncHistory(_ context.Context) ([]types.SyncHistoryRecord, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SyncHistoryRecord, 0, len(m.history))
	for _, rec := range m.history {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityType < out[j].EntityType })
	return out, nil
}

func (m *MockStore) CreateSyncLog(_ context.Context, log types.SyncLog) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.logs[log.ID]; ok {
		return errors.New("duplicate sync log id " + log.ID)
	}
	m.logs[log.ID] = log
	m.logOrder = append(m.logOrder, log.ID)
	return nil
}

func (m *MockStore) UpdateSyncLog(_ context.Context, log types.SyncLog) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.logs[log.ID]
	if !ok {
		return types.ErrNotFound
	}
	log.CreatedAt = prev.CreatedAt
	if log.Payload == nil {
		log.Payload = prev.Payload
	}
	m.logs[log.ID] = log
	return nil
}

func (m *MockStore) GetSyncLog(_ context.Context, id string) (*types.SyncLog, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[id]
	if !ok {
		return nil, nil
	}
	return &log, nil
}

func (m *MockStore) ListSyncLogs(_ context.Context, limit int) ([]types.SyncLog, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.SyncLog
	for i := len(m.logOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[m.logOrder[i]])
	}
	return out, nil
}

// SyncLogs returns every audit row in creation order.
func (m *MockStore) SyncLogs() []types.SyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SyncLog, 0, len(m.logOrder))
	for _, id := range m.logOrder {
		out = append(out, m.logs[id])
	}
	return out
}

func (m *MockStore) Migrate(context.Context) error { return nil }
func (m *MockStore) Ping(context.Context) error    { return m.read() }
func (m *MockStore) Close() error                  { return nil }
