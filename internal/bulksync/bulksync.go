// Package bulksync refreshes the local cache from Azure DevOps: reference data,
// the epic/feature/story hierarchy and the ADO side of cross-system mappings.
package bulksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AlieInmar1/pbtoado-sub002/internal/cache"
	"github.com/AlieInmar1/pbtoado-sub002/internal/hierarchy"
	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/internal/synchistory"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// ErrRunning is returned when a sync is requested while another is in progress.
var ErrRunning = errors.New("bulk sync already running")

// Remote is the ADO surface a run needs.
type Remote interface {
	cache.Remote
	WebURL(id int) string
}

// Request parameterizes one run. Empty credentials use the configured ones.
type Request struct {
	Organization  string `json:"organization,omitempty"`
	Project       string `json:"project,omitempty"`
	PAT           string `json:"pat,omitempty"`
	ForceFullSync bool   `json:"forceFullSync"`
}

func (r Request) overrides() bool {
	return r.Organization != "" || r.Project != "" || r.PAT != ""
}

// HierarchySummary counts the linkage found in the cached hierarchy.
type HierarchySummary struct {
	Epics          int `json:"epics"`
	Features       int `json:"features"`
	Stories        int `json:"stories"`
	LinkedFeatures int `json:"linkedFeatures"`
	LinkedStories  int `json:"linkedStories"`
}

// Result summarizes a run.
type Result struct {
	Success           bool                     `json:"success"`
	Message           string                   `json:"message"`
	Counts            map[types.EntityType]int `json:"counts"`
	Degraded          []types.EntityType       `json:"degraded,omitempty"`
	Failed            []types.EntityType       `json:"failed,omitempty"`
	Hierarchy         HierarchySummary         `json:"hierarchy"`
	MappingsRefreshed int                      `json:"mappingsRefreshed"`
	Duration          time.Duration            `json:"duration"`
}

// RemoteFactory builds an ADO client for per-request credentials.
type RemoteFactory func(cfg types.ADOConfig) Remote

// Service runs bulk syncs. At most one run is in flight at a time.
type Service struct {
	base        types.ADOConfig
	remote      Remote
	newRemote   RemoteFactory
	store       provider.Store
	tracker     *synchistory.Tracker
	entityTypes map[types.EntityType]bool
	logger      *slog.Logger

	running sync.Mutex
}

// New creates a Service. entityTypes limits which collections are synced;
// empty means all of them. newRemote may be nil, in which case requests with
// credentials are rejected.
func New(base types.ADOConfig, remote Remote, newRemote RemoteFactory, store provider.Store, entityTypes []types.EntityType, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		base:      base,
		remote:    remote,
		newRemote: newRemote,
		store:     store,
		tracker:   synchistory.New(store, logger),
		logger:    logger,
	}
	if len(entityTypes) > 0 {
		s.entityTypes = make(map[types.EntityType]bool, len(entityTypes))
		for _, et := range entityTypes {
			s.entityTypes[et] = true
		}
	}
	return s
}

func (s *Service) enabled(et types.EntityType) bool {
	return s.entityTypes == nil || s.entityTypes[et]
}

// itemStages are synced in order so parents are cached before their children.
var itemStages = []struct {
	entity  types.EntityType
	adoType string
}{
	{types.EntityEpics, types.ADOTypeEpic},
	{types.EntityFeatures, types.ADOTypeFeature},
	{types.EntityStories, types.ADOTypeStory},
}

// outcome is the per-entity result of a stage.
type outcome struct {
	entity types.EntityType
	count  int
	source cache.Source
	err    error
}

func (o outcome) status() types.SyncStatus {
	switch {
	case o.source == cache.SourceNone && o.err != nil:
		return types.SyncFailed
	case o.err != nil:
		return types.SyncPartial
	default:
		return types.SyncSuccess
	}
}

// Run performs one bulk sync. Cancelling ctx stops further remote calls; writes
// already issued complete and the outcome of each stage is still recorded.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	if !s.running.TryLock() {
		return Result{Message: ErrRunning.Error()}, ErrRunning
	}
	defer s.running.Unlock()

	remote := s.remote
	if req.overrides() {
		if s.newRemote == nil {
			return Result{Message: "per-request credentials are not supported"}, fmt.Errorf("bulk sync: per-request credentials are not supported")
		}
		cfg := s.base
		if req.Organization != "" {
			cfg.Organization = req.Organization
		}
		if req.Project != "" {
			cfg.Project = req.Project
		}
		if req.PAT != "" {
			cfg.PAT = req.PAT
		}
		remote = s.newRemote(cfg)
	}

	metrics.BulkSyncRuns.Add(1)
	start := time.Now()
	c := cache.New(remote, s.store, s.logger)
	s.logger.Info("bulk sync started", "force", req.ForceFullSync)

	outcomes := s.referenceData(ctx, c)
	for _, st := range itemStages {
		if !s.enabled(st.entity) {
			continue
		}
		since := s.tracker.Cutoff(ctx, st.entity, req.ForceFullSync)
		res := c.QueryByType(ctx, st.adoType, since)
		outcomes = append(outcomes, outcome{entity: st.entity, count: len(res.Value), source: res.Source, err: res.Err})
	}

	// Stage outcomes are recorded even when the caller has given up.
	recordCtx := context.WithoutCancel(ctx)
	for _, o := range outcomes {
		if err := s.tracker.RecordSync(recordCtx, o.entity, o.count, o.status(), o.err); err != nil {
			s.logger.Warn("recording sync history failed", "entity_type", o.entity, "error", err)
		}
	}

	result := Result{Counts: make(map[types.EntityType]int, len(outcomes))}
	for _, o := range outcomes {
		result.Counts[o.entity] = o.count
		switch o.status() {
		case types.SyncFailed:
			result.Failed = append(result.Failed, o.entity)
		case types.SyncPartial:
			result.Degraded = append(result.Degraded, o.entity)
		}
	}

	h, err := s.cachedHierarchy(recordCtx)
	if err != nil {
		s.logger.Warn("building hierarchy failed", "error", err)
	} else {
		result.Hierarchy = summarize(h)
		result.MappingsRefreshed = s.refreshMappings(recordCtx, remote, h)
	}

	result.Success = len(result.Failed) == 0
	result.Duration = time.Since(start)
	result.Message = message(result)
	if !result.Success {
		metrics.BulkSyncFailures.Add(1)
	}
	s.logger.Info("bulk sync finished", "success", result.Success, "message", result.Message, "duration", result.Duration)
	return result, nil
}

// referenceData refreshes types, area paths and teams concurrently.
func (s *Service) referenceData(ctx context.Context, c *cache.Cache) []outcome {
	var (
		g   errgroup.Group
		mu  sync.Mutex
		out []outcome
	)
	add := func(o outcome) {
		mu.Lock()
		out = append(out, o)
		mu.Unlock()
	}
	if s.enabled(types.EntityWorkItemTypes) {
		g.Go(func() error {
			r := c.WorkItemTypes(ctx, true)
			add(outcome{entity: types.EntityWorkItemTypes, count: len(r.Value), source: r.Source, err: r.Err})
			return nil
		})
	}
	if s.enabled(types.EntityAreaPaths) {
		g.Go(func() error {
			r := c.AreaPaths(ctx, true)
			add(outcome{entity: types.EntityAreaPaths, count: len(r.Value), source: r.Source, err: r.Err})
			return nil
		})
	}
	if s.enabled(types.EntityTeams) {
		g.Go(func() error {
			r := c.Teams(ctx, true)
			add(outcome{entity: types.EntityTeams, count: len(r.Value), source: r.Source, err: r.Err})
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].entity < out[j].entity })
	return out
}

// cachedHierarchy builds the hierarchy from every cached item, not just the
// items fetched by this run.
func (s *Service) cachedHierarchy(ctx context.Context) (hierarchy.Hierarchy, error) {
	epics, err := s.store.ListWorkItemsByType(ctx, types.ADOTypeEpic)
	if err != nil {
		return hierarchy.Hierarchy{}, &types.StoreError{Op: "list epics", Err: err}
	}
	features, err := s.store.ListWorkItemsByType(ctx, types.ADOTypeFeature)
	if err != nil {
		return hierarchy.Hierarchy{}, &types.StoreError{Op: "list features", Err: err}
	}
	stories, err := s.store.ListWorkItemsByType(ctx, types.ADOTypeStory)
	if err != nil {
		return hierarchy.Hierarchy{}, &types.StoreError{Op: "list stories", Err: err}
	}
	return hierarchy.Build(epics, features, stories), nil
}

// Hierarchy returns the tree of cached work items.
func (s *Service) Hierarchy(ctx context.Context) ([]hierarchy.Node, error) {
	h, err := s.cachedHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return h.Tree(), nil
}

// WorkItems reads work items through the cache. The cache answers only when it
// holds every requested id and refresh is false.
func (s *Service) WorkItems(ctx context.Context, ids []int, refresh bool) cache.FetchResult[[]types.WorkItem] {
	return cache.New(s.remote, s.store, s.logger).WorkItems(ctx, ids, refresh)
}

func summarize(h hierarchy.Hierarchy) HierarchySummary {
	return HierarchySummary{
		Epics:          len(h.Epics),
		Features:       len(h.Features),
		Stories:        len(h.Stories),
		LinkedFeatures: len(h.FeatureToEpic),
		LinkedStories:  len(h.StoryToFeature),
	}
}

// refreshMappings points existing mappings at the cached work item carrying
// their ProductBoard id. The cached ProductBoard status is never touched. A
// pending mapping whose create reached ADO is settled here.
func (s *Service) refreshMappings(ctx context.Context, remote Remote, h hierarchy.Hierarchy) int {
	var items []types.WorkItem
	for _, wi := range h.Epics {
		items = append(items, wi)
	}
	for _, wi := range h.Features {
		items = append(items, wi)
	}
	items = append(items, h.Stories...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	refreshed := 0
	seen := make(map[string]bool)
	for _, wi := range items {
		if wi.ProductBoardID == "" || seen[wi.ProductBoardID] {
			continue
		}
		seen[wi.ProductBoardID] = true

		m, err := s.store.GetMapping(ctx, wi.ProductBoardID)
		if err != nil {
			s.logger.Warn("mapping read failed", "ps_id", wi.ProductBoardID, "error", err)
			continue
		}
		if m == nil {
			continue
		}
		url := remote.WebURL(wi.ID)
		settle := m.SyncStatus == types.MappingPending && !m.HasRemote()
		if m.WTSID == wi.ID && m.WTSURL == url && !settle {
			continue
		}
		m.WTSID = wi.ID
		m.WTSURL = url
		if settle {
			m.SyncStatus = types.MappingSynced
			m.SyncError = ""
		}
		if err := s.store.UpsertMapping(ctx, *m); err != nil {
			metrics.MappingWriteErrors.Add(1)
			s.logger.Warn("mapping refresh failed", "ps_id", wi.ProductBoardID, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed
}

func message(r Result) string {
	keys := make([]string, 0, len(r.Counts))
	for et := range r.Counts {
		keys = append(keys, string(et))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r.Counts[types.EntityType(k)]))
	}
	msg := "synced " + strings.Join(parts, " ")
	if len(r.Degraded) > 0 {
		msg += fmt.Sprintf("; served from cache: %v", r.Degraded)
	}
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf("; failed: %v", r.Failed)
	}
	if r.MappingsRefreshed > 0 {
		msg += fmt.Sprintf("; mappings refreshed=%d", r.MappingsRefreshed)
	}
	return msg
}
