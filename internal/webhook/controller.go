// Package webhook implements the ProductBoard webhook sync controller: it turns
// one inbound event into at most one ADO write, recording every step in the
// sync audit log.
//
// The cached ProductBoard status on a mapping is advanced whenever the fetched
// status differs, on skipped events and dry runs alike, with one exception: a
// failed ADO push leaves it at its previous value. Advancing it there would make
// the next event for the same item look like a non-transition and the push
// would never be retried; keeping it makes the next event fire the trigger
// again.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/AlieInmar1/pbtoado-sub002/internal/lifecycle"
	"github.com/AlieInmar1/pbtoado-sub002/internal/lock"
	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/internal/productboard"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// DefaultReadyStatus is the ProductBoard status whose arrival triggers a push.
const DefaultReadyStatus = "With Engineering"

// ProductBoard is the read side of the ProductBoard API the controller needs.
type ProductBoard interface {
	GetFeature(ctx context.Context, id string) (mapping.Feature, error)
	GetCustomFieldValues(ctx context.Context, featureID string) (mapping.CustomValues, error)
}

// ADO is the write side of the Azure DevOps API the controller needs.
type ADO interface {
	CreateWorkItem(ctx context.Context, workItemType string, ops []mapping.PatchOp) (types.WorkItem, error)
	UpdateWorkItem(ctx context.Context, id int, ops []mapping.PatchOp) (types.WorkItem, error)
	FindByProductBoardID(ctx context.Context, psID string) (*types.WorkItem, error)
	WebURL(id int) string
}

// Config controls trigger and write behavior.
type Config struct {
	Secret      string
	ReadyStatus string
	LiveWrites  bool
	LockTTL     time.Duration
	LockWait    time.Duration
}

// ConfigFrom converts the YAML webhook section, applying defaults to unset or
// unparseable durations.
func ConfigFrom(wc types.WebhookConfig) Config {
	cfg := Config{
		Secret:      wc.Secret,
		ReadyStatus: wc.ReadyStatus,
		LiveWrites:  wc.LiveWrites,
		LockTTL:     lock.DefaultTTL,
		LockWait:    lock.DefaultWait,
	}
	if cfg.ReadyStatus == "" {
		cfg.ReadyStatus = DefaultReadyStatus
	}
	if d, err := time.ParseDuration(wc.LockTTL); err == nil && d > 0 {
		cfg.LockTTL = d
	}
	if d, err := time.ParseDuration(wc.LockWait); err == nil && d >= 0 {
		cfg.LockWait = d
	}
	return cfg
}

// Result summarizes how an event ended.
type Result struct {
	SyncLogID string              `json:"syncLogId"`
	Status    types.SyncLogStatus `json:"status"`
	Details   string              `json:"details,omitempty"`
	ItemID    string              `json:"itemId,omitempty"`
	ADOID     int                 `json:"adoId,omitempty"`
}

// Controller processes inbound ProductBoard events.
type Controller struct {
	cfg     Config
	store   provider.Store
	pb      ProductBoard
	ado     ADO
	mapper  *mapping.Mapper
	locker  lock.Locker
	alertFn func(types.Alert)
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(c *Controller) { c.locker = l }
}

// WithAlertFunc sets the callback invoked for error terminal states.
func WithAlertFunc(fn func(types.Alert)) Option {
	return func(c *Controller) { c.alertFn = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller.
func New(cfg Config, store provider.Store, pb ProductBoard, ado ADO, m *mapping.Mapper, opts ...Option) *Controller {
	if cfg.ReadyStatus == "" {
		cfg.ReadyStatus = DefaultReadyStatus
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = lock.DefaultTTL
	}
	c := &Controller{
		cfg:    cfg,
		store:  store,
		pb:     pb,
		ado:    ado,
		mapper: m,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	if c.locker == nil {
		c.locker = lock.NewMemory()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// LiveWrites reports whether ADO writes are enabled.
func (c *Controller) LiveWrites() bool { return c.cfg.LiveWrites }

// Authorize compares the caller-supplied secret with the configured one. An
// empty configured secret rejects every request.
func (c *Controller) Authorize(presented string) error {
	if c.cfg.Secret == "" {
		return &types.AuthError{Reason: "webhook secret not configured"}
	}
	if presented == "" {
		return &types.AuthError{Reason: "missing authorization"}
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(c.cfg.Secret)) != 1 {
		return &types.AuthError{Reason: "secret mismatch"}
	}
	return nil
}

// Handle runs one authorized event to a terminal state. It returns an error
// when ctx is cancelled before processing starts, or a *types.StoreError when
// the audit row cannot be created; in both cases no remote call is made.
// Every other failure is a terminal status in the Result.
func (c *Controller) Handle(ctx context.Context, body []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	metrics.WebhookEventsTotal.Add(1)

	ev, parseErr := productboard.ParseEvent(body)
	e := &event{
		log: types.SyncLog{
			ID:        ulid.Make().String(),
			EventType: ev.Type,
			ItemID:    ev.ItemID,
			ItemType:  ev.ItemType,
			Status:    types.LogReceived,
			Payload:   payloadOf(body),
			CreatedAt: c.now(),
			UpdatedAt: c.now(),
		},
	}
	if err := c.store.CreateSyncLog(ctx, e.log); err != nil {
		c.logger.Error("sync log create failed", "sync_log_id", e.log.ID, "event_type", ev.Type, "error", err)
		return Result{}, &types.StoreError{Op: "create sync log", Err: err}
	}

	if parseErr != nil {
		metrics.WebhookIgnored.Add(1)
		c.finish(ctx, e, types.LogIgnored, parseErr.Error())
		return e.result(), nil
	}

	key := lock.ItemKey(ev.ItemID)
	if err := lock.AcquireWait(ctx, c.locker, key, c.cfg.LockTTL, c.cfg.LockWait); err != nil {
		metrics.LockErrors.Add(1)
		c.finish(ctx, e, types.LogLockError, err.Error())
		return e.result(), nil
	}
	defer func() {
		// Release even if the request context is gone.
		if err := c.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			c.logger.Warn("lock release failed", "ps_id", ev.ItemID, "error", err)
		}
	}()

	c.process(ctx, e, ev)
	return e.result(), nil
}

// event is the in-flight state of one webhook delivery.
type event struct {
	log types.SyncLog
}

func (e *event) result() Result {
	return Result{
		SyncLogID: e.log.ID,
		Status:    e.log.Status,
		Details:   e.log.Details,
		ItemID:    e.log.ItemID,
		ADOID:     e.log.ADOID,
	}
}

func (c *Controller) process(ctx context.Context, e *event, ev productboard.Event) {
	psID := ev.ItemID
	feat, err := c.pb.GetFeature(ctx, psID)
	if err != nil {
		metrics.FetchErrors.Add(1)
		c.finish(ctx, e, types.LogFetchError, fmt.Sprintf("fetching feature %s: %v", psID, err))
		return
	}
	values, err := c.pb.GetCustomFieldValues(ctx, psID)
	if err != nil {
		metrics.FetchErrors.Add(1)
		c.finish(ctx, e, types.LogFetchError, fmt.Sprintf("fetching custom fields of %s: %v", psID, err))
		return
	}
	existing, err := c.store.GetMapping(ctx, psID)
	if err != nil {
		// Without the cached status the trigger cannot be evaluated safely.
		metrics.FetchErrors.Add(1)
		c.finish(ctx, e, types.LogFetchError, (&types.StoreError{Op: "get mapping", Err: err}).Error())
		return
	}
	current := ""
	if feat.Status != nil {
		current = feat.Status.Name
	}
	cached := prior(existing)
	c.advance(ctx, e, types.LogFetched, fmt.Sprintf("status %q", current))

	if !c.triggered(current, cached) {
		details := fmt.Sprintf("status %q (cached %q) is not a transition into %q", current, cached, c.cfg.ReadyStatus)
		if current != cached {
			if err := c.store.UpsertMapping(ctx, c.tracked(existing, psID, current)); err != nil {
				metrics.MappingWriteErrors.Add(1)
				c.logger.Warn("cached status update failed", "ps_id", psID, "error", err)
				details += "; cached status update failed: " + err.Error()
			}
		}
		metrics.SkippedStatusCheck.Add(1)
		c.finish(ctx, e, types.LogSkippedStatusCheck, details)
		return
	}
	c.advance(ctx, e, types.LogProcessingRequired, fmt.Sprintf("status %q (cached %q)", current, cached))

	item := c.mapper.ItemFromFeature(feat, values)
	if item.ProductBoardID == "" {
		item.ProductBoardID = psID
	}

	if !c.cfg.LiveWrites {
		c.dryRun(ctx, e, item, existing, current)
		return
	}
	c.push(ctx, e, item, existing, current)
}

// triggered is the edge trigger: the fresh status is the ready status and the
// cached one was not.
func (c *Controller) triggered(current, cached string) bool {
	return current == c.cfg.ReadyStatus && cached != c.cfg.ReadyStatus
}

// tracked returns the mapping with only the cached status advanced.
func (c *Controller) tracked(existing *types.Mapping, psID, status string) types.Mapping {
	m := types.Mapping{PSID: psID, SyncStatus: types.MappingTracking}
	if existing != nil {
		m = *existing
	}
	m.LastKnownPSStatus = status
	m.LastSyncedAt = c.now()
	return m
}

func prior(m *types.Mapping) string {
	if m == nil {
		return ""
	}
	return m.LastKnownPSStatus
}

func (c *Controller) workItemType(item types.Item) string {
	if item.Kind == types.KindFeature {
		return c.mapper.DefaultType()
	}
	return item.Kind.ADOType()
}

func (c *Controller) dryRun(ctx context.Context, e *event, item types.Item, existing *types.Mapping, current string) {
	create := !existing.HasRemote()
	ops := c.mapper.ADOPatch(item, create)
	payload, _ := json.Marshal(ops)

	action := "create " + c.workItemType(item)
	if !create {
		action = fmt.Sprintf("update work item %d", existing.WTSID)
	}
	c.logger.Info("dry run: ADO write skipped", "ps_id", item.ProductBoardID, "action", action, "payload", string(payload))

	details := fmt.Sprintf("dry run: would %s with %d operations: %s", action, len(ops), payload)
	if err := c.store.UpsertMapping(ctx, c.tracked(existing, item.ProductBoardID, current)); err != nil {
		metrics.MappingWriteErrors.Add(1)
		c.logger.Warn("cached status update failed", "ps_id", item.ProductBoardID, "error", err)
		details += "; cached status update failed: " + err.Error()
	}
	metrics.DryRuns.Add(1)
	c.finish(ctx, e, types.LogDryRun, details)
}

func (c *Controller) push(ctx context.Context, e *event, item types.Item, existing *types.Mapping, current string) {
	psID := item.ProductBoardID

	target := 0
	if existing.HasRemote() {
		target = existing.WTSID
	} else if existing != nil && existing.SyncStatus == types.MappingPending {
		// A previous create may have reached ADO without its mapping being saved.
		found, err := c.ado.FindByProductBoardID(ctx, psID)
		if err != nil {
			c.failPush(ctx, e, existing, psID, fmt.Errorf("looking up pending create: %w", err))
			return
		}
		if found != nil {
			c.logger.Info("reusing work item from pending create", "ps_id", psID, "ado_id", found.ID)
			target = found.ID
		}
	}

	if target > 0 {
		ops := c.mapper.ADOPatch(item, false)
		wi, err := c.ado.UpdateWorkItem(ctx, target, ops)
		if err != nil {
			c.failPush(ctx, e, existing, psID, err)
			return
		}
		c.complete(ctx, e, types.LogADOUpdated, psID, wi.ID, current)
		return
	}

	// The provisional row keeps the prior cached status so a failed create
	// triggers again on the next event.
	provisional := c.tracked(existing, psID, prior(existing))
	provisional.SyncStatus = types.MappingPending
	provisional.SyncError = ""
	if err := c.store.UpsertMapping(ctx, provisional); err != nil {
		metrics.MappingWriteErrors.Add(1)
		c.finish(ctx, e, types.LogMappingUpdateError, "writing provisional mapping before create: "+err.Error())
		return
	}

	typ := c.workItemType(item)
	wi, err := c.ado.CreateWorkItem(ctx, typ, c.mapper.ADOPatch(item, true))
	if err != nil {
		c.failPush(ctx, e, &provisional, psID, err)
		return
	}
	c.complete(ctx, e, types.LogADOCreated, psID, wi.ID, current)
}

// complete saves the mapping for a successful ADO write, then records the
// terminal status. The mapping write precedes the audit record so a logged
// ado_created always has its mapping.
func (c *Controller) complete(ctx context.Context, e *event, status types.SyncLogStatus, psID string, adoID int, current string) {
	e.log.ADOID = adoID
	m := types.Mapping{
		PSID:              psID,
		WTSID:             adoID,
		WTSURL:            c.ado.WebURL(adoID),
		LastKnownPSStatus: current,
		LastSyncedAt:      c.now(),
		SyncStatus:        types.MappingSynced,
	}
	if err := c.store.UpsertMapping(ctx, m); err != nil {
		metrics.MappingWriteErrors.Add(1)
		c.finish(ctx, e, types.LogMappingUpdateError,
			fmt.Sprintf("ADO work item %d written but mapping save failed: %v", adoID, err))
		return
	}

	verb := "updated"
	if status == types.LogADOCreated {
		verb = "created"
		metrics.ADOCreated.Add(1)
	} else {
		metrics.ADOUpdated.Add(1)
	}
	c.finish(ctx, e, status, fmt.Sprintf("%s ADO work item %d", verb, adoID))
}

// failPush records an ADO failure on the mapping without advancing its
// cached status, so the next event for the item triggers again.
func (c *Controller) failPush(ctx context.Context, e *event, existing *types.Mapping, psID string, pushErr error) {
	metrics.ADOErrors.Add(1)
	details := pushErr.Error()
	if existing != nil {
		m := *existing
		if m.SyncStatus != types.MappingPending {
			m.SyncStatus = types.MappingError
		}
		m.SyncError = truncate(details, 1000)
		m.LastSyncedAt = c.now()
		if err := c.store.UpsertMapping(ctx, m); err != nil {
			metrics.MappingWriteErrors.Add(1)
			c.logger.Warn("mapping error state not saved", "ps_id", psID, "error", err)
		}
	}
	c.finish(ctx, e, types.LogADOError, details)
}

// advance records a non-terminal status.
func (c *Controller) advance(ctx context.Context, e *event, to types.SyncLogStatus, details string) {
	c.record(ctx, e, to, details)
}

// finish records a terminal status and raises an alert for error states.
func (c *Controller) finish(ctx context.Context, e *event, to types.SyncLogStatus, details string) {
	c.record(ctx, e, to, details)

	level := slog.LevelInfo
	if lifecycle.IsError(to) {
		level = slog.LevelWarn
		c.alert(e)
	}
	c.logger.Log(ctx, level, "webhook event processed",
		"sync_log_id", e.log.ID,
		"event_type", e.log.EventType,
		"ps_id", e.log.ItemID,
		"status", to,
		"details", e.log.Details,
	)
}

func (c *Controller) record(ctx context.Context, e *event, to types.SyncLogStatus, details string) {
	if err := lifecycle.Transition(e.log.Status, to); err != nil {
		c.logger.Error("unexpected sync log transition", "sync_log_id", e.log.ID, "error", err)
	}
	e.log.Status = to
	e.log.Details = details
	e.log.UpdatedAt = c.now()

	// Audit writes outlive a cancelled request.
	if err := c.store.UpdateSyncLog(context.WithoutCancel(ctx), e.log); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return
		}
		c.logger.Warn("sync log update failed", "sync_log_id", e.log.ID, "status", to, "error", err)
	}
}

func (c *Controller) alert(e *event) {
	if c.alertFn == nil {
		return
	}
	c.alertFn(types.Alert{
		Level:    types.AlertLevelError,
		Category: string(e.log.Status),
		ItemID:   e.log.ItemID,
		Message:  fmt.Sprintf("webhook %s for %s: %s", e.log.Status, e.log.ItemID, truncate(e.log.Details, 300)),
		Details: map[string]interface{}{
			"syncLogId": e.log.ID,
			"eventType": e.log.EventType,
		},
		Timestamp: c.now(),
	})
}

// payloadOf keeps the raw body for replay. Bodies that are not JSON are
// wrapped as a JSON string so the column stays valid JSON.
func payloadOf(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return append(json.RawMessage(nil), body...)
	}
	b, _ := json.Marshal(string(body))
	return b
}

// truncate caps s at n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
