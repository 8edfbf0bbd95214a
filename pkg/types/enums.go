package types

// ItemKind is the hierarchy level of a planning item.
type ItemKind string

// ItemKind values enumerate the three supported hierarchy levels.
const (
	KindEpic    ItemKind = "epic"
	KindFeature ItemKind = "feature"
	KindStory   ItemKind = "story"
)

// ADO work item type names for each hierarchy level.
const (
	ADOTypeEpic    = "Epic"
	ADOTypeFeature = "Feature"
	ADOTypeStory   = "User Story"
)

// ADOType returns the ADO work item type name for the kind.
func (k ItemKind) ADOType() string {
	switch k {
	case KindEpic:
		return ADOTypeEpic
	case KindStory:
		return ADOTypeStory
	default:
		return ADOTypeFeature
	}
}

// EntityType names a synced collection for sync history tracking.
type EntityType string

// EntityType values enumerate the collections the bulk sync maintains.
const (
	EntityWorkItemTypes EntityType = "work_item_types"
	EntityAreaPaths     EntityType = "area_paths"
	EntityTeams         EntityType = "teams"
	EntityEpics         EntityType = "epics"
	EntityFeatures      EntityType = "features"
	EntityStories       EntityType = "stories"
)

// SyncStatus is the outcome recorded in sync history.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
	SyncPartial SyncStatus = "partial"
)

// MappingStatus tracks the state of a cross-system mapping row.
type MappingStatus string

const (
	// MappingTracking rows only carry a cached status; no ADO item exists yet.
	MappingTracking MappingStatus = "tracking"
	// MappingPending rows were written just before an ADO create call.
	MappingPending MappingStatus = "pending"
	MappingSynced  MappingStatus = "synced"
	MappingError   MappingStatus = "error"
)

// SyncLogStatus is a webhook controller state persisted in the audit log.
type SyncLogStatus string

// SyncLogStatus values follow the controller's progression for one event.
const (
	LogReceived           SyncLogStatus = "received"
	LogIgnored            SyncLogStatus = "ignored"
	LogFetched            SyncLogStatus = "fetched"
	LogFetchError         SyncLogStatus = "fetch_error"
	LogSkippedStatusCheck SyncLogStatus = "skipped_status_check"
	LogProcessingRequired SyncLogStatus = "processing_required"
	LogDryRun             SyncLogStatus = "dry_run"
	LogADOCreated         SyncLogStatus = "ado_created"
	LogADOUpdated         SyncLogStatus = "ado_updated"
	LogADOError           SyncLogStatus = "ado_error"
	LogMappingUpdateError SyncLogStatus = "mapping_update_error"
	LogLockError          SyncLogStatus = "lock_error"
)

// CommitmentStatus is the local commitment state of a planning item.
type CommitmentStatus string

const (
	CommitmentNone          CommitmentStatus = "not_committed"
	CommitmentExploring     CommitmentStatus = "exploring"
	CommitmentCommitted     CommitmentStatus = "committed"
	CommitmentInDevelopment CommitmentStatus = "in_development"
	CommitmentReleased      CommitmentStatus = "released"
)

// AlertType defines the alert sink type.
type AlertType string

const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)
