// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	WebhookEventsTotal = expvar.NewInt("webhook_events_total")
	WebhookRejected    = expvar.NewInt("webhook_rejected")
	WebhookIgnored     = expvar.NewInt("webhook_ignored")
	FetchErrors        = expvar.NewInt("fetch_errors")
	SkippedStatusCheck = expvar.NewInt("skipped_status_check")
	DryRuns            = expvar.NewInt("dry_runs")
	ADOCreated         = expvar.NewInt("ado_created")
	ADOUpdated         = expvar.NewInt("ado_updated")
	ADOErrors          = expvar.NewInt("ado_errors")
	MappingWriteErrors = expvar.NewInt("mapping_write_errors")
	LockErrors         = expvar.NewInt("lock_errors")
	CacheHits          = expvar.NewInt("cache_hits")
	CacheMisses        = expvar.NewInt("cache_misses")
	CacheFallbacks     = expvar.NewInt("cache_fallbacks")
	CacheWriteErrors   = expvar.NewInt("cache_write_errors")
	BulkSyncRuns       = expvar.NewInt("bulk_sync_runs")
	BulkSyncFailures   = expvar.NewInt("bulk_sync_failures")
	AlertsDispatched   = expvar.NewInt("alerts_dispatched")
	AlertsFailed       = expvar.NewInt("alerts_failed")
	Exports            = expvar.NewInt("exports")
	ExportErrors       = expvar.NewInt("export_errors")
	CatchUpRuns        = expvar.NewInt("catchup_runs")
)
