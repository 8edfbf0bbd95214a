package types

import (
	"encoding/json"
	"time"
)

// Mapping links a ProductBoard feature to an ADO work item and carries the
// last ProductBoard status seen for it. At most one row exists per PSID.
type Mapping struct {
	PSID              string        `json:"psId"`
	WTSID             int           `json:"wtsId,omitempty"`
	WTSURL            string        `json:"wtsUrl,omitempty"`
	LastKnownPSStatus string        `json:"lastKnownPsStatus,omitempty"`
	LastSyncedAt      time.Time     `json:"lastSyncedAt"`
	SyncStatus        MappingStatus `json:"syncStatus"`
	SyncError         string        `json:"syncError,omitempty"`
}

// HasRemote reports whether the mapping points at an existing ADO work item.
func (m *Mapping) HasRemote() bool {
	return m != nil && m.WTSID > 0
}

// SyncHistoryRecord is the incremental sync watermark for one entity type.
type SyncHistoryRecord struct {
	EntityType   EntityType `json:"entityType"`
	LastSyncTime time.Time  `json:"lastSyncTime"`
	ItemsSynced  int        `json:"itemsSynced"`
	Status       SyncStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// SyncLog is the audit row for one inbound webhook event. It is created on
// receipt and updated in place as the controller advances.
type SyncLog struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	ItemID    string          `json:"itemId,omitempty"`
	ItemType  string          `json:"itemType,omitempty"`
	Status    SyncLogStatus   `json:"status"`
	Details   string          `json:"details,omitempty"`
	ADOID     int             `json:"adoId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Alert represents an operator alert to be dispatched.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	Category  string                 `json:"category,omitempty"`
	ItemID    string                 `json:"itemId,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
