// Package types defines the shared domain types for the ProductBoard to Azure DevOps sync engine.
package types

import (
	"encoding/json"
	"time"
)

// Identity is a person reference as Azure DevOps reports it on identity fields.
type Identity struct {
	DisplayName string `json:"displayName,omitempty"`
	UniqueName  string `json:"uniqueName,omitempty"`
}

// IsZero reports whether neither name is set.
func (i Identity) IsZero() bool {
	return i.DisplayName == "" && i.UniqueName == ""
}

// WorkItem is a cached Azure DevOps work item.
type WorkItem struct {
	ID                 int             `json:"id"`
	URL                string          `json:"url,omitempty"`
	Rev                int             `json:"rev"`
	Type               string          `json:"type"`
	Title              string          `json:"title"`
	State              string          `json:"state,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	AreaPath           string          `json:"areaPath,omitempty"`
	AreaID             int             `json:"areaId,omitempty"`
	IterationPath      string          `json:"iterationPath,omitempty"`
	IterationID        int             `json:"iterationId,omitempty"`
	Priority           *int            `json:"priority,omitempty"`
	ValueArea          string          `json:"valueArea,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	Description        string          `json:"description,omitempty"`
	History            string          `json:"history,omitempty"`
	AcceptanceCriteria string          `json:"acceptanceCriteria,omitempty"`
	AssignedTo         Identity        `json:"assignedTo"`
	CreatedBy          Identity        `json:"createdBy"`
	ChangedBy          Identity        `json:"changedBy"`
	CreatedDate        time.Time       `json:"createdDate"`
	ChangedDate        time.Time       `json:"changedDate"`
	StateChangeDate    time.Time       `json:"stateChangeDate"`
	ParentID           *int            `json:"parentId,omitempty"`
	BoardColumn        string          `json:"boardColumn,omitempty"`
	BoardColumnDone    bool            `json:"boardColumnDone,omitempty"`
	CommentCount       int             `json:"commentCount,omitempty"`
	Watermark          int             `json:"watermark,omitempty"`
	StackRank          *float64        `json:"stackRank,omitempty"`
	Effort             *float64        `json:"effort,omitempty"`
	StoryPoints        *float64        `json:"storyPoints,omitempty"`
	BusinessValue      *int            `json:"businessValue,omitempty"`
	ProductBoardID     string          `json:"productboardId,omitempty"`
	Relations          []Relation      `json:"relations,omitempty"`
	Unrecognized       map[string]any  `json:"unrecognized,omitempty"`
	Raw                json.RawMessage `json:"raw,omitempty"`
	LastSyncedAt       time.Time       `json:"lastSyncedAt"`
}

// Relation is a directed link from a work item to another item or URL.
type Relation struct {
	SourceID          int            `json:"sourceId"`
	TargetID          *int           `json:"targetId,omitempty"`
	TargetURL         string         `json:"targetUrl"`
	RelType           string         `json:"relType"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	IsParent          bool           `json:"isParent"`
	IsChild           bool           `json:"isChild"`
	IsRelated         bool           `json:"isRelated"`
	IsHyperlink       bool           `json:"isHyperlink"`
	IsCrossSystemLink bool           `json:"isCrossSystemLink"`
	CrossSystemID     string         `json:"crossSystemId,omitempty"`
}

// AreaPath is a flattened node of the ADO area classification tree.
type AreaPath struct {
	ID            int       `json:"id"`
	Identifier    string    `json:"identifier,omitempty"`
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	StructureType string    `json:"structureType,omitempty"`
	HasChildren   bool      `json:"hasChildren"`
	LastSyncedAt  time.Time `json:"lastSyncedAt"`
}

// Team is an ADO project team.
type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url,omitempty"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// WorkItemType is an ADO work item type definition, keyed by name.
type WorkItemType struct {
	Name          string    `json:"name"`
	ReferenceName string    `json:"referenceName,omitempty"`
	Description   string    `json:"description,omitempty"`
	Color         string    `json:"color,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	IsDisabled    bool      `json:"isDisabled"`
	LastSyncedAt  time.Time `json:"lastSyncedAt"`
}

// Item is the canonical, system-neutral representation of a planning item.
// Notes is a merged free-text field and does not survive a round trip intact.
type Item struct {
	Kind            ItemKind         `json:"kind"`
	ProductBoardID  string           `json:"productboardId,omitempty"`
	ProductBoardURL string           `json:"productboardUrl,omitempty"`
	ADOID           int              `json:"adoId,omitempty"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Status          CommitmentStatus `json:"status,omitempty"`
	Owner           string           `json:"owner,omitempty"`
	AreaPath        string           `json:"areaPath,omitempty"`
	Reach           *float64         `json:"reach,omitempty"`
	Impact          *float64         `json:"impact,omitempty"`
	Confidence      *float64         `json:"confidence,omitempty"`
	Effort          *float64         `json:"effort,omitempty"`
	Score           *float64         `json:"score,omitempty"`
	Teams           []string         `json:"teams,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Unrecognized    map[string]any   `json:"unrecognized,omitempty"`
}
