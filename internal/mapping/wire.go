package mapping

import "time"

// ADOWorkItem is a work item as Azure DevOps returns it. Field keys are flat
// reference names such as "System.Title"; they are never nested objects.
type ADOWorkItem struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev"`
	URL       string         `json:"url,omitempty"`
	Fields    map[string]any `json:"fields"`
	Relations []ADORelation  `json:"relations,omitempty"`
}

// ADORelation is one entry of a work item's relations array.
type ADORelation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// PatchOp is one JSON Patch operation in an ADO create/update request.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Feature is a ProductBoard feature as read from and written to the v1 API.
type Feature struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"` // "feature" or "subfeature"
	Status      *FeatureStatus `json:"status,omitempty"`
	Parent      *FeatureParent `json:"parent,omitempty"`
	Owner       *FeatureOwner  `json:"owner,omitempty"`
	Links       *FeatureLinks  `json:"links,omitempty"`
	Archived    bool           `json:"archived,omitempty"`
	CreatedAt   *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
}

// FeatureStatus is a ProductBoard workflow status.
type FeatureStatus struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// FeatureParent points at the containing feature or component.
type FeatureParent struct {
	Feature   *EntityRef `json:"feature,omitempty"`
	Component *EntityRef `json:"component,omitempty"`
	Product   *EntityRef `json:"product,omitempty"`
}

// EntityRef is a bare ProductBoard entity reference.
type EntityRef struct {
	ID string `json:"id"`
}

// FeatureOwner identifies the feature owner.
type FeatureOwner struct {
	Email string `json:"email"`
}

// FeatureLinks carries the API and UI URLs of a feature.
type FeatureLinks struct {
	Self string `json:"self,omitempty"`
	HTML string `json:"html,omitempty"`
}

// CustomValues holds ProductBoard custom field values keyed by custom field id.
type CustomValues map[string]any
