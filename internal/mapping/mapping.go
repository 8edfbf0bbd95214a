// Package mapping converts between Azure DevOps work items, ProductBoard
// features and the canonical planning item.
//
// Round-trip safe fields: title, description, area path, tags, owner,
// ProductBoard id and URL, commitment status, teams and the RICE inputs and
// score. Notes travel through System.History, which Azure DevOps keeps as an
// append-only comment stream, so they are lossy and excluded from round trips.
package mapping

import (
	"fmt"
	"regexp"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Azure DevOps system field reference names.
const (
	FieldID                 = "System.Id"
	FieldWorkItemType       = "System.WorkItemType"
	FieldTitle              = "System.Title"
	FieldState              = "System.State"
	FieldReason             = "System.Reason"
	FieldAreaPath           = "System.AreaPath"
	FieldAreaID             = "System.AreaId"
	FieldIterationPath      = "System.IterationPath"
	FieldIterationID        = "System.IterationId"
	FieldTags               = "System.Tags"
	FieldDescription        = "System.Description"
	FieldHistory            = "System.History"
	FieldAssignedTo         = "System.AssignedTo"
	FieldCreatedBy          = "System.CreatedBy"
	FieldChangedBy          = "System.ChangedBy"
	FieldCreatedDate        = "System.CreatedDate"
	FieldChangedDate        = "System.ChangedDate"
	FieldParent             = "System.Parent"
	FieldBoardColumn        = "System.BoardColumn"
	FieldBoardColumnDone    = "System.BoardColumnDone"
	FieldCommentCount       = "System.CommentCount"
	FieldWatermark          = "System.Watermark"
	FieldTeamProject        = "System.TeamProject"
	FieldRev                = "System.Rev"
	FieldPriority           = "Microsoft.VSTS.Common.Priority"
	FieldValueArea          = "Microsoft.VSTS.Common.ValueArea"
	FieldAcceptanceCriteria = "Microsoft.VSTS.Common.AcceptanceCriteria"
	FieldStateChangeDate    = "Microsoft.VSTS.Common.StateChangeDate"
	FieldStackRank          = "Microsoft.VSTS.Common.StackRank"
	FieldBusinessValue      = "Microsoft.VSTS.Common.BusinessValue"
	FieldEffort             = "Microsoft.VSTS.Scheduling.Effort"
	FieldStoryPoints        = "Microsoft.VSTS.Scheduling.StoryPoints"
)

// Relation types.
const (
	RelParent    = "System.LinkTypes.Hierarchy-Reverse"
	RelChild     = "System.LinkTypes.Hierarchy-Forward"
	RelRelated   = "System.LinkTypes.Related"
	RelHyperlink = "Hyperlink"
)

// DefaultFeatureURLPattern matches ProductBoard feature UI and API URLs and
// captures the feature id.
const DefaultFeatureURLPattern = `productboard\.com/(?:.*/)?features?/([A-Za-z0-9-]+)`

// DefaultADOFields returns the custom field reference names used when none are configured.
func DefaultADOFields() types.ADOFieldConfig {
	return types.ADOFieldConfig{
		ProductBoardID: "Custom.ProductBoardID",
		Score:          "Custom.RICEScore",
		Reach:          "Custom.Reach",
		Impact:         "Custom.Impact",
		Confidence:     "Custom.Confidence",
		Effort:         "Custom.RICEEffort",
		Teams:          "Custom.Teams",
		Status:         "Custom.ProductBoardStatus",
	}
}

// Config configures a Mapper.
type Config struct {
	Fields            types.ADOFieldConfig
	CustomFields      types.ProductBoardCustomFields
	FeatureURLPattern string
	DefaultAreaPath   string
	DefaultType       string
}

// Mapper holds the field layout shared by extraction and projection.
type Mapper struct {
	fields          types.ADOFieldConfig
	custom          types.ProductBoardCustomFields
	featureURL      *regexp.Regexp
	defaultAreaPath string
	defaultType     string
	systemFields    map[string]bool
}

// New creates a Mapper. Unset field names fall back to DefaultADOFields.
func New(cfg Config) (*Mapper, error) {
	pattern := cfg.FeatureURLPattern
	if pattern == "" {
		pattern = DefaultFeatureURLPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling feature URL pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("feature URL pattern %q must capture the feature id", pattern)
	}

	f := cfg.Fields
	d := DefaultADOFields()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&f.ProductBoardID, d.ProductBoardID)
	fill(&f.Score, d.Score)
	fill(&f.Reach, d.Reach)
	fill(&f.Impact, d.Impact)
	fill(&f.Confidence, d.Confidence)
	fill(&f.Effort, d.Effort)
	fill(&f.Teams, d.Teams)
	fill(&f.Status, d.Status)

	defaultType := cfg.DefaultType
	if defaultType == "" {
		defaultType = types.ADOTypeFeature
	}

	m := &Mapper{
		fields:          f,
		custom:          cfg.CustomFields,
		featureURL:      re,
		defaultAreaPath: cfg.DefaultAreaPath,
		defaultType:     defaultType,
	}
	m.systemFields = map[string]bool{
		FieldID: true, FieldRev: true, FieldTeamProject: true,
		FieldWorkItemType: true, FieldTitle: true, FieldState: true, FieldReason: true,
		FieldAreaPath: true, FieldAreaID: true, FieldIterationPath: true, FieldIterationID: true,
		FieldTags: true, FieldDescription: true, FieldHistory: true,
		FieldAssignedTo: true, FieldCreatedBy: true, FieldChangedBy: true,
		FieldCreatedDate: true, FieldChangedDate: true, FieldStateChangeDate: true,
		FieldParent: true, FieldBoardColumn: true, FieldBoardColumnDone: true,
		FieldCommentCount: true, FieldWatermark: true, FieldPriority: true, FieldValueArea: true,
		FieldAcceptanceCriteria: true, FieldStackRank: true, FieldBusinessValue: true,
		FieldEffort: true, FieldStoryPoints: true, f.ProductBoardID: true,
	}
	return m, nil
}

// MustNew is New for static configurations; it panics on an invalid pattern.
func MustNew(cfg Config) *Mapper {
	m, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// Fields returns the effective ADO custom field names.
func (m *Mapper) Fields() types.ADOFieldConfig { return m.fields }

// DefaultType returns the ADO work item type used for new items.
func (m *Mapper) DefaultType() string { return m.defaultType }

// CrossSystemID extracts a ProductBoard feature id from a URL.
func (m *Mapper) CrossSystemID(url string) (string, bool) {
	match := m.featureURL.FindStringSubmatch(url)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}
