package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// ExtractWorkItem converts a raw ADO work item into the cached WorkItem shape.
// Every field is read by its exact flat key. Keys the cache has no column for
// are kept in Unrecognized.
func (m *Mapper) ExtractWorkItem(raw ADOWorkItem) types.WorkItem {
	f := raw.Fields
	wi := types.WorkItem{
		ID:                 raw.ID,
		URL:                raw.URL,
		Rev:                raw.Rev,
		Type:               str(f, FieldWorkItemType),
		Title:              str(f, FieldTitle),
		State:              str(f, FieldState),
		Reason:             str(f, FieldReason),
		AreaPath:           str(f, FieldAreaPath),
		AreaID:             intVal(f, FieldAreaID),
		IterationPath:      str(f, FieldIterationPath),
		IterationID:        intVal(f, FieldIterationID),
		Priority:           intPtr(f, FieldPriority),
		ValueArea:          str(f, FieldValueArea),
		Tags:               SplitTags(str(f, FieldTags)),
		Description:        str(f, FieldDescription),
		History:            str(f, FieldHistory),
		AcceptanceCriteria: str(f, FieldAcceptanceCriteria),
		AssignedTo:         identity(f, FieldAssignedTo),
		CreatedBy:          identity(f, FieldCreatedBy),
		ChangedBy:          identity(f, FieldChangedBy),
		CreatedDate:        timeVal(f, FieldCreatedDate),
		ChangedDate:        timeVal(f, FieldChangedDate),
		StateChangeDate:    timeVal(f, FieldStateChangeDate),
		ParentID:           intPtr(f, FieldParent),
		BoardColumn:        str(f, FieldBoardColumn),
		BoardColumnDone:    boolVal(f, FieldBoardColumnDone),
		CommentCount:       intVal(f, FieldCommentCount),
		Watermark:          intVal(f, FieldWatermark),
		StackRank:          floatPtr(f, FieldStackRank),
		Effort:             floatPtr(f, FieldEffort),
		StoryPoints:        floatPtr(f, FieldStoryPoints),
		BusinessValue:      intPtr(f, FieldBusinessValue),
		ProductBoardID:     str(f, m.fields.ProductBoardID),
	}
	if wi.Rev == 0 {
		wi.Rev = intVal(f, FieldRev)
	}

	for key, v := range f {
		if m.systemFields[key] {
			continue
		}
		// Kanban board columns are team-scoped: WEF_<guid>_Kanban.Column[.Done].
		if strings.HasSuffix(key, "_Kanban.Column") {
			if wi.BoardColumn == "" {
				wi.BoardColumn, _ = v.(string)
			}
			continue
		}
		if strings.HasSuffix(key, "_Kanban.Column.Done") {
			if b, ok := v.(bool); ok && !wi.BoardColumnDone {
				wi.BoardColumnDone = b
			}
			continue
		}
		if wi.Unrecognized == nil {
			wi.Unrecognized = make(map[string]any)
		}
		wi.Unrecognized[key] = v
	}

	wi.Relations = m.ExtractRelations(raw.ID, raw.Relations)
	for _, rel := range wi.Relations {
		if wi.ParentID == nil && rel.IsParent && rel.TargetID != nil {
			id := *rel.TargetID
			wi.ParentID = &id
		}
		if wi.ProductBoardID == "" && rel.IsCrossSystemLink {
			wi.ProductBoardID = rel.CrossSystemID
		}
	}

	if data, err := json.Marshal(raw); err == nil {
		wi.Raw = data
	}
	return wi
}

// ExtractRelations classifies raw relations of one source work item.
func (m *Mapper) ExtractRelations(sourceID int, raw []ADORelation) []types.Relation {
	if len(raw) == 0 {
		return nil
	}
	out := make([]types.Relation, 0, len(raw))
	for _, r := range raw {
		rel := types.Relation{
			SourceID:   sourceID,
			TargetURL:  r.URL,
			RelType:    r.Rel,
			Attributes: r.Attributes,
		}
		switch r.Rel {
		case RelParent:
			rel.IsParent = true
		case RelChild:
			rel.IsChild = true
		case RelRelated:
			rel.IsRelated = true
		case RelHyperlink:
			rel.IsHyperlink = true
			if id, ok := m.CrossSystemID(r.URL); ok {
				rel.IsCrossSystemLink = true
				rel.CrossSystemID = id
			}
		}
		if rel.IsParent || rel.IsChild || rel.IsRelated {
			if id, ok := WorkItemIDFromURL(r.URL); ok {
				rel.TargetID = &id
			}
		}
		out = append(out, rel)
	}
	return out
}

// WorkItemIDFromURL parses the numeric id from the last segment of a work item URL,
// e.g. https://dev.azure.com/org/_apis/wit/workItems/42.
func WorkItemIDFromURL(url string) (int, bool) {
	url = strings.TrimRight(url, "/")
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0, false
	}
	id, err := strconv.Atoi(url[idx+1:])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ExtractItem converts a raw ADO work item into the canonical item.
func (m *Mapper) ExtractItem(raw ADOWorkItem) types.Item {
	f := raw.Fields
	item := types.Item{
		Kind:           KindForADOType(str(f, FieldWorkItemType)),
		ADOID:          raw.ID,
		Title:          str(f, FieldTitle),
		Description:    str(f, FieldDescription),
		AreaPath:       str(f, FieldAreaPath),
		Tags:           SplitTags(str(f, FieldTags)),
		Notes:          str(f, FieldHistory),
		ProductBoardID: str(f, m.fields.ProductBoardID),
		Reach:          floatPtr(f, m.fields.Reach),
		Impact:         floatPtr(f, m.fields.Impact),
		Confidence:     floatPtr(f, m.fields.Confidence),
		Effort:         floatPtr(f, m.fields.Effort),
		Score:          floatPtr(f, m.fields.Score),
		Teams:          SplitTags(str(f, m.fields.Teams)),
	}
	if id := identity(f, FieldAssignedTo); !id.IsZero() {
		item.Owner = id.UniqueName
		if item.Owner == "" {
			item.Owner = id.DisplayName
		}
	}
	if name := str(f, m.fields.Status); name != "" {
		c, ok := Commitment(name)
		item.Status = c
		if !ok {
			item.Unrecognized = map[string]any{"status": name}
		}
	}
	for _, r := range raw.Relations {
		if r.Rel != RelHyperlink {
			continue
		}
		if id, ok := m.CrossSystemID(r.URL); ok {
			item.ProductBoardURL = r.URL
			if item.ProductBoardID == "" {
				item.ProductBoardID = id
			}
			break
		}
	}
	return item
}

// ItemFromFeature converts a ProductBoard feature and its custom field values
// into the canonical item.
func (m *Mapper) ItemFromFeature(f Feature, values CustomValues) types.Item {
	item := types.Item{
		Kind:           types.KindFeature,
		ProductBoardID: f.ID,
		Title:          f.Name,
		Description:    f.Description,
	}
	if f.Type == "subfeature" {
		item.Kind = types.KindStory
	}
	if f.Links != nil {
		item.ProductBoardURL = f.Links.HTML
	}
	if f.Owner != nil {
		item.Owner = f.Owner.Email
	}
	if f.Status != nil && f.Status.Name != "" {
		c, ok := Commitment(f.Status.Name)
		item.Status = c
		if !ok {
			item.Unrecognized = map[string]any{"status": f.Status.Name}
		}
	}

	cf := m.custom
	item.Reach = customFloat(values, cf.Reach)
	item.Impact = customFloat(values, cf.Impact)
	item.Confidence = customFloat(values, cf.Confidence)
	item.Effort = customFloat(values, cf.Effort)
	item.Score = customFloat(values, cf.Score)
	item.Teams = customList(values, cf.Teams)

	known := map[string]bool{cf.Reach: true, cf.Impact: true, cf.Confidence: true, cf.Effort: true, cf.Score: true, cf.Teams: true}
	for id, v := range values {
		if id == "" || known[id] {
			continue
		}
		if item.Unrecognized == nil {
			item.Unrecognized = make(map[string]any)
		}
		item.Unrecognized["customField:"+id] = v
	}
	return item
}

// KindForADOType maps an ADO work item type name to a hierarchy level.
func KindForADOType(t string) types.ItemKind {
	switch t {
	case types.ADOTypeEpic:
		return types.KindEpic
	case types.ADOTypeStory, "Product Backlog Item", "Requirement":
		return types.KindStory
	default:
		return types.KindFeature
	}
}

// SplitTags splits ADO's "a; b; c" list representation.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinTags renders a list in ADO's "a; b; c" representation.
func JoinTags(tags []string) string {
	return strings.Join(tags, "; ")
}

func str(f map[string]any, key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func floatPtr(f map[string]any, key string) *float64 {
	if key == "" {
		return nil
	}
	v, ok := toFloat(f[key])
	if !ok {
		return nil
	}
	return &v
}

func intPtr(f map[string]any, key string) *int {
	v, ok := toFloat(f[key])
	if !ok {
		return nil
	}
	i := int(v)
	return &i
}

func intVal(f map[string]any, key string) int {
	if p := intPtr(f, key); p != nil {
		return *p
	}
	return 0
}

func boolVal(f map[string]any, key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func timeVal(f map[string]any, key string) time.Time {
	s, ok := f[key].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// identity reads an ADO identity field, which is an object with displayName and
// uniqueName, or a plain "Display Name <unique@name>" string.
func identity(f map[string]any, key string) types.Identity {
	switch v := f[key].(type) {
	case map[string]any:
		var id types.Identity
		id.DisplayName, _ = v["displayName"].(string)
		id.UniqueName, _ = v["uniqueName"].(string)
		return id
	case string:
		if open := strings.LastIndex(v, "<"); open >= 0 && strings.HasSuffix(v, ">") {
			return types.Identity{
				DisplayName: strings.TrimSpace(v[:open]),
				UniqueName:  v[open+1 : len(v)-1],
			}
		}
		return types.Identity{UniqueName: v}
	}
	return types.Identity{}
}

func customFloat(values CustomValues, id string) *float64 {
	if id == "" {
		return nil
	}
	v, ok := toFloat(values[id])
	if !ok {
		return nil
	}
	return &v
}

// customList reads a multi-value custom field. ProductBoard returns dropdown
// options as objects with a label; plain strings are accepted too.
func customList(values CustomValues, id string) []string {
	if id == "" {
		return nil
	}
	switch v := values[id].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			switch o := e.(type) {
			case string:
				out = append(out, o)
			case map[string]any:
				if label, ok := o["label"].(string); ok {
					out = append(out, label)
				} else if name, ok := o["name"].(string); ok {
					out = append(out, name)
				}
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		return SplitTags(v)
	}
	return nil
}
