package mapping

import (
	"strings"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// ADOPatch projects a canonical item onto an ADO JSON Patch document. Optional
// fields without a value produce no operation at all. The score is derived
// from the RICE inputs when the item carries none. On create, a Hyperlink
// relation back to the ProductBoard feature is appended.
func (m *Mapper) ADOPatch(item types.Item, create bool) []PatchOp {
	var ops []PatchOp
	add := func(field string, v any) {
		ops = append(ops, PatchOp{Op: "add", Path: "/fields/" + field, Value: v})
	}

	add(FieldTitle, item.Title)
	if item.Description != "" {
		add(FieldDescription, item.Description)
	}
	area := item.AreaPath
	if area == "" {
		area = m.defaultAreaPath
	}
	if area != "" {
		add(FieldAreaPath, area)
	}
	if len(item.Tags) > 0 {
		add(FieldTags, JoinTags(item.Tags))
	}
	if item.Owner != "" {
		add(FieldAssignedTo, item.Owner)
	}
	if item.ProductBoardID != "" {
		add(m.fields.ProductBoardID, item.ProductBoardID)
	}
	if item.Status != "" {
		add(m.fields.Status, StatusName(item.Status))
	}
	if item.Reach != nil {
		add(m.fields.Reach, *item.Reach)
	}
	if item.Impact != nil {
		add(m.fields.Impact, *item.Impact)
	}
	if item.Confidence != nil {
		add(m.fields.Confidence, *item.Confidence)
	}
	if item.Effort != nil {
		add(m.fields.Effort, *item.Effort)
	}
	if score := m.scoreFor(item); score != nil {
		add(m.fields.Score, *score)
	}
	if len(item.Teams) > 0 {
		add(m.fields.Teams, JoinTags(item.Teams))
	}
	if item.Notes != "" {
		add(FieldHistory, item.Notes)
	}

	if create && item.ProductBoardURL != "" {
		ops = append(ops, PatchOp{
			Op:   "add",
			Path: "/relations/-",
			Value: map[string]any{
				"rel":        RelHyperlink,
				"url":        item.ProductBoardURL,
				"attributes": map[string]any{"comment": "ProductBoard feature"},
			},
		})
	}
	return ops
}

func (m *Mapper) scoreFor(item types.Item) *float64 {
	if item.Score != nil {
		return item.Score
	}
	if s, ok := RICEScore(item.Reach, item.Impact, item.Confidence, item.Effort); ok {
		return &s
	}
	return nil
}

// Feature projects a canonical item onto a ProductBoard feature write payload
// and the custom field values to set alongside it. Teams are sent as an array.
func (m *Mapper) Feature(item types.Item) (Feature, CustomValues) {
	f := Feature{
		ID:          item.ProductBoardID,
		Name:        item.Title,
		Description: item.Description,
		Type:        "feature",
	}
	if item.Kind == types.KindStory {
		f.Type = "subfeature"
	}
	if item.Status != "" {
		f.Status = &FeatureStatus{Name: StatusName(item.Status)}
	}
	if item.Owner != "" {
		f.Owner = &FeatureOwner{Email: item.Owner}
	}
	if item.ProductBoardURL != "" {
		f.Links = &FeatureLinks{HTML: item.ProductBoardURL}
	}

	values := CustomValues{}
	set := func(id string, v *float64) {
		if id != "" && v != nil {
			values[id] = *v
		}
	}
	cf := m.custom
	set(cf.Reach, item.Reach)
	set(cf.Impact, item.Impact)
	set(cf.Confidence, item.Confidence)
	set(cf.Effort, item.Effort)
	set(cf.Score, m.scoreFor(item))
	if cf.Teams != "" && len(item.Teams) > 0 {
		values[cf.Teams] = append([]string(nil), item.Teams...)
	}
	if len(values) == 0 {
		values = nil
	}
	return f, values
}

// ApplyPatch materializes a JSON Patch document onto an empty work item of the
// given type, the way ADO does for a create request.
func ApplyPatch(id int, workItemType string, ops []PatchOp) ADOWorkItem {
	wi := ADOWorkItem{ID: id, Rev: 1, Fields: map[string]any{}}
	if workItemType != "" {
		wi.Fields[FieldWorkItemType] = workItemType
	}
	return MergePatch(wi, ops)
}

// MergePatch applies field and relation-append ops to a copy of wi.
func MergePatch(wi ADOWorkItem, ops []PatchOp) ADOWorkItem {
	fields := make(map[string]any, len(wi.Fields)+len(ops))
	for k, v := range wi.Fields {
		fields[k] = v
	}
	relations := append([]ADORelation(nil), wi.Relations...)

	for _, op := range ops {
		switch {
		case strings.HasPrefix(op.Path, "/fields/"):
			key := strings.TrimPrefix(op.Path, "/fields/")
			if op.Op == "remove" {
				delete(fields, key)
				continue
			}
			fields[key] = op.Value
		case op.Path == "/relations/-":
			v, ok := op.Value.(map[string]any)
			if !ok {
				continue
			}
			rel := ADORelation{}
			rel.Rel, _ = v["rel"].(string)
			rel.URL, _ = v["url"].(string)
			rel.Attributes, _ = v["attributes"].(map[string]any)
			relations = append(relations, rel)
		}
	}
	wi.Fields = fields
	wi.Relations = relations
	return wi
}
