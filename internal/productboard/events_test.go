package productboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		wantType string
		family   Family
	}{
		{
			name:     "feature update with id",
			body:     `{"data":{"eventType":"feature.updated","id":"f-1","links":{"target":"https://api.productboard.com/features/f-1"}}}`,
			wantID:   "f-1",
			wantType: "feature.updated",
			family:   FamilyFeature,
		},
		{
			name:     "feature id from target",
			body:     `{"data":{"eventType":"feature.created","id":null,"links":{"target":"https://api.productboard.com/features/f-2"}}}`,
			wantID:   "f-2",
			wantType: "feature.created",
			family:   FamilyFeature,
		},
		{
			name:     "custom field value from hierarchy entity param",
			body:     `{"data":{"eventType":"hierarchy-entity.custom-field-value.updated","id":"cfv-9","links":{"target":"https://api.productboard.com/hierarchy-entities/custom-fields-values/value?customField.id=cf-reach&hierarchyEntity.id=f-3"}}}`,
			wantID:   "f-3",
			wantType: "hierarchy-entity.custom-field-value.updated",
			family:   FamilyCustomField,
		},
		{
			name:     "extra fields ignored",
			body:     `{"data":{"eventType":"feature.deleted","id":"f-4","extra":{"a":1}},"meta":{"x":true}}`,
			wantID:   "f-4",
			wantType: "feature.deleted",
			family:   FamilyFeature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ev.ItemID)
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.family, ev.Family)
			assert.Equal(t, "feature", ev.ItemType)
		})
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType string
	}{
		{name: "not json", body: `{"data":`},
		{name: "missing data", body: `{"eventType":"feature.updated"}`},
		{name: "data not object", body: `{"data":"feature.updated"}`},
		{name: "missing event type", body: `{"data":{"id":"f-1"}}`},
		{name: "empty event type", body: `{"data":{"eventType":"","id":"f-1"}}`},
		{name: "id wrong type", body: `{"data":{"eventType":"feature.updated","id":42}}`},
		{name: "unrecognized type", body: `{"data":{"eventType":"note.created","id":"n-1"}}`, wantType: "note.created"},
		{name: "feature without id", body: `{"data":{"eventType":"feature.updated"}}`, wantType: "feature.updated"},
		{
			name:     "custom field without entity param",
			body:     `{"data":{"eventType":"hierarchy-entity.custom-field-value.updated","id":"cfv-1","links":{"target":"https://api.productboard.com/hierarchy-entities/custom-fields-values/value?customField.id=cf-1"}}}`,
			wantType: "hierarchy-entity.custom-field-value.updated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.body))
			require.Error(t, err)
			var pe *types.ParseError
			assert.True(t, errors.As(err, &pe), "want ParseError, got %T", err)
			assert.Equal(t, tt.wantType, ev.Type)
		})
	}
}

func TestFeatureIDFromTarget(t *testing.T) {
	assert.Equal(t, "abc-1", featureIDFromTarget("https://api.productboard.com/features/abc-1"))
	assert.Equal(t, "", featureIDFromTarget("https://api.productboard.com/components/abc-1"))
	assert.Equal(t, "", featureIDFromTarget(""))
}
