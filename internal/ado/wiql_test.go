package ado

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithChangedSince(t *testing.T) {
	since := time.Date(2025, 6, 1, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	pred := "[System.ChangedDate] >= '2025-06-01T07:30:00Z'"

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "no where, no order by",
			query: "SELECT [System.Id] FROM WorkItems",
			want:  "SELECT [System.Id] FROM WorkItems WHERE " + pred,
		},
		{
			name:  "no where, order by",
			query: "SELECT [System.Id] FROM WorkItems ORDER BY [System.Id]",
			want:  "SELECT [System.Id] FROM WorkItems WHERE " + pred + " ORDER BY [System.Id]",
		},
		{
			name:  "where, no order by",
			query: "SELECT [System.Id] FROM WorkItems WHERE [System.WorkItemType] = 'Epic'",
			want:  "SELECT [System.Id] FROM WorkItems WHERE ([System.WorkItemType] = 'Epic') AND " + pred,
		},
		{
			name:  "where and order by",
			query: "SELECT [System.Id] FROM WorkItems WHERE [System.State] = 'New' OR [System.State] = 'Active' ORDER BY [System.ChangedDate] DESC",
			want:  "SELECT [System.Id] FROM WorkItems WHERE ([System.State] = 'New' OR [System.State] = 'Active') AND " + pred + " ORDER BY [System.ChangedDate] DESC",
		},
		{
			name:  "lower case keywords",
			query: "select [System.Id] from WorkItems where [System.Title] <> '' order  by [System.Id]",
			want:  "select [System.Id] from WorkItems where ([System.Title] <> '') AND " + pred + " order  by [System.Id]",
		},
		{
			name:  "keywords inside a literal",
			query: "SELECT [System.Id] FROM WorkItems WHERE [System.Title] = 'sort order by priority' ORDER BY [System.Id]",
			want:  "SELECT [System.Id] FROM WorkItems WHERE ([System.Title] = 'sort order by priority') AND " + pred + " ORDER BY [System.Id]",
		},
		{
			name:  "escaped quote inside a literal",
			query: "SELECT [System.Id] FROM WorkItems WHERE [System.Title] = 'it''s where we order by' ORDER BY [System.Id]",
			want:  "SELECT [System.Id] FROM WorkItems WHERE ([System.Title] = 'it''s where we order by') AND " + pred + " ORDER BY [System.Id]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithChangedSince(tt.query, since))
		})
	}
}

func TestWithChangedSince_ZeroIsUnbounded(t *testing.T) {
	q := "SELECT [System.Id] FROM WorkItems"
	assert.Equal(t, q, WithChangedSince(q, time.Time{}))
}

func TestMaskLiterals(t *testing.T) {
	q := "a = 'x where y' AND b = 'O''Brien' AND c = ''"
	masked := maskLiterals(q)
	assert.Len(t, masked, len(q))
	assert.Equal(t, "a = 'xxxxxxxxx' AND b = 'xxxxxxxx' AND c = ''", masked)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'O''Brien'", quote("O'Brien"))
}
