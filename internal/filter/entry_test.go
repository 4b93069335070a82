package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyluth/auditor/internal/timespec"
	"github.com/dyluth/auditor/pkg/blackboard"
)

func TestCriteria_Matches(t *testing.T) {
	entry := &blackboard.Entry{
		Type:              blackboard.EntryTypeFinding,
		Content:           "password policy covered",
		TargetPerspective: "security",
		Turn:              3,
		CreatedAtMs:       5000,
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{name: "no filters", criteria: Criteria{}, want: true},
		{name: "inside window", criteria: Criteria{Window: timespec.Range{SinceMs: 4000, UntilMs: 6000}}, want: true},
		{name: "before since", criteria: Criteria{Window: timespec.Range{SinceMs: 5001}}, want: false},
		{name: "after until", criteria: Criteria{Window: timespec.Range{UntilMs: 4999}}, want: false},
		{name: "type glob", criteria: Criteria{TypeGlob: "fin*"}, want: true},
		{name: "type glob mismatch", criteria: Criteria{TypeGlob: "tool_*"}, want: false},
		{name: "malformed glob", criteria: Criteria{TypeGlob: "[fin"}, want: false},
		{name: "perspective", criteria: Criteria{Perspective: "security"}, want: true},
		{name: "other perspective", criteria: Criteria{Perspective: "user"}, want: false},
		{name: "turn", criteria: Criteria{Turn: 3}, want: true},
		{name: "other turn", criteria: Criteria{Turn: 2}, want: false},
		{name: "all combined", criteria: Criteria{TypeGlob: "finding", Perspective: "security", Turn: 3, Window: timespec.Range{SinceMs: 1}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(entry))
		})
	}
}

func TestCriteria_Apply(t *testing.T) {
	entries := []*blackboard.Entry{
		{Sequence: 1, Type: blackboard.EntryTypePlan, Turn: 1},
		{Sequence: 2, Type: blackboard.EntryTypeToolResult, Turn: 1},
		{Sequence: 3, Type: blackboard.EntryTypeFinding, Turn: 2},
	}

	var none *Criteria
	assert.Len(t, none.Apply(entries), 3)
	assert.False(t, (&Criteria{}).HasFilters())

	c := &Criteria{Turn: 1}
	assert.True(t, c.HasFilters())
	got := c.Apply(entries)
	if assert.Len(t, got, 2) {
		assert.Equal(t, int64(1), got[0].Sequence)
		assert.Equal(t, int64(2), got[1].Sequence)
	}
}
