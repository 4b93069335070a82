// Package filter selects blackboard entries for display.
package filter

import (
	"path/filepath"

	"github.com/dyluth/auditor/internal/timespec"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// Criteria defines filtering criteria for blackboard entries.
// All filters are ANDed together; zero values match everything.
type Criteria struct {
	Window      timespec.Range
	TypeGlob    string // Glob over the entry type, e.g. "f*" or "tool_*"
	Perspective string // Exact match on target_perspective
	Turn        int    // Exact turn, 0 = any
}

// Matches returns true if the entry matches all filter criteria.
func (c *Criteria) Matches(e *blackboard.Entry) bool {
	if !c.Window.Contains(e.CreatedAtMs) {
		return false
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(e.Type))
		if err != nil || !matched {
			return false
		}
	}

	if c.Perspective != "" && e.TargetPerspective != c.Perspective {
		return false
	}

	if c.Turn > 0 && e.Turn != c.Turn {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.Window != (timespec.Range{}) ||
		c.TypeGlob != "" ||
		c.Perspective != "" ||
		c.Turn > 0
}

// Apply returns the entries matching c, preserving order.
func (c *Criteria) Apply(entries []*blackboard.Entry) []*blackboard.Entry {
	if c == nil || !c.HasFilters() {
		return entries
	}
	out := make([]*blackboard.Entry, 0, len(entries))
	for _, e := range entries {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
