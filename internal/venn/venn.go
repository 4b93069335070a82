// Package venn validates and summarizes the terminal three-way classification
// of an audit run.
//
// A result is complete when every dataset-1 element is classified exactly once
// across uniqueToD1 and aligned, and every dataset-2 element exactly once
// across uniqueToD2 and aligned. Several aligned entries may name the same
// element (many-to-many alignment), but an element may never sit in both its
// unique list and aligned, nor twice in its unique list.
package venn

import (
	"fmt"
	"math"
	"strings"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// Resolver maps a loose reference to a canonical element ID.
type Resolver interface {
	Resolve(candidate string, scope resolver.Scope) (string, error)
}

// Universe is the full set of elements the result must classify.
type Universe struct {
	D1 []*blackboard.Element
	D2 []*blackboard.Element
}

func (u Universe) elements(d blackboard.Dataset) []*blackboard.Element {
	if d == blackboard.Dataset2 {
		return u.D2
	}
	return u.D1
}

// Violations lists every reason a result is not complete.
// IDs are canonical element IDs; Unresolved holds human-readable descriptions.
type Violations struct {
	MissingD1    []string
	MissingD2    []string
	DuplicatedD1 []string
	DuplicatedD2 []string
	Unresolved   []string

	labels map[string]string
}

// Empty reports whether the result satisfied every completeness rule.
func (v *Violations) Empty() bool {
	return len(v.MissingD1) == 0 && len(v.MissingD2) == 0 &&
		len(v.DuplicatedD1) == 0 && len(v.DuplicatedD2) == 0 &&
		len(v.Unresolved) == 0
}

// IDs returns every offending element ID, missing first.
func (v *Violations) IDs() []string {
	var ids []string
	ids = append(ids, v.MissingD1...)
	ids = append(ids, v.MissingD2...)
	ids = append(ids, v.DuplicatedD1...)
	ids = append(ids, v.DuplicatedD2...)
	return ids
}

func (v *Violations) Error() string {
	var parts []string
	add := func(what string, ids []string) {
		if len(ids) == 0 {
			return
		}
		named := make([]string, len(ids))
		for i, id := range ids {
			named[i] = v.describe(id)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", what, strings.Join(named, ", ")))
	}
	add("dataset1 elements not classified", v.MissingD1)
	add("dataset2 elements not classified", v.MissingD2)
	add("dataset1 elements classified more than once", v.DuplicatedD1)
	add("dataset2 elements classified more than once", v.DuplicatedD2)
	if len(v.Unresolved) > 0 {
		parts = append(parts, "unresolved entries: "+strings.Join(v.Unresolved, "; "))
	}
	return "venn result is incomplete: " + strings.Join(parts, "; ")
}

func (v *Violations) describe(id string) string {
	if label := v.labels[id]; label != "" {
		return fmt.Sprintf("%s (%s)", id, label)
	}
	return id
}

type tally struct {
	unique  int
	aligned int
}

// Validate checks result against the universe and fills in the resolved
// D1ElementID/D2ElementID of every entry. A nil or empty *Violations means
// the result is complete.
func Validate(result *blackboard.VennResult, u Universe, r Resolver) *Violations {
	v := &Violations{labels: make(map[string]string)}
	counts := map[blackboard.Dataset]map[string]*tally{
		blackboard.Dataset1: make(map[string]*tally),
		blackboard.Dataset2: make(map[string]*tally),
	}
	for _, d := range []blackboard.Dataset{blackboard.Dataset1, blackboard.Dataset2} {
		for _, e := range u.elements(d) {
			counts[d][e.ID] = &tally{}
			v.labels[e.ID] = e.Label
		}
	}

	byLabel := labelIndex(u)
	known := func(d blackboard.Dataset, id string, ok bool) bool {
		return ok && counts[d][id] != nil
	}

	for i := range result.UniqueToD1 {
		entry := &result.UniqueToD1[i]
		id, ok := resolveEntry(r, byLabel, blackboard.Dataset1, "", entry.SourceElement, entry)
		if !known(blackboard.Dataset1, id, ok) {
			v.Unresolved = append(v.Unresolved, fmt.Sprintf("uniqueToD1[%d] %s", i, entryName(entry)))
			continue
		}
		entry.D1ElementID = id
		counts[blackboard.Dataset1][id].unique++
	}

	for i := range result.UniqueToD2 {
		entry := &result.UniqueToD2[i]
		id, ok := resolveEntry(r, byLabel, blackboard.Dataset2, "", entry.TargetElement, entry)
		if !known(blackboard.Dataset2, id, ok) {
			v.Unresolved = append(v.Unresolved, fmt.Sprintf("uniqueToD2[%d] %s", i, entryName(entry)))
			continue
		}
		entry.D2ElementID = id
		counts[blackboard.Dataset2][id].unique++
	}

	for i := range result.Aligned {
		entry := &result.Aligned[i]
		d1, ok1 := resolveEntry(r, byLabel, blackboard.Dataset1, entry.SourceElement, "", entry)
		d2, ok2 := resolveEntry(r, byLabel, blackboard.Dataset2, entry.TargetElement, "", entry)
		ok1, ok2 = known(blackboard.Dataset1, d1, ok1), known(blackboard.Dataset2, d2, ok2)
		if !ok1 || !ok2 {
			side := "dataset1"
			if ok1 {
				side = "dataset2"
			}
			v.Unresolved = append(v.Unresolved, fmt.Sprintf("aligned[%d] %s has no %s element", i, entryName(entry), side))
			continue
		}
		entry.D1ElementID = d1
		entry.D2ElementID = d2
		counts[blackboard.Dataset1][d1].aligned++
		counts[blackboard.Dataset2][d2].aligned++
	}

	for _, d := range []blackboard.Dataset{blackboard.Dataset1, blackboard.Dataset2} {
		for _, e := range u.elements(d) {
			t := counts[d][e.ID]
			missing := t.unique == 0 && t.aligned == 0
			duplicated := t.unique > 1 || (t.unique == 1 && t.aligned > 0)
			switch {
			case missing && d == blackboard.Dataset1:
				v.MissingD1 = append(v.MissingD1, e.ID)
			case missing:
				v.MissingD2 = append(v.MissingD2, e.ID)
			case duplicated && d == blackboard.Dataset1:
				v.DuplicatedD1 = append(v.DuplicatedD1, e.ID)
			case duplicated:
				v.DuplicatedD2 = append(v.DuplicatedD2, e.ID)
			}
		}
	}

	return v
}

func entryName(e *blackboard.VennEntry) string {
	if e.Label != "" {
		return fmt.Sprintf("%q", e.Label)
	}
	return fmt.Sprintf("%q", e.ID)
}

// resolveEntry tries, in order, the explicit reference, the entry ID, the
// entry label and the fallback reference. The explicit reference is
// authoritative when present. Unique entries pass their element field as
// the fallback.
func resolveEntry(r Resolver, byLabel map[blackboard.Dataset]map[string][]string, d blackboard.Dataset, explicit, fallback string, e *blackboard.VennEntry) (string, bool) {
	if strings.TrimSpace(explicit) != "" {
		return resolveRef(r, byLabel, d, explicit)
	}
	for _, ref := range []string{e.ID, e.Label, fallback} {
		if id, ok := resolveRef(r, byLabel, d, ref); ok {
			return id, true
		}
	}
	return "", false
}

func resolveRef(r Resolver, byLabel map[blackboard.Dataset]map[string][]string, d blackboard.Dataset, ref string) (string, bool) {
	if strings.TrimSpace(ref) == "" {
		return "", false
	}
	if id, err := r.Resolve(ref, resolver.InDataset(d)); err == nil {
		return id, true
	}
	if ids := byLabel[d][normalize(ref)]; len(ids) == 1 {
		return ids[0], true
	}
	return "", false
}

func labelIndex(u Universe) map[blackboard.Dataset]map[string][]string {
	idx := map[blackboard.Dataset]map[string][]string{
		blackboard.Dataset1: make(map[string][]string),
		blackboard.Dataset2: make(map[string][]string),
	}
	for _, d := range []blackboard.Dataset{blackboard.Dataset1, blackboard.Dataset2} {
		for _, e := range u.elements(d) {
			key := normalize(e.Label)
			if key != "" {
				idx[d][key] = append(idx[d][key], e.ID)
			}
		}
	}
	return idx
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Summarize derives the coverage metrics from a validated result.
//
//	totalD1Coverage = aligned D1 elements / |D1|
//	totalD2Coverage = aligned D2 elements / |D2|
//	alignmentScore  = (aligned D1 + aligned D2) / (|D1| + |D2|)
//
// All values are percentages rounded to one decimal. An empty denominator yields 0.
func Summarize(result *blackboard.VennResult, u Universe) blackboard.VennSummary {
	d1 := make(map[string]bool)
	d2 := make(map[string]bool)
	for _, e := range result.Aligned {
		if e.D1ElementID != "" {
			d1[e.D1ElementID] = true
		}
		if e.D2ElementID != "" {
			d2[e.D2ElementID] = true
		}
	}

	return blackboard.VennSummary{
		TotalD1Coverage: pct(len(d1), len(u.D1)),
		TotalD2Coverage: pct(len(d2), len(u.D2)),
		AlignmentScore:  pct(len(d1)+len(d2), len(u.D1)+len(u.D2)),
	}
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(1000*float64(n)/float64(total)) / 10
}

// Counts reports how many entries each list holds.
type Counts struct {
	UniqueToD1 int `json:"uniqueToD1"`
	Aligned    int `json:"aligned"`
	UniqueToD2 int `json:"uniqueToD2"`
}

// Count returns the list sizes of result.
func Count(result *blackboard.VennResult) Counts {
	return Counts{
		UniqueToD1: len(result.UniqueToD1),
		Aligned:    len(result.Aligned),
		UniqueToD2: len(result.UniqueToD2),
	}
}
