package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dyluth/auditor/pkg/blackboard"
)

// MinShortIDLength is the minimum prefix length accepted by the prefix tier.
const MinShortIDLength = 8

// ShortID returns the display prefix of a full ID.
func ShortID(id string) string {
	if len(id) <= MinShortIDLength {
		return id
	}
	return id[:MinShortIDLength]
}

// Scope restricts which identifiers a lookup may return.
// The zero value accepts any element or node.
type Scope struct {
	Dataset      blackboard.Dataset // 0 = either dataset
	ElementsOnly bool
}

// Any accepts every element and node.
var Any = Scope{}

// InDataset accepts only elements of dataset d.
func InDataset(d blackboard.Dataset) Scope {
	return Scope{Dataset: d, ElementsOnly: true}
}

// Elements accepts elements of either dataset.
var Elements = Scope{ElementsOnly: true}

type entry struct {
	id      string
	typ     blackboard.NodeType
	dataset blackboard.Dataset
	label   string
}

func (e entry) matches(s Scope) bool {
	if s.ElementsOnly && !e.typ.IsElement() {
		return false
	}
	if s.Dataset != 0 && e.dataset != s.Dataset {
		return false
	}
	return true
}

// Index maps loosely written references (full IDs, short prefixes, labels)
// to canonical IDs. It is safe for concurrent use and is updated incrementally
// as nodes are created during a run.
type Index struct {
	mu       sync.RWMutex
	byID     map[string]entry
	byPrefix map[string][]string
	byLabel  map[string][]string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byID:     make(map[string]entry),
		byPrefix: make(map[string][]string),
		byLabel:  make(map[string][]string),
	}
}

// NodeLister is the store capability Load needs.
type NodeLister interface {
	ListNodes(ctx context.Context) ([]*blackboard.Node, error)
}

// Load builds an index from every node in the store. Elements are covered
// through their mirror nodes, which share the element ID.
func Load(ctx context.Context, store NodeLister) (*Index, error) {
	nodes, err := store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes for resolution: %w", err)
	}

	x := NewIndex()
	for _, n := range nodes {
		x.AddNode(n)
	}
	return x, nil
}

// AddNode registers a node. Re-adding the same ID is a no-op.
func (x *Index) AddNode(n *blackboard.Node) {
	e := entry{id: strings.ToLower(n.ID), typ: n.Type, label: n.Label}
	switch n.Type {
	case blackboard.NodeTypeDataset1Element:
		e.dataset = blackboard.Dataset1
	case blackboard.NodeTypeDataset2Element:
		e.dataset = blackboard.Dataset2
	}
	x.add(e)
}

// AddElement registers an element directly, without a graph node.
func (x *Index) AddElement(el *blackboard.Element) {
	x.add(entry{
		id:      strings.ToLower(el.ID),
		typ:     el.Dataset.ElementNodeType(),
		dataset: el.Dataset,
		label:   el.Label,
	})
}

func (x *Index) add(e entry) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byID[e.id]; exists {
		return
	}
	x.byID[e.id] = e

	if len(e.id) >= MinShortIDLength {
		key := e.id[:MinShortIDLength]
		x.byPrefix[key] = append(x.byPrefix[key], e.id)
	}
	if e.typ.IsConcept() {
		key := normalizeLabel(e.label)
		if key != "" {
			x.byLabel[key] = append(x.byLabel[key], e.id)
		}
	}
}

// Len returns the number of registered identifiers.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

// Resolve maps candidate to exactly one canonical ID within scope.
//
// Tiers are tried in order and the first tier with any match decides:
//  1. exact ID
//  2. unique ID prefix of at least MinShortIDLength characters
//  3. case-insensitive label of a concept, theme, gap, risk or requirement node
//
// A "d1-"/"d2-" or "dataset1:"/"dataset2:" qualifier restricts the lookup to
// elements of that dataset. If the qualified form finds nothing, the candidate
// is retried verbatim.
//
// Returns *NotFoundError when nothing matches and *AmbiguousError when the
// deciding tier has more than one match.
func (x *Index) Resolve(candidate string, scope Scope) (string, error) {
	raw := strings.TrimSpace(candidate)
	if raw == "" {
		return "", &NotFoundError{Candidate: candidate}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if d, rest, ok := splitQualifier(raw); ok && (scope.Dataset == 0 || scope.Dataset == d) {
		qualified := Scope{Dataset: d, ElementsOnly: true}
		id, matches := x.lookup(rest, qualified)
		switch {
		case len(matches) > 1:
			return "", &AmbiguousError{Candidate: candidate, Matches: matches}
		case id != "":
			return id, nil
		}
	}

	id, matches := x.lookup(raw, scope)
	switch {
	case len(matches) > 1:
		return "", &AmbiguousError{Candidate: candidate, Matches: matches}
	case id != "":
		return id, nil
	default:
		return "", &NotFoundError{Candidate: candidate}
	}
}

// lookup returns (id, nil) on a unique hit, ("", matches) when the deciding
// tier is ambiguous and ("", nil) when no tier matched. Callers hold mu.
func (x *Index) lookup(ref string, scope Scope) (string, []string) {
	lower := strings.ToLower(ref)

	if e, ok := x.byID[lower]; ok && e.matches(scope) {
		return e.id, nil
	}

	if len(lower) >= MinShortIDLength {
		var hits []string
		for _, id := range x.byPrefix[lower[:MinShortIDLength]] {
			if strings.HasPrefix(id, lower) && x.byID[id].matches(scope) {
				hits = append(hits, id)
			}
		}
		if id, amb := pick(hits); id != "" || amb != nil {
			return id, amb
		}
	}

	if !scope.ElementsOnly {
		var hits []string
		for _, id := range x.byLabel[normalizeLabel(ref)] {
			if x.byID[id].matches(scope) {
				hits = append(hits, id)
			}
		}
		if id, amb := pick(hits); id != "" || amb != nil {
			return id, amb
		}
	}

	return "", nil
}

func pick(hits []string) (string, []string) {
	switch len(hits) {
	case 0:
		return "", nil
	case 1:
		return hits[0], nil
	default:
		sorted := append([]string(nil), hits...)
		sort.Strings(sorted)
		return "", sorted
	}
}

var qualifiers = []struct {
	prefix  string
	dataset blackboard.Dataset
}{
	{"dataset1:", blackboard.Dataset1},
	{"dataset2:", blackboard.Dataset2},
	{"dataset1-", blackboard.Dataset1},
	{"dataset2-", blackboard.Dataset2},
	{"d1:", blackboard.Dataset1},
	{"d2:", blackboard.Dataset2},
	{"d1-", blackboard.Dataset1},
	{"d2-", blackboard.Dataset2},
}

func splitQualifier(ref string) (blackboard.Dataset, string, bool) {
	lower := strings.ToLower(ref)
	for _, q := range qualifiers {
		if strings.HasPrefix(lower, q.prefix) && len(ref) > len(q.prefix) {
			return q.dataset, ref[len(q.prefix):], true
		}
	}
	return 0, "", false
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
