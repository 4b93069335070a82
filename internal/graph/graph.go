// Package graph answers read-only questions over a snapshot of a run's
// knowledge graph: filtered node queries, neighbourhoods and orphans.
package graph

import (
	"sort"
	"strings"

	"github.com/dyluth/auditor/pkg/blackboard"
)

// Filter selects nodes by their dataset affiliation.
type Filter string

const (
	FilterAll          Filter = "all"
	FilterDataset1Only Filter = "dataset1_only"
	FilterDataset2Only Filter = "dataset2_only"
	FilterShared       Filter = "shared"
	FilterOrphans      Filter = "orphans"
)

// Filters lists every filter accepted by Query.
var Filters = []Filter{FilterAll, FilterDataset1Only, FilterDataset2Only, FilterShared, FilterOrphans}

// ParseFilter returns the filter named s, or (FilterAll, false) if s is unknown.
func ParseFilter(s string) (Filter, bool) {
	v := Filter(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range Filters {
		if f == v {
			return f, true
		}
	}
	return FilterAll, false
}

// Snapshot is an immutable, indexed copy of the graph at one point in time.
type Snapshot struct {
	Nodes []*blackboard.Node
	Edges []*blackboard.Edge

	byID map[string]*blackboard.Node
	adj  map[string][]*blackboard.Edge
}

// NewSnapshot indexes nodes and edges. Edges whose endpoints are unknown are
// kept in Edges but do not appear in adjacency lists.
func NewSnapshot(nodes []*blackboard.Node, edges []*blackboard.Edge) *Snapshot {
	s := &Snapshot{
		Nodes: nodes,
		Edges: edges,
		byID:  make(map[string]*blackboard.Node, len(nodes)),
		adj:   make(map[string][]*blackboard.Edge),
	}
	for _, n := range nodes {
		s.byID[n.ID] = n
	}
	for _, e := range edges {
		if s.byID[e.SourceNodeID] == nil || s.byID[e.TargetNodeID] == nil {
			continue
		}
		s.adj[e.SourceNodeID] = append(s.adj[e.SourceNodeID], e)
		if e.TargetNodeID != e.SourceNodeID {
			s.adj[e.TargetNodeID] = append(s.adj[e.TargetNodeID], e)
		}
	}
	return s
}

// Node returns the node with the given ID.
func (s *Snapshot) Node(id string) (*blackboard.Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// EdgesOf returns every edge touching id, in either direction.
func (s *Snapshot) EdgesOf(id string) []*blackboard.Edge {
	return s.adj[id]
}

// Neighbor is the far end of an edge as seen from a given node.
type Neighbor struct {
	Edge     *blackboard.Edge
	Node     *blackboard.Node
	Outgoing bool
}

// Neighbors returns the nodes linked to id together with the linking edge.
func (s *Snapshot) Neighbors(id string) []Neighbor {
	var out []Neighbor
	for _, e := range s.adj[id] {
		other := e.TargetNodeID
		outgoing := true
		if e.SourceNodeID != id {
			other = e.SourceNodeID
			outgoing = false
		}
		out = append(out, Neighbor{Edge: e, Node: s.byID[other], Outgoing: outgoing})
	}
	return out
}

// Query returns nodes matching filter and nodeType, capped at limit (<= 0 means no cap).
// nodeType "concept" matches every *_concept type; other values match exactly.
func (s *Snapshot) Query(filter Filter, nodeType string, limit int) []*blackboard.Node {
	var candidates []*blackboard.Node
	if filter == FilterOrphans {
		candidates = s.Orphans()
	} else {
		for _, n := range s.Nodes {
			if s.matchesFilter(n, filter) {
				candidates = append(candidates, n)
			}
		}
	}

	out := make([]*blackboard.Node, 0, len(candidates))
	for _, n := range candidates {
		if !matchesType(n, nodeType) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func matchesType(n *blackboard.Node, nodeType string) bool {
	t := strings.ToLower(strings.TrimSpace(nodeType))
	switch t {
	case "":
		return true
	case "concept":
		return strings.HasSuffix(string(n.Type), "_concept")
	case "element":
		return n.Type.IsElement()
	default:
		return string(n.Type) == t
	}
}

func (s *Snapshot) matchesFilter(n *blackboard.Node, f Filter) bool {
	switch f {
	case FilterDataset1Only:
		return n.SourceDataset == blackboard.SourceDataset1
	case FilterDataset2Only:
		return n.SourceDataset == blackboard.SourceDataset2
	case FilterShared:
		return s.IsShared(n)
	default:
		return true
	}
}

// IsShared reports whether a node bridges both datasets: it is declared
// shared, or it is a concept whose provenance or links reach elements of
// both datasets.
func (s *Snapshot) IsShared(n *blackboard.Node) bool {
	if n.SourceDataset == blackboard.SourceDatasetBoth || n.Type == blackboard.NodeTypeSharedConcept {
		return true
	}
	if !n.Type.IsConcept() {
		return false
	}

	var d1, d2 bool
	mark := func(id string) {
		if other, ok := s.byID[id]; ok {
			switch other.Type {
			case blackboard.NodeTypeDataset1Element:
				d1 = true
			case blackboard.NodeTypeDataset2Element:
				d2 = true
			}
		}
	}
	for _, id := range n.SourceElementIDs {
		mark(id)
	}
	for _, nb := range s.Neighbors(n.ID) {
		if nb.Node != nil {
			mark(nb.Node.ID)
		}
	}
	return d1 && d2
}

// Orphans returns dataset-2 element nodes that have no implements or
// relates_to edge, in either direction, to a concept-type node.
func (s *Snapshot) Orphans() []*blackboard.Node {
	var out []*blackboard.Node
	for _, n := range s.Nodes {
		if n.Type != blackboard.NodeTypeDataset2Element {
			continue
		}
		linked := false
		for _, nb := range s.Neighbors(n.ID) {
			if nb.Edge.Type.Links() && nb.Node != nil && nb.Node.Type.IsConcept() {
				linked = true
				break
			}
		}
		if !linked {
			out = append(out, n)
		}
	}
	return out
}

// CountByType tallies nodes per type, sorted by type name.
func (s *Snapshot) CountByType() []TypeCount {
	counts := make(map[blackboard.NodeType]int)
	for _, n := range s.Nodes {
		counts[n.Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// TypeCount is one row of CountByType.
type TypeCount struct {
	Type  blackboard.NodeType `json:"type"`
	Count int                 `json:"count"`
}
