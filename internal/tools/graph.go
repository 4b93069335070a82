package tools

import (
	"context"
	"fmt"

	"github.com/dyluth/auditor/internal/graph"
	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
	"github.com/google/uuid"
)

const (
	defaultGraphLimit = 50
	maxGraphLimit     = 200
)

func (x *Executor) snapshot(ctx context.Context) (*graph.Snapshot, error) {
	nodes, err := x.store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph nodes: %w", err)
	}
	edges, err := x.store.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph edges: %w", err)
	}
	return graph.NewSnapshot(nodes, edges), nil
}

type graphQueryResult struct {
	Filter   string     `json:"filter"`
	NodeType string     `json:"nodeType,omitempty"`
	Count    int        `json:"count"`
	Nodes    []nodeView `json:"nodes"`
	Note     string     `json:"note,omitempty"`
}

func (x *Executor) queryKnowledgeGraph(ctx context.Context, _ Call, a args) (any, error) {
	raw, _ := a.str("filter")
	filter, known := graph.ParseFilter(raw)
	nodeType, _ := a.str("nodeType")

	limit := defaultGraphLimit
	if n, ok, err := a.integer("limit"); err == nil && ok {
		limit = clamp(n, 1, maxGraphLimit)
	}

	snap, err := x.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	matched := snap.Query(filter, nodeType, limit)
	views := make([]nodeView, len(matched))
	for i, n := range matched {
		v := newNodeView(n)
		for _, e := range snap.EdgesOf(n.ID) {
			v.Edges = append(v.Edges, newEdgeView(e))
		}
		views[i] = v
	}

	res := graphQueryResult{Filter: string(filter), NodeType: nodeType, Count: len(views), Nodes: views}
	if !known {
		res.Note = fmt.Sprintf("unknown filter %q, showing all nodes", raw)
	}
	return res, nil
}

type linkView struct {
	Direction string   `json:"direction"` // outgoing or incoming
	Edge      edgeView `json:"edge"`
	Node      nodeView `json:"node"`
}

type sourceView struct {
	ID      string `json:"id"`
	ShortID string `json:"shortId"`
	Type    string `json:"type"`
	Label   string `json:"label"`
}

type conceptLinksResult struct {
	Node           nodeView     `json:"node"`
	Links          []linkView   `json:"links"`
	SourceElements []sourceView `json:"sourceElements,omitempty"`
}

func (x *Executor) getConceptLinks(ctx context.Context, _ Call, a args) (any, error) {
	ref, _ := a.str("nodeId")
	id, err := x.index.Resolve(ref, resolver.Any)
	if err != nil {
		return nil, err
	}

	snap, err := x.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := snap.Node(id)
	if !ok {
		return nil, &NotFoundError{Candidate: ref}
	}

	res := conceptLinksResult{Node: newNodeView(node), Links: []linkView{}}
	for _, nb := range snap.Neighbors(id) {
		if nb.Node == nil {
			continue
		}
		dir := "incoming"
		if nb.Outgoing {
			dir = "outgoing"
		}
		res.Links = append(res.Links, linkView{Direction: dir, Edge: newEdgeView(nb.Edge), Node: newNodeView(nb.Node)})
	}
	for _, src := range node.SourceElementIDs {
		if src == node.ID {
			continue
		}
		if n, ok := snap.Node(src); ok {
			res.SourceElements = append(res.SourceElements, sourceView{
				ID: n.ID, ShortID: resolver.ShortID(n.ID), Type: string(n.Type), Label: n.Label,
			})
		}
	}
	return res, nil
}

type createConceptResult struct {
	ID               string   `json:"id"`
	ShortID          string   `json:"shortId"`
	Label            string   `json:"label"`
	NodeType         string   `json:"nodeType"`
	SourceElementIDs []string `json:"sourceElementIds"`
	Unresolved       []string `json:"unresolved,omitempty"`
	Note             string   `json:"note,omitempty"`
}

func (x *Executor) createConcept(ctx context.Context, _ Call, a args) (any, error) {
	label, ok := a.str("label")
	if !ok {
		return nil, invalid(a.tool, "label", "must not be empty")
	}
	description, _ := a.str("description")

	typ, _ := a.str("nodeType")
	nodeType := blackboard.NodeType(typ)
	if !nodeType.Creatable() {
		return nil, invalid(a.tool, "nodeType", "%q cannot be created; use one of %v", typ, creatableEnum)
	}

	src, _ := a.str("sourceDataset")
	sourceDataset := blackboard.SourceDataset(src)
	if err := sourceDataset.Validate(); err != nil {
		return nil, invalid(a.tool, "sourceDataset", "%q is not dataset1, dataset2 or both", src)
	}

	refs, err := a.list("sourceElementIds")
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, invalid(a.tool, "sourceElementIds", "must name at least one source element; concepts need provenance")
	}

	var (
		sources    []string
		unresolved []string
		seen       = make(map[string]bool)
	)
	for _, ref := range refs {
		id, err := x.index.Resolve(ref, resolver.Any)
		if err != nil {
			unresolved = append(unresolved, ref)
			continue
		}
		if !seen[id] {
			seen[id] = true
			sources = append(sources, id)
		}
	}
	if len(sources) == 0 {
		v := invalid(a.tool, "sourceElementIds", "none of the source IDs resolved to an element or node: %v", unresolved)
		v.IDs = unresolved
		return nil, v
	}

	res := createConceptResult{Label: label, NodeType: string(nodeType), Unresolved: unresolved}
	if _, err := x.index.Resolve(label, resolver.Any); err == nil || resolver.IsAmbiguousError(err) {
		res.Note = fmt.Sprintf("a node labelled %q already exists; refer to this one by ID", label)
	}

	node := &blackboard.Node{
		ID:               uuid.New().String(),
		Type:             nodeType,
		Label:            label,
		Description:      description,
		SourceDataset:    sourceDataset,
		SourceElementIDs: sources,
	}
	if err := x.store.CreateNode(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to create concept: %w", err)
	}
	x.index.AddNode(node)

	res.ID = node.ID
	res.ShortID = resolver.ShortID(node.ID)
	res.SourceElementIDs = sources
	return res, nil
}

type linkResult struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	EdgeType     string `json:"edgeType"`
}

func (x *Executor) linkConcepts(ctx context.Context, _ Call, a args) (any, error) {
	typ, _ := a.str("edgeType")
	edgeType := blackboard.EdgeType(typ)
	if err := edgeType.Validate(); err != nil {
		return nil, invalid(a.tool, "edgeType", "%q is not one of %v", typ, edgeTypeEnum)
	}

	srcRef, _ := a.str("sourceNodeId")
	source, err := x.index.Resolve(srcRef, resolver.Any)
	if err != nil {
		return nil, err
	}
	dstRef, _ := a.str("targetNodeId")
	target, err := x.index.Resolve(dstRef, resolver.Any)
	if err != nil {
		return nil, err
	}
	if source == target {
		return nil, invalid(a.tool, "targetNodeId", "a node cannot be linked to itself")
	}

	label, _ := a.str("label")
	edge := &blackboard.Edge{
		ID:           uuid.New().String(),
		SourceNodeID: source,
		TargetNodeID: target,
		Type:         edgeType,
		Label:        label,
	}
	if err := x.store.CreateEdge(ctx, edge); err != nil {
		if blackboard.IsNotFound(err) {
			return nil, &NotFoundError{Candidate: fmt.Sprintf("%s -> %s", srcRef, dstRef)}
		}
		return nil, fmt.Errorf("failed to create edge: %w", err)
	}

	return linkResult{ID: edge.ID, SourceNodeID: source, TargetNodeID: target, EdgeType: string(edgeType)}, nil
}
