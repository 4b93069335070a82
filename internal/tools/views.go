package tools

import (
	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// The view types below are the JSON shapes returned to the model. They carry
// short IDs next to full ones so the model can quote either.

type elementView struct {
	ID      string `json:"id"`
	ShortID string `json:"shortId"`
	Dataset string `json:"dataset"`
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

func newElementView(e *blackboard.Element) elementView {
	return elementView{
		ID:      e.ID,
		ShortID: resolver.ShortID(e.ID),
		Dataset: e.Dataset.String(),
		Index:   e.Index,
		Label:   e.Label,
		Content: e.Content,
	}
}

type edgeView struct {
	ID     string `json:"id"`
	Type   string `json:"edgeType"`
	Source string `json:"sourceNodeId"`
	Target string `json:"targetNodeId"`
	Label  string `json:"label,omitempty"`
}

func newEdgeView(e *blackboard.Edge) edgeView {
	return edgeView{
		ID:     e.ID,
		Type:   string(e.Type),
		Source: e.SourceNodeID,
		Target: e.TargetNodeID,
		Label:  e.Label,
	}
}

type nodeView struct {
	ID               string     `json:"id"`
	ShortID          string     `json:"shortId"`
	Type             string     `json:"nodeType"`
	Label            string     `json:"label"`
	Description      string     `json:"description,omitempty"`
	SourceDataset    string     `json:"sourceDataset"`
	SourceElementIDs []string   `json:"sourceElementIds,omitempty"`
	Edges            []edgeView `json:"edges,omitempty"`
}

func newNodeView(n *blackboard.Node) nodeView {
	return nodeView{
		ID:               n.ID,
		ShortID:          resolver.ShortID(n.ID),
		Type:             string(n.Type),
		Label:            n.Label,
		Description:      n.Description,
		SourceDataset:    string(n.SourceDataset),
		SourceElementIDs: n.SourceElementIDs,
	}
}

type entryView struct {
	ID                string   `json:"id"`
	Sequence          int64    `json:"sequence"`
	Type              string   `json:"entryType"`
	Content           string   `json:"content"`
	Confidence        *float64 `json:"confidence,omitempty"`
	TargetPerspective string   `json:"targetAgent,omitempty"`
	Turn              int      `json:"turn"`
}

func newEntryView(e *blackboard.Entry) entryView {
	return entryView{
		ID:                e.ID,
		Sequence:          e.Sequence,
		Type:              string(e.Type),
		Content:           e.Content,
		Confidence:        e.Confidence,
		TargetPerspective: e.TargetPerspective,
		Turn:              e.Turn,
	}
}
