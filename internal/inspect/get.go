package inspect

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// NodeDetail is a node together with its incident edges, as printed by GetNode.
type NodeDetail struct {
	Node  *blackboard.Node   `json:"node"`
	Edges []*blackboard.Edge `json:"edges"`
}

// GetNode resolves ref (full ID, 8+ character prefix or concept label) and
// writes the node with its edges as pretty-printed JSON.
func GetNode(ctx context.Context, store Store, ref string, w io.Writer) error {
	snap, err := loadSnapshot(ctx, store)
	if err != nil {
		return err
	}

	index := resolver.NewIndex()
	for _, n := range snap.Nodes {
		index.AddNode(n)
	}

	id, err := index.Resolve(ref, resolver.Any)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			return &NodeNotFoundError{Ref: ref}
		}
		return err
	}

	node, _ := snap.Node(id)
	detail := NodeDetail{Node: node, Edges: snap.EdgesOf(id)}
	if detail.Edges == nil {
		detail.Edges = []*blackboard.Edge{}
	}

	if err := FormatSingleJSON(w, detail); err != nil {
		return fmt.Errorf("failed to format node: %w", err)
	}
	return nil
}

// NodeNotFoundError reports a reference that matched no node.
type NodeNotFoundError struct {
	Ref string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("no node matches '%s'", e.Ref)
}

// IsNotFound returns true if the error is a NodeNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NodeNotFoundError)
	return ok
}
