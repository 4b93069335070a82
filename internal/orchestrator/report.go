package orchestrator

import (
	"context"
	"fmt"

	"github.com/dyluth/auditor/internal/graph"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// Report is everything a run accumulated. It is returned for failed runs
// too, so partial work is never lost.
type Report struct {
	RunID   string                 `json:"run_id"`
	State   blackboard.RunState    `json:"state"`
	Turns   int                    `json:"turns"`
	Venn    *blackboard.VennResult `json:"venn,omitempty"`
	Nodes   []*blackboard.Node     `json:"nodes"`
	Edges   []*blackboard.Edge     `json:"edges"`
	Entries []*blackboard.Entry    `json:"entries"`
	Cells   []*blackboard.Cell     `json:"cells"`
	Orphans []*blackboard.Node     `json:"orphans"` // Dataset-2 elements no concept links to
	Error   string                 `json:"error,omitempty"`

	Err error `json:"-"`
}

// Finalized reports whether the report carries a Venn result. A FAILED
// report never does.
func (r *Report) Finalized() bool {
	return r.Venn != nil
}

// BuildReport reads the run's accumulated state from the store.
func BuildReport(ctx context.Context, client *blackboard.Client, state blackboard.RunState, turns int, runErr error) (*Report, error) {
	rep := &Report{RunID: client.RunID(), State: state, Turns: turns, Err: runErr}
	if runErr != nil {
		rep.Error = runErr.Error()
	}

	var err error
	if rep.Nodes, err = client.ListNodes(ctx); err != nil {
		return rep, fmt.Errorf("failed to read nodes for report: %w", err)
	}
	if rep.Edges, err = client.ListEdges(ctx); err != nil {
		return rep, fmt.Errorf("failed to read edges for report: %w", err)
	}
	if rep.Entries, err = client.ListEntries(ctx); err != nil {
		return rep, fmt.Errorf("failed to read blackboard for report: %w", err)
	}
	if rep.Cells, err = client.ListCells(ctx); err != nil {
		return rep, fmt.Errorf("failed to read tesseract for report: %w", err)
	}

	venn, err := client.GetVenn(ctx)
	if err != nil && !blackboard.IsNotFound(err) {
		return rep, fmt.Errorf("failed to read venn result for report: %w", err)
	}
	if state != blackboard.RunStateFailed {
		rep.Venn = venn
	}

	rep.Orphans = graph.NewSnapshot(rep.Nodes, rep.Edges).Orphans()
	if rep.Orphans == nil {
		rep.Orphans = []*blackboard.Node{}
	}
	return rep, nil
}
