package tools

import (
	"context"
	"fmt"

	"github.com/dyluth/auditor/internal/venn"
	"github.com/dyluth/auditor/pkg/blackboard"
)

type vennParams struct {
	UniqueToD1 []blackboard.VennEntry `json:"uniqueToD1"`
	Aligned    []blackboard.VennEntry `json:"aligned"`
	UniqueToD2 []blackboard.VennEntry `json:"uniqueToD2"`
	Summary    blackboard.VennSummary `json:"summary"`
}

type finalizeResult struct {
	Finalized bool                   `json:"finalized"`
	Counts    venn.Counts            `json:"counts"`
	Summary   blackboard.VennSummary `json:"summary"`
	Computed  blackboard.VennSummary `json:"computed"`
}

// finalizeVenn stores the terminal classification once it passes the
// completeness check. A later call replaces the stored result.
func (x *Executor) finalizeVenn(ctx context.Context, call Call, a args) (any, error) {
	var p vennParams
	if err := a.decode(&p); err != nil {
		return nil, err
	}

	d1, d2, err := x.universe(ctx)
	if err != nil {
		return nil, err
	}
	u := venn.Universe{D1: d1, D2: d2}

	result := &blackboard.VennResult{
		UniqueToD1: nonNil(p.UniqueToD1),
		Aligned:    nonNil(p.Aligned),
		UniqueToD2: nonNil(p.UniqueToD2),
		Summary:    p.Summary,
		Turn:       call.Turn,
	}
	if v := venn.Validate(result, u, x.index); v != nil && !v.Empty() {
		return nil, &ValidationError{Tool: a.tool, Message: v.Error(), IDs: v.IDs()}
	}

	computed := venn.Summarize(result, u)
	result.Computed = &computed
	if err := x.store.SaveVenn(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store venn result: %w", err)
	}

	return finalizeResult{
		Finalized: true,
		Counts:    venn.Count(result),
		Summary:   result.Summary,
		Computed:  computed,
	}, nil
}

func nonNil(entries []blackboard.VennEntry) []blackboard.VennEntry {
	if entries == nil {
		return []blackboard.VennEntry{}
	}
	return entries
}
