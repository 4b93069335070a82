package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

func (x *Executor) recordTesseractCell(ctx context.Context, call Call, a args) (any, error) {
	step, _, err := a.integer("step")
	if err != nil {
		return nil, err
	}
	if step < 1 || step > blackboard.TesseractSteps {
		return nil, invalid(a.tool, "step", "must be between 1 and %d, got %d", blackboard.TesseractSteps, step)
	}

	polarity, _, err := a.number("polarity")
	if err != nil {
		return nil, err
	}
	if polarity < -1 || polarity > 1 {
		return nil, invalid(a.tool, "polarity", "must be between -1 and 1, got %g", polarity)
	}

	evidence, ok := a.str("evidenceSummary")
	if !ok {
		return nil, invalid(a.tool, "evidenceSummary", "must not be empty")
	}

	criticality := blackboard.CriticalityInfo
	if c, ok := a.str("criticality"); ok {
		criticality = blackboard.Criticality(strings.ToLower(c))
		if criticality.Validate() != nil {
			return nil, invalid(a.tool, "criticality", "%q is not one of %v", c, criticalityEnum)
		}
	}

	ref, _ := a.str("elementId")
	id, err := x.index.Resolve(ref, resolver.InDataset(blackboard.Dataset1))
	if err != nil {
		return nil, err
	}

	label, ok := a.str("elementLabel")
	if !ok {
		el, err := x.store.GetElement(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read element %s: %w", id, err)
		}
		label = el.Label
	}
	stepLabel, ok := a.str("stepLabel")
	if !ok {
		stepLabel = fmt.Sprintf("Step %d", step)
	}

	cell := &blackboard.Cell{
		ElementID:       id,
		ElementLabel:    label,
		Step:            step,
		StepLabel:       stepLabel,
		Polarity:        polarity,
		Criticality:     criticality,
		EvidenceSummary: evidence,
		Turn:            call.Turn,
	}
	if err := x.store.UpsertCell(ctx, cell); err != nil {
		return nil, fmt.Errorf("failed to record tesseract cell: %w", err)
	}
	return cell, nil
}
