package orchestrator

import (
	"context"
	"fmt"

	"github.com/dyluth/auditor/pkg/blackboard"
	"go.uber.org/zap"
)

// resumeWindow bounds how many tool results of the interrupted turn are
// replayed to the model.
const resumeWindow = 50

// resume recovers run progress from the store after a restart.
//
// A run with no status starts fresh. A terminal run cannot be restarted.
// Otherwise the turn counter continues where the previous orchestrator
// stopped (interrupted turns still count toward the budget), the tool results
// of the last turn are replayed, and an already stored Venn result counts as
// finalized.
func (r *run) resume(ctx context.Context) error {
	venn, err := r.client.GetVenn(ctx)
	if err != nil && !blackboard.IsNotFound(err) {
		return fmt.Errorf("failed to check for venn result: %w", err)
	}
	r.finalized = venn != nil

	status, err := r.client.GetStatus(ctx)
	if blackboard.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read run status: %w", err)
	}
	if status.State.Terminal() {
		return fmt.Errorf("%w: run %s is %s after %d turn(s)", ErrRunFinished, r.client.RunID(), status.State, status.Turn)
	}

	r.turn = status.Turn
	if r.turn > 0 {
		if err := r.replayResults(ctx, status.Turn); err != nil {
			return err
		}
	}

	r.logEvent("run_resumed",
		zap.String("previous_state", string(status.State)),
		zap.Int("turn", r.turn),
		zap.Int("replayed_results", len(r.results)),
		zap.Bool("finalized", r.finalized))
	return nil
}

// replayResults restores the tool results recorded during turn, oldest first.
func (r *run) replayResults(ctx context.Context, turn int) error {
	entries, err := r.client.ReadEntries(ctx, []blackboard.EntryType{blackboard.EntryTypeToolResult}, resumeWindow)
	if err != nil {
		return fmt.Errorf("failed to read tool results for recovery: %w", err)
	}

	r.results = r.results[:0]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Turn == turn {
			r.results = append(r.results, entries[i].Content)
		}
	}
	return nil
}
