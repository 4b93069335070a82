package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dyluth/auditor/internal/perspective"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// maxEntryChars truncates blackboard entries shown in the turn prompt.
// Full content stays readable through read_blackboard.
const maxEntryChars = 600

const baseInstructions = `You are an audit orchestrator reconciling two datasets.
Dataset 1 holds the reference items (requirements, standards, policies). Dataset 2 holds the artifacts audited against them.

Answer every turn with one JSON object:
{"thinking": "...", "perspective": "<lens id>", "toolCalls": [{"tool": "...", "params": {...}, "rationale": "..."}], "continueAnalysis": true}

Suggested workflow:
1. Page through both datasets with request_next_batch; use read_dataset_item for detail.
2. Build the knowledge graph. create_concept for each theme, requirement, risk or gap, citing the source element ids, then link_concepts to connect concepts and elements.
3. Keep your reasoning on the blackboard with write_blackboard and revisit it with read_blackboard.
4. Score every dataset 1 element on the five analysis steps with record_tesseract_cell.
5. Call finalize_venn with a complete classification. Every dataset 1 element belongs either to uniqueToD1 or to aligned, and every dataset 2 element either to uniqueToD2 or to aligned.

Tool calls in one turn run in order, so a later call may reference a concept created earlier in the same turn by its label or short id.
Failed tool calls are reported back to you next turn with the reason; correct the parameters and retry.
Set continueAnalysis to false only once finalize_venn has succeeded.`

// systemPrompt combines the standing instructions with the active lens.
func systemPrompt(lens perspective.Lens, lenses []string) string {
	var b strings.Builder
	b.WriteString(baseInstructions)
	fmt.Fprintf(&b, "\n\nAvailable perspectives: %s.\n", strings.Join(lenses, ", "))
	fmt.Fprintf(&b, "\nCurrent perspective: %s (%s).\n", lens.Name, lens.Focus)
	b.WriteString(lens.SystemPromptAddition)
	return b.String()
}

// turnContext is everything the per-turn prompt reports.
type turnContext struct {
	RunID      string
	Turn       int
	MaxTurns   int
	D1Size     int
	D2Size     int
	Finalized  bool
	Recent     []*blackboard.Entry // newest first, as read from the store
	Results    []string            // tool_result payloads of the previous turn
	LastFailed string              // why the previous turn produced no tool calls
}

// userPrompt renders the turn context.
func userPrompt(tc turnContext) string {
	var b strings.Builder

	remaining := tc.MaxTurns - tc.Turn
	fmt.Fprintf(&b, "Run %s, turn %d of %d (%d remaining after this one).\n", tc.RunID, tc.Turn, tc.MaxTurns, remaining)
	fmt.Fprintf(&b, "Dataset 1: %d elements. Dataset 2: %d elements.\n", tc.D1Size, tc.D2Size)
	if tc.Finalized {
		b.WriteString("A Venn result is stored. Call finalize_venn again only to revise it.\n")
	} else {
		b.WriteString("No Venn result has been finalized yet.\n")
		if remaining <= 2 {
			b.WriteString("The turn budget is nearly spent: finalize_venn now.\n")
		}
	}

	if tc.LastFailed != "" {
		fmt.Fprintf(&b, "\nYour previous turn failed: %s\nRespond with the JSON object described in your instructions.\n", tc.LastFailed)
	}

	b.WriteString("\n## Recent blackboard (oldest first)\n")
	if len(tc.Recent) == 0 {
		b.WriteString("(empty)\n")
	}
	for i := len(tc.Recent) - 1; i >= 0; i-- {
		e := tc.Recent[i]
		fmt.Fprintf(&b, "[#%d %s, turn %d", e.Sequence, e.Type, e.Turn)
		if e.TargetPerspective != "" {
			fmt.Fprintf(&b, ", for %s", e.TargetPerspective)
		}
		fmt.Fprintf(&b, "] %s\n", truncate(e.Content, maxEntryChars))
	}

	if len(tc.Results) > 0 {
		b.WriteString("\n## Results of your previous tool calls\n")
		for _, r := range tc.Results {
			b.WriteString(r)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
