package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// FormatEntries writes blackboard entries as a table.
// Returns the number of entries formatted.
func FormatEntries(w io.Writer, entries []*blackboard.Entry, runID string) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No blackboard entries found for run '%s'\n", runID)
		return 0
	}

	fmt.Fprintf(w, "Blackboard for run '%s':\n\n", runID)
	fmt.Fprintf(w, "%-5s %-4s %-12s %-12s %-8s %s\n", "SEQ", "TURN", "TYPE", "LENS", "AGE", "CONTENT")
	fmt.Fprintf(w, "%-5s %-4s %-12s %-12s %-8s %s\n", "-----", "----", "------------", "------------", "--------", strings.Repeat("-", 40))

	for _, e := range entries {
		fmt.Fprintf(w, "%-5d %-4d %-12s %-12s %-8s %s\n",
			e.Sequence,
			e.Turn,
			string(e.Type),
			dash(e.TargetPerspective),
			formatTimestamp(e.CreatedAtMs),
			formatContent(e.Content),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(entries), plural(len(entries), "entry", "entries"))
	return len(entries)
}

// FormatNodes writes graph nodes as a table.
func FormatNodes(w io.Writer, nodes []*blackboard.Node, runID string) int {
	if len(nodes) == 0 {
		fmt.Fprintf(w, "No graph nodes found for run '%s'\n", runID)
		return 0
	}

	fmt.Fprintf(w, "Graph nodes for run '%s':\n\n", runID)
	fmt.Fprintf(w, "%-10s %-12s %-9s %s\n", "ID", "TYPE", "SOURCE", "LABEL")
	fmt.Fprintf(w, "%-10s %-12s %-9s %s\n", "----------", "------------", "---------", strings.Repeat("-", 40))

	for _, n := range nodes {
		fmt.Fprintf(w, "%-10s %-12s %-9s %s\n",
			resolver.ShortID(n.ID),
			formatNodeType(n.Type),
			string(n.SourceDataset),
			formatContent(n.Label),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(nodes), plural(len(nodes), "node", "nodes"))
	return len(nodes)
}

// FormatCells writes tesseract cells as a table, one row per (element, step).
func FormatCells(w io.Writer, cells []*blackboard.Cell, runID string) int {
	if len(cells) == 0 {
		fmt.Fprintf(w, "No tesseract cells recorded for run '%s'\n", runID)
		return 0
	}

	fmt.Fprintf(w, "Tesseract for run '%s':\n\n", runID)
	fmt.Fprintf(w, "%-24s %-4s %-18s %-8s %-9s %s\n", "ELEMENT", "STEP", "STEP LABEL", "POLARITY", "SEVERITY", "EVIDENCE")
	fmt.Fprintf(w, "%-24s %-4s %-18s %-8s %-9s %s\n", strings.Repeat("-", 24), "----", strings.Repeat("-", 18), "--------", "---------", strings.Repeat("-", 40))

	for _, c := range cells {
		fmt.Fprintf(w, "%-24s %-4d %-18s %+8.2f %-9s %s\n",
			truncate(dash(c.ElementLabel), 24),
			c.Step,
			truncate(dash(c.StepLabel), 18),
			c.Polarity,
			string(c.Criticality),
			formatContent(c.EvidenceSummary),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(cells), plural(len(cells), "cell", "cells"))
	return len(cells)
}

// FormatVenn writes a human-readable summary of a finalized Venn result.
func FormatVenn(w io.Writer, v *blackboard.VennResult, runID string) {
	if v == nil {
		fmt.Fprintf(w, "Run '%s' has not been finalized\n", runID)
		return
	}

	fmt.Fprintf(w, "Venn result for run '%s'", runID)
	if v.Turn > 0 {
		fmt.Fprintf(w, " (turn %d)", v.Turn)
	}
	fmt.Fprintf(w, ":\n")

	writeVennSection(w, "Unique to dataset 1", v.UniqueToD1)
	writeVennSection(w, "Aligned", v.Aligned)
	writeVennSection(w, "Unique to dataset 2", v.UniqueToD2)

	fmt.Fprintf(w, "\n%-20s %9s %9s\n", "SUMMARY", "REPORTED", "COMPUTED")
	computed := v.Summary
	if v.Computed != nil {
		computed = *v.Computed
	}
	fmt.Fprintf(w, "%-20s %8.1f%% %8.1f%%\n", "Dataset 1 coverage", v.Summary.TotalD1Coverage, computed.TotalD1Coverage)
	fmt.Fprintf(w, "%-20s %8.1f%% %8.1f%%\n", "Dataset 2 coverage", v.Summary.TotalD2Coverage, computed.TotalD2Coverage)
	fmt.Fprintf(w, "%-20s %8.1f%% %8.1f%%\n", "Alignment", v.Summary.AlignmentScore, computed.AlignmentScore)
}

func writeVennSection(w io.Writer, title string, entries []blackboard.VennEntry) {
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(entries))
	for _, e := range entries {
		line := e.Label
		if line == "" {
			line = e.ID
		}
		if e.Criticality != "" {
			line = fmt.Sprintf("[%s] %s", e.Criticality, line)
		}
		fmt.Fprintf(w, "  - %s\n", formatContent(line))
	}
}

// FormatStatus writes a one-screen run status.
func FormatStatus(w io.Writer, s *blackboard.RunStatus) {
	fmt.Fprintf(w, "Run:      %s\n", s.RunID)
	fmt.Fprintf(w, "State:    %s\n", s.State)
	fmt.Fprintf(w, "Turn:     %d of %d\n", s.Turn, s.MaxTurns)
	fmt.Fprintf(w, "Lens:     %s\n", dash(s.Lens))
	fmt.Fprintf(w, "Updated:  %s\n", formatTimestamp(s.UpdatedAtMs))
	if s.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", s.Error)
	}
}

// FormatJSONL writes items as line-delimited JSON, one object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON followed by a newline.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatNodeType shortens node types for compact display.
func formatNodeType(t blackboard.NodeType) string {
	switch t {
	case blackboard.NodeTypeDataset1Element:
		return "d1_element"
	case blackboard.NodeTypeDataset2Element:
		return "d2_element"
	case blackboard.NodeTypeDataset1Concept:
		return "d1_concept"
	case blackboard.NodeTypeDataset2Concept:
		return "d2_concept"
	case blackboard.NodeTypeSharedConcept:
		return "shared"
	}
	return truncate(string(t), 12)
}

// formatContent keeps the first non-empty line, truncated to 60 characters.
func formatContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return truncate(trimmed, 60)
		}
	}
	return "-"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// formatTimestamp renders a millisecond timestamp as a relative age.
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
