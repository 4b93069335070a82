package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/inspect"
	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/pkg/blackboard"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress of a run",
	Long: `Show the persisted state of a run: its orchestrator state, turn, current
perspective, dataset sizes and whether a Venn result has been finalized.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connect(ctx, "status")
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()

	d1, err := client.DatasetSize(ctx, blackboard.Dataset1)
	if err != nil {
		return err
	}
	d2, err := client.DatasetSize(ctx, blackboard.Dataset2)
	if err != nil {
		return err
	}

	status, err := client.GetStatus(ctx)
	switch {
	case blackboard.IsNotFound(err):
		if d1 == 0 && d2 == 0 {
			return printer.Error(
				fmt.Sprintf("run '%s' not found", runID),
				"No datasets have been ingested and no run has started under this ID.",
				[]string{fmt.Sprintf("Ingest datasets first:\n  auditor ingest --run %s --dataset1 <file> --dataset2 <file>", runID)},
			)
		}
		fmt.Fprintf(out, "Run:      %s\nState:    not started\n", runID)
	case err != nil:
		return err
	default:
		inspect.FormatStatus(out, status)
	}

	fmt.Fprintf(out, "Datasets: %d reference / %d subject element(s)\n", d1, d2)

	v, err := client.GetVenn(ctx)
	if err != nil && !blackboard.IsNotFound(err) {
		return err
	}
	if v == nil {
		fmt.Fprintf(out, "Venn:     not finalized\n")
		return nil
	}
	summary := v.Summary
	if v.Computed != nil {
		summary = *v.Computed
	}
	fmt.Fprintf(out, "Venn:     finalized at turn %d (dataset 1 %s, dataset 2 %s, alignment %s)\n",
		v.Turn, printer.Coverage(summary.TotalD1Coverage), printer.Coverage(summary.TotalD2Coverage), printer.Coverage(summary.AlignmentScore))
	return nil
}
