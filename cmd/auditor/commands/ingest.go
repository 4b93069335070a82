package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/dataset"
	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/pkg/blackboard"
)

var (
	ingestDataset1 string
	ingestDataset2 string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load dataset files into a run",
	Long: `Load the elements of one or both datasets into a run.

Dataset 1 is the reference (requirements, standards); dataset 2 is the subject
(the implementation under audit). Files are YAML or JSON: a list of elements,
or a mapping with an "elements" list. Each element has a label and content,
and optionally an id (UUID); a bare string becomes the content.

Elements are appended after any already ingested. Ingestion is refused once
the run has started.

Examples:
  auditor ingest --run audit-42 --dataset1 requirements.yml --dataset2 code.json`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDataset1, "dataset1", "", "Reference dataset file")
	ingestCmd.Flags().StringVar(&ingestDataset2, "dataset2", "", "Subject dataset file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestDataset1 == "" && ingestDataset2 == "" {
		return printer.Error(
			"nothing to ingest",
			"Neither --dataset1 nor --dataset2 was given.",
			[]string{"auditor ingest --run <run-id> --dataset1 requirements.yml --dataset2 code.yml"},
		)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connect(ctx, "ingest")
	if err != nil {
		return err
	}
	defer client.Close()

	status, err := client.GetStatus(ctx)
	if err != nil && !blackboard.IsNotFound(err) {
		return err
	}
	if status != nil {
		return printer.Error(
			fmt.Sprintf("run '%s' has already started", runID),
			fmt.Sprintf("The run is %s at turn %d; datasets are frozen once a run starts.", status.State, status.Turn),
			[]string{"Ingest into a new run ID"},
		)
	}

	for _, src := range []struct {
		dataset blackboard.Dataset
		path    string
	}{
		{blackboard.Dataset1, ingestDataset1},
		{blackboard.Dataset2, ingestDataset2},
	} {
		if src.path == "" {
			continue
		}

		elements, err := dataset.Load(src.path)
		if err != nil {
			return printer.Error("invalid dataset file", err.Error(), nil)
		}
		if err := client.AddElements(ctx, src.dataset, elements); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", src.dataset, err)
		}

		size, err := client.DatasetSize(ctx, src.dataset)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: ingested %d element(s) from %s (%d total)\n", src.dataset, len(elements), src.path, size)
	}
	return nil
}
