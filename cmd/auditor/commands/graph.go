package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/graph"
	"github.com/dyluth/auditor/internal/inspect"
	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/internal/resolver"
)

var (
	graphOutputFormat string
	graphFilter       string
	graphNodeType     string
)

var graphCmd = &cobra.Command{
	Use:   "graph [NODE]",
	Short: "Inspect a run's knowledge graph",
	Long: `Inspect the knowledge graph in list or get mode.

List Mode (no NODE):
  Lists nodes selected by --filter and --type.

Get Mode (with NODE):
  Shows one node with its edges as JSON. NODE may be a full ID, an ID prefix
  of at least 8 characters, or the label of a concept node.

Filters (list mode only):
  --filter - all, dataset1_only, dataset2_only, shared, orphans
  --type   - Node type, "concept" for any concept type, "element" for elements

Examples:
  auditor graph --run audit-42 --filter orphans
  auditor graph --run audit-42 --type concept --output=jsonl
  auditor graph --run audit-42 "Minimum password length"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	graphCmd.Flags().StringVar(&graphFilter, "filter", string(graph.FilterAll), "Dataset filter")
	graphCmd.Flags().StringVar(&graphNodeType, "type", "", "Node type filter")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f, ok := graph.ParseFilter(graphFilter)
	if !ok {
		names := make([]string, len(graph.Filters))
		for i, v := range graph.Filters {
			names[i] = string(v)
		}
		return printer.Error("invalid graph filter", fmt.Sprintf("Unknown filter: %s", graphFilter),
			[]string{"Valid filters: " + strings.Join(names, ", ")})
	}

	var format inspect.OutputFormat
	if len(args) == 0 {
		var err error
		if format, err = inspect.ParseOutputFormat(graphOutputFormat); err != nil {
			return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
		}
	}

	client, err := connect(ctx, "graph")
	if err != nil {
		return err
	}
	defer client.Close()

	if len(args) == 0 {
		return inspect.ListNodes(ctx, client, f, graphNodeType, format, cmd.OutOrStdout())
	}

	err = inspect.GetNode(ctx, client, args[0], cmd.OutOrStdout())
	var ambiguous *resolver.AmbiguousError
	switch {
	case err == nil:
		return nil
	case inspect.IsNotFound(err):
		return printer.Error(fmt.Sprintf("node '%s' not found", args[0]), "No node ID, ID prefix or concept label matches.",
			[]string{fmt.Sprintf("List nodes:\n  auditor graph --run %s", runID)})
	case errors.As(err, &ambiguous):
		return printer.Error(fmt.Sprintf("'%s' is ambiguous", args[0]), resolver.FormatAmbiguousError(ambiguous), nil)
	default:
		return err
	}
}
