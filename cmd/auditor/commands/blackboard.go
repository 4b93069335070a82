package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/filter"
	"github.com/dyluth/auditor/internal/inspect"
	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/internal/timespec"
)

var (
	bbOutputFormat string
	bbSince        string
	bbUntil        string
	bbType         string
	bbLens         string
	bbTurn         int
)

var blackboardCmd = &cobra.Command{
	Use:     "blackboard",
	Aliases: []string{"bb"},
	Short:   "Inspect a run's reasoning log",
	Long: `List the blackboard entries of a run, oldest first.

Output Formats:
  default - Table with sequence, turn, type, perspective, age and content
  jsonl   - Line-delimited JSON, one entry per line

Filters (ANDed):
  --since / --until - Creation time (duration like 30m, or RFC3339)
  --type            - Entry type glob ("finding", "tool_*")
  --lens            - Target perspective (exact match)
  --turn            - Turn number

Examples:
  auditor blackboard --run audit-42 --type finding
  auditor blackboard --run audit-42 --output=jsonl --turn 3 | jq .content`,
	Args: cobra.NoArgs,
	RunE: runBlackboard,
}

func init() {
	blackboardCmd.Flags().StringVarP(&bbOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	blackboardCmd.Flags().StringVar(&bbSince, "since", "", "Show entries after time (duration or RFC3339)")
	blackboardCmd.Flags().StringVar(&bbUntil, "until", "", "Show entries before time (duration or RFC3339)")
	blackboardCmd.Flags().StringVar(&bbType, "type", "", "Filter by entry type (glob pattern)")
	blackboardCmd.Flags().StringVar(&bbLens, "lens", "", "Filter by target perspective")
	blackboardCmd.Flags().IntVar(&bbTurn, "turn", 0, "Filter by turn")
	rootCmd.AddCommand(blackboardCmd)
}

func runBlackboard(cmd *cobra.Command, args []string) error {
	format, err := inspect.ParseOutputFormat(bbOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	window, err := timespec.ParseRange(bbSince, bbUntil)
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), []string{
			"Use a duration like --since=30m or an RFC3339 time like --until=2026-03-01T09:00:00Z",
		})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connect(ctx, "blackboard")
	if err != nil {
		return err
	}
	defer client.Close()

	criteria := &filter.Criteria{Window: window, TypeGlob: bbType, Perspective: bbLens, Turn: bbTurn}
	if err := inspect.ListEntries(ctx, client, format, criteria, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to list blackboard: %w", err)
	}
	return nil
}
