package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/inspect"
	"github.com/dyluth/auditor/internal/printer"
)

var vennOutputFormat string

var vennCmd = &cobra.Command{
	Use:   "venn",
	Short: "Show the finalized Venn result",
	Long: `Show the Venn classification of a finalized run: elements unique to each
dataset, aligned pairs, and reported versus computed coverage scores.`,
	Args: cobra.NoArgs,
	RunE: runVenn,
}

func init() {
	vennCmd.Flags().StringVarP(&vennOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(vennCmd)
}

func runVenn(cmd *cobra.Command, args []string) error {
	format, err := inspect.ParseOutputFormat(vennOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connect(ctx, "venn")
	if err != nil {
		return err
	}
	defer client.Close()

	return inspect.ShowVenn(ctx, client, format, cmd.OutOrStdout())
}
