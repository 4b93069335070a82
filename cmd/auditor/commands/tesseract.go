package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/inspect"
	"github.com/dyluth/auditor/internal/printer"
)

var tesseractOutputFormat string

var tesseractCmd = &cobra.Command{
	Use:   "tesseract",
	Short: "Show per-element evidence cells",
	Long: `List the tesseract of a run: one cell per (dataset-1 element, analysis step)
with polarity (-1 contradicted .. +1 satisfied), criticality and evidence.`,
	Args: cobra.NoArgs,
	RunE: runTesseract,
}

func init() {
	tesseractCmd.Flags().StringVarP(&tesseractOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(tesseractCmd)
}

func runTesseract(cmd *cobra.Command, args []string) error {
	format, err := inspect.ParseOutputFormat(tesseractOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connect(ctx, "tesseract")
	if err != nil {
		return err
	}
	defer client.Close()

	return inspect.ListCells(ctx, client, format, cmd.OutOrStdout())
}
