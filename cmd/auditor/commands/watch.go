package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/internal/watch"
)

var (
	watchOutputFormat string
	watchWait         bool
	watchTimeout      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor a run in real time",
	Long: `Stream the events of a run as they happen: nodes and edges created,
blackboard entries, tesseract cells, status changes and finalization.
Streaming stops when the run reaches DONE or FAILED.

With --wait, print nothing until the run finishes, then its final status.

Output Formats:
  default - Human-readable lines with timestamps
  json    - Line-delimited JSON events`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().BoolVar(&watchWait, "wait", false, "Block until the run finishes instead of streaming")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", time.Hour, "Maximum time to wait with --wait")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var format watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx, "watch")
	if err != nil {
		return err
	}
	defer client.Close()

	if !watchWait {
		return watch.StreamEvents(ctx, client, format, cmd.OutOrStdout())
	}

	status, err := watch.PollForCompletion(ctx, client, 500*time.Millisecond, watchTimeout)
	if err != nil {
		return printer.Error("run did not finish", err.Error(), nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run '%s' %s after %d turn(s)\n", runID, printer.State(status.State), status.Turn)
	return nil
}
