package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/auditor/internal/config"
	"github.com/dyluth/auditor/internal/inspect"
	"github.com/dyluth/auditor/internal/llm/providers"
	"github.com/dyluth/auditor/internal/orchestrator"
	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/internal/venn"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// newModel builds the model client; replaced in tests.
var newModel = providers.New

var (
	runMaxTurns   int
	runHealthAddr string
	runReportFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run (or resume) an audit",
	Long: `Drive the model through the audit of an ingested run until it finalizes
a Venn result, the turn budget is exhausted, or a transport failure persists.

The provider, model and loop bounds come from audit.yml. A run that was
interrupted resumes from its last persisted turn; a finished run cannot be
restarted.

Examples:
  auditor run --run audit-42
  auditor run --run audit-42 --max-turns 60 --health-addr :9090
  auditor run --run audit-42 --report-file report.json`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "Override orchestrator.max_turns")
	runCmd.Flags().StringVar(&runHealthAddr, "health-addr", "", "Serve /healthz and /metrics on this address while running (e.g. :9090)")
	runCmd.Flags().StringVar(&runReportFile, "report-file", "", "Write the full run report as JSON to this file")
	rootCmd.AddCommand(runCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			"configuration error",
			err.Error(),
			[]string{fmt.Sprintf("Check %s or pass --config <path>", configPath)},
		)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx, "run")
	if err != nil {
		return err
	}
	defer client.Close()

	model, err := newModel(ctx, cfg.Provider.Name, cfg.Provider.Model, providers.Options{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey(),
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return printer.Error("model setup failed", err.Error(), []string{
			fmt.Sprintf("Check provider settings in %s and that %s is set", configPath, cfg.Provider.APIKeyEnv),
		})
	}

	settings := orchestrator.SettingsFromConfig(cfg.Orchestrator)
	if runMaxTurns > 0 {
		settings.MaxTurns = runMaxTurns
	}
	engine, err := orchestrator.NewEngine(model, settings, orchestrator.WithLogger(logger))
	if err != nil {
		return printer.Error("invalid orchestrator settings", err.Error(), nil)
	}

	if runHealthAddr != "" {
		health := orchestrator.NewHealthServer(client, runHealthAddr, logger)
		if err := health.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = health.Shutdown(shutdownCtx)
		}()
	}

	out := cmd.OutOrStdout()
	printer.Step("Auditing run '%s' with %s (%d turns max)\n", runID, model.Name(), engine.Settings().MaxTurns)

	report, runErr := engine.Run(ctx, client)
	if report == nil {
		return runFailure(runErr)
	}

	writeSummary(out, report)
	if runReportFile != "" {
		if err := writeReportFile(runReportFile, report); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runFailure(runErr)
	}
	return nil
}

func runFailure(err error) error {
	switch {
	case errors.Is(err, blackboard.ErrRunLocked):
		return printer.Error(
			fmt.Sprintf("run '%s' is locked", runID),
			"Another orchestrator currently owns this run.",
			[]string{"Wait for it to finish, or for its lock to expire if it crashed"},
		)
	case errors.Is(err, orchestrator.ErrRunFinished):
		return printer.Error(
			fmt.Sprintf("run '%s' has already finished", runID),
			err.Error(),
			[]string{fmt.Sprintf("Inspect it:\n  auditor status --run %s", runID)},
		)
	case orchestrator.IsTransportError(err):
		return printer.Error("model unreachable", err.Error(), []string{
			fmt.Sprintf("Resolve the provider problem and start a new run; work so far is kept under '%s'", runID),
		})
	case orchestrator.IsTerminationError(err):
		return printer.Error("run ended without a Venn result", err.Error(), []string{
			"Raise orchestrator.max_turns or pass --max-turns",
		})
	default:
		return printer.Error("run failed", err.Error(), nil)
	}
}

func writeSummary(w io.Writer, r *orchestrator.Report) {
	fmt.Fprintf(w, "\nRun '%s' %s after %d turn(s)\n", r.RunID, printer.State(r.State), r.Turns)
	fmt.Fprintf(w, "  graph:      %d nodes, %d edges, %d orphaned dataset-2 element(s)\n", len(r.Nodes), len(r.Edges), len(r.Orphans))
	fmt.Fprintf(w, "  blackboard: %d entries\n", len(r.Entries))
	fmt.Fprintf(w, "  tesseract:  %d cells\n", len(r.Cells))

	if !r.Finalized() {
		return
	}
	counts := venn.Count(r.Venn)
	summary := r.Venn.Summary
	if r.Venn.Computed != nil {
		summary = *r.Venn.Computed
	}
	fmt.Fprintf(w, "  venn:       %d unique to dataset 1, %d aligned, %d unique to dataset 2\n", counts.UniqueToD1, counts.Aligned, counts.UniqueToD2)
	fmt.Fprintf(w, "  coverage:   dataset 1 %s, dataset 2 %s, alignment %s\n",
		printer.Coverage(summary.TotalD1Coverage), printer.Coverage(summary.TotalD2Coverage), printer.Coverage(summary.AlignmentScore))
}

func writeReportFile(path string, r *orchestrator.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := inspect.FormatSingleJSON(f, r); err != nil {
		return err
	}
	logger.Debug("report_written", zap.String("path", path))
	return nil
}
