// Command orchestrator runs one audit as a long-lived service, configured
// entirely from the environment:
//
//	AUDITOR_RUN_ID       run to drive (required)
//	AUDITOR_REDIS_URL    store address; REDIS_URL is accepted as a fallback
//	AUDITOR_CONFIG       path to audit.yml (default /workspace/audit.yml)
//	AUDITOR_HEALTH_ADDR  /healthz and /metrics listener (default :8080)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dyluth/auditor/internal/config"
	"github.com/dyluth/auditor/internal/llm"
	"github.com/dyluth/auditor/internal/llm/providers"
	"github.com/dyluth/auditor/internal/orchestrator"
	"github.com/dyluth/auditor/pkg/blackboard"
)

const (
	defaultConfigPath = "/workspace/audit.yml"
	defaultHealthAddr = ":8080"
)

type modelFactory func(ctx context.Context, provider, model string, opts providers.Options) (llm.Model, error)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := serve(ctx, os.Getenv, providers.New, logger); err != nil {
		logger.Error("orchestrator_failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("orchestrator_stopped")
}

// serve drives the run named by the environment to completion.
func serve(ctx context.Context, getenv func(string) string, newModel modelFactory, logger *zap.Logger) error {
	runID := getenv("AUDITOR_RUN_ID")
	if runID == "" {
		return errors.New("AUDITOR_RUN_ID must be set")
	}

	configPath := getenv("AUDITOR_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", configPath, err)
	}

	redisURL := getenv(config.RedisURLEnv)
	if redisURL == "" {
		redisURL = getenv("REDIS_URL")
	}
	if redisURL == "" {
		redisURL = cfg.RedisURL()
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("invalid Redis URL: %w", err)
	}

	client, err := blackboard.NewClient(redisOpts, runID, blackboard.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("redis not accessible: %w", err)
	}

	model, err := newModel(ctx, cfg.Provider.Name, cfg.Provider.Model, providers.Options{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey(),
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	engine, err := orchestrator.NewEngine(model, orchestrator.SettingsFromConfig(cfg.Orchestrator), orchestrator.WithLogger(logger))
	if err != nil {
		return err
	}

	healthAddr := getenv("AUDITOR_HEALTH_ADDR")
	if healthAddr == "" {
		healthAddr = defaultHealthAddr
	}
	health := orchestrator.NewHealthServer(client, healthAddr, logger)
	if err := health.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = health.Shutdown(shutdownCtx)
	}()

	logger.Info("orchestrator_starting",
		zap.String("run_id", runID),
		zap.String("provider", cfg.Provider.Name),
		zap.String("model", model.Name()),
		zap.String("health_addr", healthAddr))

	report, err := engine.Run(ctx, client)
	if report != nil {
		logger.Info("run_report",
			zap.String("run_id", report.RunID),
			zap.String("state", string(report.State)),
			zap.Int("turns", report.Turns),
			zap.Int("nodes", len(report.Nodes)),
			zap.Int("entries", len(report.Entries)),
			zap.Int("cells", len(report.Cells)),
			zap.Int("orphans", len(report.Orphans)),
			zap.Bool("finalized", report.Finalized()))
	}
	return err
}
