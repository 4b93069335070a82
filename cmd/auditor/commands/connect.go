package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/auditor/internal/config"
	"github.com/dyluth/auditor/internal/printer"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// resolveRedisURL picks the store address: --redis-url, then
// AUDITOR_REDIS_URL, then the config file (if present), then the default.
func resolveRedisURL() (string, error) {
	if redisURL != "" {
		return redisURL, nil
	}
	if url := os.Getenv(config.RedisURLEnv); url != "" {
		return url, nil
	}

	cfg, err := config.Load(configPath)
	switch {
	case err == nil:
		return cfg.RedisURL(), nil
	case errors.Is(err, os.ErrNotExist):
		return config.DefaultRedisURL, nil
	default:
		return "", err
	}
}

// requireRun checks that --run was given.
func requireRun(command string) error {
	if runID != "" {
		return nil
	}
	return printer.Error(
		"run ID required",
		fmt.Sprintf("'auditor %s' operates on a single run.", command),
		[]string{fmt.Sprintf("Pass the run ID:\n  auditor %s --run <run-id>", command)},
	)
}

// connect opens a store client for --run and verifies Redis is reachable.
// The caller must Close the client.
func connect(ctx context.Context, command string) (*blackboard.Client, error) {
	if err := requireRun(command); err != nil {
		return nil, err
	}

	url, err := resolveRedisURL()
	if err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), []string{
			fmt.Sprintf("Fix %s or pass --redis-url", configPath),
		})
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, printer.Error("invalid Redis URL", fmt.Sprintf("Could not parse %q: %v", url, err), nil)
	}

	client, err := blackboard.NewClient(opts, runID, blackboard.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", url),
			map[string]string{"Error": err.Error()},
			[]string{
				fmt.Sprintf("Start Redis or set %s", config.RedisURLEnv),
				"Pass the address explicitly:\n  --redis-url redis://host:6379",
			},
		)
	}
	return client, nil
}
