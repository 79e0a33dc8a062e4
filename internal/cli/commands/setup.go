package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/batch"
	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/service"
	"github.com/leapstack-labs/leaplineage/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Source   batch.Source
	Store    state.Store // nil with --no-history
	Service  *service.Service
	Renderer *output.Renderer
}

// NewCommandContext opens the batch source and run history and wires a service.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	src, err := openSource(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var store state.Store
	if !cfg.NoHistory {
		store, err = openStore(cfg.StatePath, logger)
		if err != nil {
			_ = batch.Close(src)
			return nil, nil, err
		}
	}

	svc, err := service.New(service.Config{
		Source:             src,
		Store:              store,
		Layout:             cfg.Layout,
		MinRebuildInterval: cfg.Server.RebuildInterval,
		Logger:             logger,
	})
	if err != nil {
		_ = batch.Close(src)
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := batch.Close(src); err != nil {
			logger.Warn("failed to close source", slog.String("error", err.Error()))
		}
		if store != nil {
			_ = store.Close()
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Source:   src,
		Store:    store,
		Service:  svc,
		Renderer: newRenderer(cmd, cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutSource creates a CommandContext with only run history.
// Useful for commands that never read batches.
func NewCommandContextWithoutSource(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg.StatePath, logger)
	if err != nil {
		return nil, nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Renderer: newRenderer(cmd, cfg),
	}, func() { _ = store.Close() }, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		ResultsDir:   config.DefaultResultsDir,
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
	}
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
}

func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (batch.Source, error) {
	src, err := batch.Open(ctx, cfg.SourceURI(), batch.Options{
		Pattern:     cfg.Pattern,
		Concurrency: cfg.Concurrency,
		ObjectStore: cfg.ObjectStore.ToBatch(),
		Warehouse:   cfg.Warehouse.ToBatch(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", cfg.SourceURI(), err)
	}
	return src, nil
}

func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	// Ensure state directory exists
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}
