package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/server"
)

// ServeOptions holds options for the serve command.
// Port, watch and schedule are read through the config so leaplineage.yaml
// and LEAPLINEAGE_SERVER__* can set them too.
type ServeOptions struct {
	Port     int
	Watch    bool
	Schedule string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lineage graph over HTTP",
		Long: `Start a local web server exposing the lineage graph to a viewer.

Endpoints:
  GET /health                 liveness check
  GET /api/lineage            aggregated graph (?pretty=true to indent)
  GET /api/lineage/layout     node positions for the current graph
  GET /api/lineage/updates    server-sent events patching a "lineage" signal

A local results directory is watched and rebuilt on change. Remote sources can
be refreshed on a cron schedule; without either, every request rebuilds,
throttled by server.rebuild_interval.`,
		Example: `  # Serve the default result directory on port 5173
  leaplineage serve

  # Custom port, no watching
  leaplineage serve --port 8080 --watch=false

  # Refresh an S3 source every five minutes
  leaplineage serve --source s3://lineage/results --schedule "*/5 * * * *"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 5173)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Watch a local results directory for changes")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "Cron schedule for periodic rebuilds")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	var watchDir string
	if cfg.Server.Watch && cfg.IsLocalSource() {
		watchDir = cfg.SourceURI()
	}

	srv := server.New(server.Config{
		Service:        cmdCtx.Service,
		Port:           cfg.Server.Port,
		WatchDir:       watchDir,
		Schedule:       cfg.Server.Schedule,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := cfg.Server.Port
	if port == 0 {
		port = server.DefaultPort
	}
	cmdCtx.Renderer.Printf("Serving lineage from %s on http://localhost:%d\n", cmdCtx.Service.SourceName(), port)
	cmdCtx.Renderer.Println("Press Ctrl+C to stop")

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Debug("server stopped", slog.String("reason", fmt.Sprint(context.Cause(ctx))))
	return nil
}
