package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/retention"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
	"github.com/hochfrequenz/e2e-self-heal/internal/tracing"
	"github.com/hochfrequenz/e2e-self-heal/web/api"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the log ingestion server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to bind (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, port := cfg.Ingest.Host, cfg.Ingest.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(cfg.Tracing.ServiceName, os.Stderr)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening run index: %w", err)
	}
	defer store.Close()

	logs := runlogs.NewStore(cfg.ProjectPath(cfg.Ingest.LogsRoot), cfg.Ingest.FallbackRoot)

	if cfg.Ingest.Token == "" {
		logger.Warn("DEVELOPER_AGENT_TOKEN is not set; every ingestion request will be rejected")
	}

	pruner := retention.NewPruner(logs.Roots(), store, cfg.Ingest.RetentionDays, logger)
	stopPruner, err := pruner.Start(ctx, cfg.Ingest.RetentionSchedule)
	if err != nil {
		return err
	}
	defer stopPruner()

	srv := api.NewServer(store, logs, api.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Token:        cfg.Ingest.Token,
		MaxBodyBytes: cfg.Ingest.MaxBodyBytes,
		Branch:       cfg.FixAgent.Branch,
		Base:         cfg.FixAgent.Base,
	}, logger)

	summary(okColor, "Listening on http://%s:%d", host, port)
	if err := srv.Serve(ctx); err != nil {
		return err
	}
	logger.Info("server stopped", zap.Error(context.Cause(ctx)))
	return nil
}
