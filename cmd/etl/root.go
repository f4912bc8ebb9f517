package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/feedyard/feedlot-etl/internal/batch"
	"github.com/feedyard/feedlot-etl/internal/checksum"
	"github.com/feedyard/feedlot-etl/internal/config"
	"github.com/feedyard/feedlot-etl/internal/db"
	"github.com/feedyard/feedlot-etl/internal/dimension"
	"github.com/feedyard/feedlot-etl/internal/ingestion"
	"github.com/feedyard/feedlot-etl/internal/lifecycle"
	"github.com/feedyard/feedlot-etl/internal/logging"
	"github.com/feedyard/feedlot-etl/internal/repository"
)

const version = "0.3.0"

// app holds every constructed service for one process. Everything is
// built once in newApp and injected; there is no ambient global state.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	conn     *db.Connection
	resolver *dimension.Resolver
	runner   *lifecycle.Runner
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	files := repository.NewFileStateRepository(conn)
	staging := repository.NewStagingRepository(conn)
	audit := repository.NewAuditRepository(conn)
	dead := repository.NewDeadLetterRepository(conn)

	resolver := dimension.NewResolver(dimension.NewPgStore(conn)).WithAudit(audit)

	fallback := rune(0)
	if cfg.Pipeline.FallbackSeparator != "" {
		fallback = rune(cfg.Pipeline.FallbackSeparator[0])
	}
	pipeline := ingestion.NewService(ingestion.ServiceConfig{
		BatchSize: cfg.Pipeline.BatchSize,
		Workers:   cfg.Pipeline.Workers,
		Parser: ingestion.ParserConfig{
			SampleLines:       cfg.Pipeline.SampleLines,
			MinConfidence:     cfg.Pipeline.MinConfidence,
			FallbackSeparator: fallback,
		},
		Validator: ingestion.ValidatorConfig{
			AllowedEquipment:     ingestion.DefaultValidatorConfig().AllowedEquipment,
			MaxPlausibleKg:       cfg.Pipeline.MaxPlausibleKg,
			FutureDateTolerance:  cfg.Pipeline.FutureDateTolerance,
			SuspiciousMultiplier: cfg.Pipeline.SuspiciousMultiplier,
		},
	}, resolver, logger)

	writerCfg := batch.DefaultConfig()
	writerCfg.BatchSize = cfg.Pipeline.BatchSize
	writer := batch.NewWriter(writerCfg, staging, dead, logger)

	machine := lifecycle.NewMachine(files, logger)
	gate := checksum.NewGate(files, audit)
	runner := lifecycle.NewRunner(lifecycle.RunnerConfig{
		Retry: lifecycle.RetryPolicy{
			Base:       cfg.Pipeline.RetryBase,
			MaxRetries: cfg.Pipeline.MaxRetries,
			Jitter:     0.1,
		},
		RunTimeout:    cfg.Pipeline.RunTimeout,
		DryRunCleanup: cfg.Pipeline.DryRunCleanup,
	}, machine, gate, files, staging, audit, dead, pipeline, writer, logger)

	return &app{cfg: cfg, logger: logger, conn: conn, resolver: resolver, runner: runner}, nil
}

func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "feedlot-etl",
		Short: "Feedlot equipment export ETL worker",
		Long:  "Validates, deduplicates and loads feed-loading deviation and pen treatment exports into the warehouse staging area.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	root.AddCommand(processCmd(&configPath))
	root.AddCommand(retryCmd(&configPath))
	root.AddCommand(pendingCmd(&configPath))
	root.AddCommand(cancelCmd(&configPath))
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the worker version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feedlot-etl %s\n", version)
		},
	}
}
