package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"hyperbatch/internal/archive"
	"hyperbatch/internal/artifacts"
	"hyperbatch/internal/batch"
	"hyperbatch/internal/config"
	"hyperbatch/internal/report"
	"hyperbatch/internal/runner"
	"hyperbatch/internal/schema"
	"hyperbatch/internal/sheets"
)

func main() {
	// .env is optional, environment variables win either way
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	// Ctrl-C finishes the current run's bookkeeping and stops the batch.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordSchema, err := schema.New(cfg.Schema.ContextFields, cfg.Schema.StrategyFields, cfg.Schema.MetricFields)
	if err != nil {
		logger.WithError(err).Fatal("Invalid record schema")
	}

	client, err := sheets.NewClient(ctx, logger, cfg.Sheets.CredentialsFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create sheets client")
	}
	results := client.Worksheet(cfg.Sheets.ResultsSpreadsheetID, cfg.Sheets.ResultsWorksheet)
	runs := client.Worksheet(cfg.Sheets.ConfigSpreadsheetID, cfg.Sheets.ConfigWorksheet)

	var archiver batch.Archiver
	if cfg.Archive.Enabled {
		db, err := archive.NewPostgresConnection(cfg.Archive)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to archive database")
		}
		defer db.Close()

		repo := archive.NewRepository(logger, db.Pool)
		if err := repo.Init(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to initialize archive table")
		}
		archiver = repo
	}

	var notifier batch.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		n, err := batch.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.WithError(err).Warn("Failed to create telegram notifier, continuing without")
		} else {
			notifier = n
		}
	}

	orchestrator := batch.New(logger, batch.Options{
		Schema: recordSchema,
		Source: sheets.NewRunSource(logger, runs),
		Runner: runner.New(logger, runner.Options{
			Image:                 cfg.Docker.Image,
			HostUserDataPath:      cfg.Docker.HostUserDataPath,
			ContainerUserDataPath: cfg.Docker.ContainerUserDataPath,
			DefaultJobs:           cfg.Hyperopt.DefaultJobs,
			ShowOutputFile:        cfg.Hyperopt.ShowOutputFile,
		}),
		Finder: artifacts.NewFinder(logger, cfg.Hyperopt.ResultsDir, cfg.Hyperopt.SettleDelayDuration()),
		Extractor: report.NewExtractor(logger, report.ExtractorOptions{
			PassthroughMetrics: cfg.Report.PassthroughMetrics,
			StrategyAliases:    cfg.Schema.StrategyAliases,
		}),
		Writer:              sheets.NewWriter(logger, results, report.FieldRunNumber),
		Archive:             archiver,
		Notifier:            notifier,
		DefaultConfigFile:   cfg.Docker.DefaultConfig,
		DefaultLossFunction: cfg.Hyperopt.DefaultLossFunction,
	})

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Batch aborted")
	}

	logger.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Batch finished")
	for _, msg := range summary.Errors {
		logger.Warn(msg)
	}
}
