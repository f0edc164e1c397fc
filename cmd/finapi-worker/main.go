package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finapi/internal/amqp"
	"finapi/internal/backend"
	"finapi/internal/cli"
	"finapi/internal/config"
	"finapi/internal/core"
	applog "finapi/internal/log"
	gsheet "finapi/internal/sheets/google"
	"finapi/internal/worker"
)

const connectAttempts = 5

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting finapi-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, connectAttempts)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer cli.RunCleanup(logger, cfg.ShutdownTimeout, amqpClient.Close)

	mirrorWorker := worker.NewMirrorWorker(sheetsClient)

	logger.Info("Performing startup backfill...")
	backfillCurrentMonth(ctx, logger, cfg, mirrorWorker)

	err = amqpClient.ConsumeTransactionRecorded(ctx, mirrorWorker.HandleRecorded)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		cli.RunCleanup(logger, cfg.ShutdownTimeout, amqpClient.Close)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

// backfillCurrentMonth mirrors the records of the current month that were
// stored while the worker was down. Failures are logged and do not stop the
// worker.
func backfillCurrentMonth(ctx context.Context, logger *applog.Logger, cfg *config.Config, w *worker.MirrorWorker) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Warn("Skipping backfill: invalid backend configuration", applog.FieldError, err)
		return
	}
	// The worker only reads; it must not publish events of its own.
	bcfg.AMQPURL = ""

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Warn("Skipping backfill: backend unavailable", applog.FieldError, err, "type", bcfg.Type.String())
		return
	}
	defer func() { _ = res.Cleanup() }()

	pk := core.PartitionKey(core.AnonymousOwner, core.PeriodOf(time.Now()))
	if err := w.Backfill(ctx, res.Store, pk); err != nil {
		logger.Error("Startup backfill failed", applog.FieldError, err, "pk", pk)
	}
}
