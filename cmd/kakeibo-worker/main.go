package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	applog "kakeibo/internal/log"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting kakeibo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(repo, sheetsClient, sheetsClient, cfg.MirrorBatchSize)

	// Catch up on entries stored while the worker was down.
	logger.Info("Performing startup mirror check...")
	if err := mirror.StartupCheck(ctx); err != nil {
		logger.Error("Startup mirror check failed", "error", err)
	}

	go func() {
		if err := amqpClient.ConsumeEntryCreated(ctx, mirror.HandleEntryCreated); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			stop()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		mirror.Run(ctx, cfg.MirrorInterval)
	}()

	<-ctx.Done()
	cli.Shutdown(logger.Logger, 30*time.Second, func(ctx context.Context) error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
