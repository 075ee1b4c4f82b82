package main

import (
	"context"
	"errors"
	"os"
	"time"

	"rewards/internal/cli"
	"rewards/internal/log"
	"rewards/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	logger.Info("Starting rewards-worker", log.FieldBackend, cfg.DataBackend)

	result := cli.InitBackend(context.Background(), logger, cfg)
	if result.Writer == nil {
		logger.Error("Ledger backend is read-only, nothing to store messages into", log.FieldBackend, cfg.DataBackend)
		result.Close()
		os.Exit(1)
	}

	amqpClient := cli.InitAMQP(logger, cfg, true)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		result.Close()
	})

	ingest := worker.NewIngestWorker(result.Writer, logger)
	if err := ingest.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
