package main

import (
	"context"
	"flag"
	"os"
	"time"

	"rewards/internal/cli"
	"rewards/internal/ledger"
	"rewards/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()

	file := flag.String("file", cfg.SeedFile, "YAML seed file to load")
	publish := flag.Bool("publish", false, "publish purchases to the ingestion queue instead of writing them")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	txs, err := ledger.LoadSeedFile(*file)
	if err != nil {
		logger.Error("Failed to load seed file", log.FieldError, err, "file", *file)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *publish {
		client := cli.InitAMQP(logger, cfg, true)
		defer client.Close()

		for _, tx := range txs {
			id, err := client.PublishTransactionRecorded(ctx, tx)
			if err != nil {
				logger.Error("Failed to publish purchase", log.FieldError, err, log.FieldCustomerID, tx.CustomerID)
				os.Exit(1)
			}
			logger.Debug("Published purchase", log.FieldMessageID, id, log.FieldCustomerID, tx.CustomerID)
		}
		logger.Info("Seed published", log.FieldTransactionCount, len(txs), "file", *file)
		return
	}

	result := cli.InitBackend(ctx, logger, cfg)
	defer result.Close()

	if result.Seeder == nil {
		logger.Error("Backend cannot be seeded, use -publish or a SQL or DynamoDB ledger", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	n, err := result.Seeder.Seed(ctx, txs)
	if err != nil {
		logger.Error("Seeding failed", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Seed loaded", log.FieldTransactionCount, n, "file", *file, log.FieldBackend, cfg.DataBackend)
}
