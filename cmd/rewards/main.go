package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rewards/internal/cache"
	"rewards/internal/cli"
	"rewards/internal/core"
	apphttp "rewards/internal/http"
	"rewards/internal/log"
	"rewards/internal/services"
)

const cacheCleanupInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	result := cli.InitBackend(context.Background(), logger, cfg)

	// Purchases are queued for the worker when a broker is reachable.
	var publisher services.TransactionPublisher
	if client := cli.InitAMQP(logger, cfg, false); client != nil {
		publisher = client
	}

	txService := services.NewTransactionService(result.Writer, publisher, logger)
	rewardService := services.NewRewardService(result.Source, core.SystemClock{}, services.RewardConfig{
		LookupConcurrency: cfg.LookupConcurrency,
		LookupTimeout:     cfg.LookupTimeout,
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Rewards:      rewardService,
		Transactions: txService,
		Pinger:       result.Pinger,
		CacheStats:   result.CacheStats,
		Backend:      cfg.DataBackend,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(result.Cache)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Wait()
		if err := txService.Close(); err != nil {
			logger.Error("Failed to close publisher", log.FieldError, err)
		}
		result.Close()
	})
	cacheManager.Start(ctx, cacheCleanupInterval)

	logger.Info("Starting rewards server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"queued_writes", publisher != nil,
		"writable", txService.Writable())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
