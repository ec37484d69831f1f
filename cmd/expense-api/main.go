// Command expense-api serves the expense REST API over the configured
// storage backend.
package main

import (
	"context"
	"os"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/api"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/backend"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/cli"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(applog.ComponentAPI, cfg.LogLevel)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend)).CreateBackend(startCtx, backendCfg)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", backendCfg.Type.String())
		os.Exit(1)
	}

	srv := api.NewServer(":"+cfg.APIPort, result.Service, cfg.CORSAllowOrigins, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("API shutdown error", applog.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("API server error", applog.FieldError, err, "port", cfg.APIPort)
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Expense API stopped gracefully")
}
