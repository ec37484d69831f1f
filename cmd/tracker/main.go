// Command tracker serves the expense tracker pages and talks to the expense
// API over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/apiclient"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/cli"
	apphttp "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/http"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(applog.ComponentApp, cfg.LogLevel)

	api := apiclient.New(cfg.APIURL,
		apiclient.WithLogger(logger.WithComponent(applog.ComponentClient)))

	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		SessionTTL:     cfg.SessionTTL,
		MaxSessions:    cfg.MaxSessions,
		CurrencySymbol: cfg.CurrencySymbol,
		DisplayLocale:  cfg.DisplayLocale,
	}, api, logger.WithComponent(applog.ComponentHTTP))
	srv.MaxHeaderBytes = 1 << 16 // 64KB
	srv.Start()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting expense tracker",
		"port", cfg.Port,
		"api_url", cfg.APIURL,
		"locale", cfg.DisplayLocale)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
