package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/cli"
	"gastos/internal/core"
	apphttp "gastos/internal/http"
	"gastos/internal/log"
	"gastos/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the combined expense API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := cli.SignalContext(cmd.Context(), logger)
	defer cancel()

	res, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	reportCache := cache.NewLRUCache[core.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(reportCache)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	reports := services.NewReportService(res.Store, reportCache, logger)

	mq, err := openAMQP()
	if err != nil {
		// Reports still work without messaging, they just expire by TTL.
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
	}
	if mq != nil {
		defer mq.Close()
		go func() {
			err := mq.ConsumeExpensesChanged(ctx, func(ctx context.Context, msg *amqp.ExpensesChangedMessage) error {
				logger.InfoContext(ctx, "Expenses changed elsewhere, invalidating reports",
					log.FieldMessageID, msg.ID, "source", msg.Source, "count", msg.Count)
				reports.Invalidate()
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Expenses changed consumer stopped", log.FieldError, err)
			}
		}()
	}

	srv := apphttp.NewServer(":"+cfg.Port, reports, res.Store, cfg.Location(), logger,
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithTrustedProxies(cfg.TrustedProxyPrefixes()))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting gastos server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	case <-ctx.Done():
	}
	return cli.GracefulShutdown(ctx, logger, 30*time.Second, srv.Shutdown)
}
