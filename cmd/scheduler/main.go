package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/gek007/ai-news-aggregator/internal/bootstrap"
	"github.com/gek007/ai-news-aggregator/internal/config"
	"github.com/gek007/ai-news-aggregator/internal/observability/logging"
	"github.com/gek007/ai-news-aggregator/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.New("scheduler", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	pipelineMetrics := metrics.NewPipelineMetrics("scheduler")
	mux := http.NewServeMux()
	mux.Handle("/metrics", pipelineMetrics.Handler())
	metricsServer := &http.Server{
		Addr:         ":" + cfg.SchedulerMetricsPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "port", cfg.SchedulerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	window := time.Duration(cfg.WindowHours) * time.Hour
	runOnce := func() {
		pipelineMetrics.StartRun()
		started := time.Now()

		report, err := app.Pipeline.Run(ctx, window, cfg.DigestLimit)
		pipelineMetrics.FinishRun("scheduler", report, time.Since(started), err)
		if err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.ScheduleSpec, runOnce); err != nil {
		logger.Error("invalid schedule", "spec", cfg.ScheduleSpec, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("scheduler started", "spec", cfg.ScheduleSpec, "window", window, "limit", cfg.DigestLimit)

	<-ctx.Done()
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
