package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gek007/ai-news-aggregator/internal/bootstrap"
	"github.com/gek007/ai-news-aggregator/internal/config"
	"github.com/gek007/ai-news-aggregator/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	hours := flag.Int("hours", cfg.WindowHours, "how many hours to look back")
	limit := flag.Int("limit", cfg.DigestLimit, "max stories per digest")
	flag.Parse()

	if *hours <= 0 || *limit <= 0 {
		log.Fatalf("invalid arguments: hours=%d limit=%d", *hours, *limit)
	}

	logger := logging.New("runner", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	report, err := app.Pipeline.Run(ctx, time.Duration(*hours)*time.Hour, *limit)
	app.Close()
	if err != nil {
		// Item-scoped failures are already inside the report; reaching here
		// means the run itself could not complete.
		runID := ""
		if report != nil {
			runID = report.RunID
		}
		logger.Error("run aborted", "run_id", runID, "error", err)
		os.Exit(1)
	}
}
