package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"magegraph/internal/activities"
	"magegraph/internal/config"
	"magegraph/internal/logging"
	"magegraph/internal/metrics"
	"magegraph/internal/storage"
	"magegraph/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	reg := metrics.NewRegistry()
	activities.Register(w, activities.New(cfg, db, reg, logger))

	if cfg.WorkerMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", reg.Handler())
			if err := http.ListenAndServe(cfg.WorkerMetricsAddr, mux); err != nil {
				logger.Error("worker metrics server stopped", "err", err)
			}
		}()
	}

	logger.Info("magegraph worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "metrics", cfg.WorkerMetricsAddr)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
