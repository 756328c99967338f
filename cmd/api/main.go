package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"magegraph/internal/api"
	"magegraph/internal/config"
	"magegraph/internal/logging"
	"magegraph/internal/metrics"
	"magegraph/internal/storage"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		log.Fatal(err)
	}
	defer tc.Close()

	h := api.NewServer(cfg, db, tc, metrics.NewRegistry(), logger)
	logger.Info("magegraph api listening", "addr", cfg.APIAddr, "task_queue", cfg.TemporalTaskQueue)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
