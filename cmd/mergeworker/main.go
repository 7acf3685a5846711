// Command mergeworker runs the background merge loop: it claims queued
// MergeJobs and executes the rebase/merge/squash git strategies (§4.7).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/merge"
	"github.com/openclaw/openclaw/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := dbx.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	st := postgres.New(db)
	worker := merge.NewWorker(st, merge.Config{
		PollIntervalSeconds: cfg.MergeWorker.PollIntervalSeconds,
		GitTimeoutSeconds:   cfg.MergeWorker.GitTimeoutSeconds,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("merge worker starting")
		errCh <- worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down merge worker")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error("merge worker stopped with error", zap.Error(err))
		}
	}
}
