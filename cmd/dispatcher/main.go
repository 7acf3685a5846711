// Command dispatcher runs the notification-driven scheduler: it listens on
// Postgres channels for work, polls as a fallback, and reconciles stuck
// state on an interval (§4.5).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/dispatcher"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/runner"
	"github.com/openclaw/openclaw/internal/store/postgres"
	"github.com/openclaw/openclaw/internal/task"
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

	var bus pubsub.Bus
	if cfg.NATS.URL != "" {
		natsBus, err := pubsub.NewNATSBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsBus.Close()
		bus = natsBus
	} else {
		bus = pubsub.NewMemoryBus(log)
	}

	st := postgres.New(db)
	dirSvc := directory.NewService(st, log)
	taskSvc := task.NewService(st, bus, log)
	budgetSvc := budget.NewService(st, budget.DefaultTable(), cfg.Budget, log)

	registry := adapter.NewRegistry(cfg.Adapter.DefaultAdapter)
	runnerSvc := runner.New(st, registry, budgetSvc, dirSvc, taskSvc, bus, cfg.Adapter, log)

	d := dispatcher.New(st, cfg.Database, cfg.Dispatcher, runnerSvc, bus, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("dispatcher starting")
		errCh <- d.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down dispatcher")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error("dispatcher stopped with error", zap.Error(err))
		}
	}
}
