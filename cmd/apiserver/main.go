// Command apiserver runs the control plane's REST transport: directory,
// task, message, budget, human-loop, review, and runner services behind a
// gin HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/api"
	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/humanloop"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/message"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/review"
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

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("failed to apply schema", zap.Error(err))
	}

	var bus pubsub.Bus
	if cfg.NATS.URL != "" {
		log.Info("connecting to NATS", zap.String("url", cfg.NATS.URL))
		natsBus, err := pubsub.NewNATSBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsBus.Close()
		bus = natsBus
	} else {
		log.Info("using in-memory event bus")
		bus = pubsub.NewMemoryBus(log)
	}

	st := postgres.New(db)

	dirSvc := directory.NewService(st, log)
	taskSvc := task.NewService(st, bus, log)
	messageSvc := message.NewService(st, bus, log)
	budgetSvc := budget.NewService(st, budget.DefaultTable(), cfg.Budget, log)
	humanLoopSvc := humanloop.NewService(st, cfg.HumanLoop, log)

	codeHost := review.NewGitCodeHost(cfg.MergeWorker.GitTimeoutSeconds)
	reviewSvc := review.NewService(st, taskSvc, messageSvc, codeHost, log)

	registry := adapter.NewRegistry(cfg.Adapter.DefaultAdapter)
	runnerSvc := runner.New(st, registry, budgetSvc, dirSvc, taskSvc, bus, cfg.Adapter, log)

	server := api.NewServer(dirSvc, taskSvc, messageSvc, budgetSvc, humanLoopSvc, reviewSvc, st.Events(), runnerSvc, cfg.Server, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("api server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down apiserver")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
}
