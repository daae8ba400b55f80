package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/bootstrap"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		util.Fatal("failed to load config", "err", err)
	}

	logger, closeLogs := util.InitLogger(cfg.LogLevel, "gateway", cfg.LogsDir)
	defer closeLogs()

	deps, err := bootstrap.Build(cfg)
	if err != nil {
		util.Fatal("failed to init dependencies", "err", err)
	}
	defer deps.Close()

	httpServer, err := deps.Server()
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, stopWorkers := context.WithCancel(util.ContextWithLogger(context.Background(), logger))
	deps.App.StartWorkers(workerCtx, cfg.QueueConcurrency)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// the cron trigger holds its request open for the whole scrape run
		WriteTimeout: cfg.RunTimeout() + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	stopWorkers()
	deps.Queue.Wait()
}
