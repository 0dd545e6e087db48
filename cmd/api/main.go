package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammadpnp/site-import/internal/bootstrap"
	"github.com/mohammadpnp/site-import/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("site import service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	container, err := bootstrap.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Migrate(ctx); err != nil {
		return err
	}
	if err := container.Recover(ctx); err != nil {
		return err
	}

	server := bootstrap.NewHTTPServer(log, container.HTTPServices())
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	container.Executor.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.Server.Port)
		if err := server.Start(":" + strconv.Itoa(cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		stopWorkers()
		container.Executor.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	stopWorkers()
	container.Executor.Wait()
	return nil
}
