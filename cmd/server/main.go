package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/gischat/internal/history"
	"github.com/Tyrowin/gischat/internal/logger"
	"github.com/Tyrowin/gischat/internal/redisdb"
	"github.com/Tyrowin/gischat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gischat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)
	log.Info("Starting gischat server",
		slog.String("version", server.Version),
		slog.Any("channels", cfg.Channels),
		slog.String("instance_id", cfg.InstanceID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store  history.Store
		checks []server.ReadinessCheck
	)
	if cfg.Redis.Enabled() {
		client, err := redisdb.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("Error closing redis client", logger.Error(err))
			}
		}()
		store = history.NewRedisStore(client, cfg.InstanceID, cfg.MaxStoredMessages)
		checks = append(checks, redisdb.Healthcheck(client))
		log.Info("Using redis message history")
	} else {
		store = history.NewMemoryStore(cfg.MaxStoredMessages)
		log.Info("Using in-memory message history")
	}

	hub := server.NewHub(*cfg, store, log)
	mux := server.SetupRoutes(hub, checks...)
	httpServer := server.CreateServer(cfg.Port, mux)

	if err := server.Run(ctx, httpServer, hub, log); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
