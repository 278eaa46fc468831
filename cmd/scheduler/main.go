package main

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/repository"
	"CollabChatAPI/internal/scheduler"
	"CollabChatAPI/internal/service"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.LoadAppConfig()
	if cfg.StoreDriver != config.StoreDriverPostgres {
		slog.Error("Scheduler requires the postgres store driver; the app runs jobs in-process with the memory driver")
		os.Exit(1)
	}

	cfg.DBMigrate = false

	db := config.InitDB(cfg, nil)
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
		}
	}()

	store := repository.NewPostgresRegistry(db)
	repo := repository.NewRepository(store, nil)
	directory := adapter.NewPostgresDirectory(db, nil, time.Duration(cfg.IdentityCacheTTLSeconds)*time.Second)

	// Expiry never broadcasts, so the service runs without a hub here.
	requestService := service.NewRequestService(repo, config.NewValidator(), directory, nil, nil)

	srv := scheduler.New(cfg, requestService)

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down scheduler...")
	srv.Stop()
}
