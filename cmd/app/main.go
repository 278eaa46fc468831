package main

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/bootstrap"
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/repository/migrations"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.LoadAppConfig()

	var db *sqlx.DB
	if cfg.StoreDriver == config.StoreDriverPostgres {
		db = config.InitDB(cfg, migrations.FS)
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("Error closing database connection", "error", err)
			}
		}()
	}

	var redisAdapter *adapter.RedisAdapter
	if cfg.RedisEnabled() {
		var err error
		redisAdapter, err = adapter.NewRedisAdapter(cfg)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisAdapter.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	validate := config.NewValidator()
	chiMux := config.NewChi(cfg)

	app := bootstrap.Init(cfg, db, redisAdapter, validate, chiMux, reg)
	defer app.Limiter.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Hub.Run(ctx)
	if app.Scheduler != nil {
		app.Scheduler.Start()
		defer app.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting CollabChatAPI", "port", cfg.AppPort, "store", cfg.StoreDriver, "redis", cfg.RedisEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
