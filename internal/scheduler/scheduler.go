package scheduler

import (
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/scheduler/job"
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cfg      *config.AppConfig
	cron     *cron.Cron
	requests job.RequestExpirer
}

func New(cfg *config.AppConfig, requests job.RequestExpirer) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		cron:     cron.New(),
		requests: requests,
	}
}

func (s *Scheduler) Start() {
	slog.Info("Starting Scheduler...")

	s.registerJobs()

	s.cron.Start()
	slog.Info("Scheduler started successfully", "jobs", len(s.cron.Entries()))
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) registerJobs() {
	if s.cfg.RequestRetentionDays <= 0 {
		slog.Info("Request Expiry Job disabled", "retentionDays", s.cfg.RequestRetentionDays)
		return
	}

	retention := time.Duration(s.cfg.RequestRetentionDays) * 24 * time.Hour
	_, err := s.cron.AddFunc(s.cfg.RequestExpiryCron, func() {
		slog.Info("Starting Request Expiry Job")
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job.RunRequestExpiry(ctx, s.requests, retention); err != nil {
			slog.Error("Request Expiry Job failed", "error", err)
		} else {
			slog.Info("Request Expiry Job completed")
		}
	})
	if err != nil {
		slog.Error("Failed to register Request Expiry job", "error", err)
	} else {
		slog.Info("Registered Request Expiry Job", "schedule", s.cfg.RequestExpiryCron)
	}
}
