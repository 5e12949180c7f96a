package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logger"
)

// Worker consumes summary jobs and schedules the end-of-day summary.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, zl)
	if err != nil {
		zl.Fatal("init failed", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	if cfg.QueueBackend == "memory" {
		zl.Warn("memory queue selected; this worker only sees jobs it schedules itself")
	}

	c := cron.New(
		cron.WithLocation(a.Calendar.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if cfg.SummaryCron != "" {
		_, err := c.AddFunc(cfg.SummaryCron, func() {
			day := a.Calendar.Today()
			if err := a.Summary.Enqueue(ctx, a.Queue, day); err != nil {
				zl.Error("schedule summary failed", zap.String("day", day.String()), zap.Error(err))
				return
			}
			zl.Info("summary scheduled", zap.String("day", day.String()))
		})
		if err != nil {
			zl.Fatal("bad SUMMARY_CRON", zap.String("spec", cfg.SummaryCron), zap.Error(err))
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	if err := a.Summary.Run(ctx, a.Queue); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("worker stopped", zap.Error(err))
	}
	zl.Info("worker stopped")
}
