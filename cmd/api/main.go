package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollcall/internal/api"
	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logger"
)

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

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, zl); err != nil {
		zl.Fatal("http server failed", zap.Error(err))
	}
}

func run(cfg config.App, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			zl.Warn("close failed", zap.Error(err))
		}
	}()

	// Single-process deployments run the summary worker in-process.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := a.Summary.Run(ctx, a.Queue); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("summary worker stopped", zap.Error(err))
			}
		}()
	}

	r := api.NewRouter(api.Deps{
		Records:           a.Records,
		Calendar:          a.Calendar,
		Attendance:        a.Attendance,
		Roster:            a.Roster,
		Discipline:        a.Discipline,
		Summary:           a.Summary,
		Queue:             a.Queue,
		Timetable:         a.Timetable,
		Gate:              a.Gate,
		Log:               zl,
		RateLimitPerMin:   cfg.RateLimitPerMin,
		PINAttemptsPerMin: cfg.PINAttemptsPerMin,
		Health:            a.Health,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", cfg.StoreBackend),
			zap.String("timezone", a.Calendar.Location().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced shutdown", zap.Error(err))
	}
	zl.Info("server exited")
	return nil
}
