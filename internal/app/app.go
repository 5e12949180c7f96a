// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/calendar"
	"rollcall/internal/cloudinary"
	"rollcall/internal/config"
	"rollcall/internal/discipline"
	"rollcall/internal/queue"
	"rollcall/internal/records"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/internal/summary"
	"rollcall/internal/timetable"
)

const queueKey = "rollcall:jobs"

// App holds the constructed services.
type App struct {
	Config     config.App
	Log        *zap.Logger
	KV         store.KV
	Redis      *store.Redis
	Records    *records.Store
	Calendar   *calendar.Calendar
	Attendance *attendance.Service
	Roster     *roster.Service
	Discipline *discipline.Service
	Summary    *summary.Service
	Queue      queue.Queue
	Timetable  *timetable.Service
	Gate       *auth.Gate
}

// New opens the store and builds every service.
func New(cfg config.App, log *zap.Logger) (*App, error) {
	cal, err := calendar.Load(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(store.Options{
		Backend:     cfg.StoreBackend,
		BadgerDir:   cfg.BadgerDir,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		QuotaBytes:  cfg.StoreQuotaBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	a := &App{Config: cfg, Log: log, KV: kv, Calendar: cal}

	if cfg.QueueBackend == "redis" {
		a.Redis = store.NewRedis(cfg.RedisAddr, "")
	}
	a.Queue, err = queue.New(cfg.QueueBackend, a.redisClient(), queueKey, log)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	a.Records = records.New(kv, log)
	a.Attendance = attendance.NewService(attendance.NewRepository(a.Records, cal), a.Records, cal, log)
	a.Roster = roster.NewService(a.Records, cfg.PublicBaseURL, log)
	a.Discipline = discipline.NewService(a.Records, cal, log)
	gen := summary.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SummarySkip)
	a.Summary = summary.NewService(a.Attendance, a.Discipline, a.Records, cal, gen, log)

	var mirror timetable.Mirror
	if cfg.CloudinaryEnabled() {
		mirror = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Info("timetable mirror enabled", zap.String("cloud", cfg.CloudinaryCloudName))
	}
	a.Timetable = timetable.NewService(a.Records, mirror, cfg.TimetableMaxWidth, log)

	a.Gate = auth.NewGate(a.Records, auth.GateConfig{
		StaffPIN:   cfg.StaffPIN,
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.TrustTTL,
	}, log)

	return a, nil
}

func (a *App) redisClient() *redis.Client {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Client
}

// Health probes the store and, when used, redis.
func (a *App) Health(ctx context.Context) map[string]bool {
	checks := map[string]bool{}
	_, err := a.KV.Get(ctx, "health:ping")
	checks["store"] = err == nil || errors.Is(err, store.ErrNotFound)
	if a.Redis != nil {
		checks["redis"] = a.Redis.Healthy(ctx)
	}
	return checks
}

// Close releases the store and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	errs = append(errs, a.KV.Close())
	return errors.Join(errs...)
}
