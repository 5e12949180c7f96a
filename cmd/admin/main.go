package main

import (
	"errors"
	"log"
	"os"

	"go.uber.org/zap"

	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	a, err := app.New(cfg, zl)
	if err != nil {
		zl.Fatal("init failed", zap.Error(err))
	}

	cli := &commandLine{
		recs:       a.Records,
		cal:        a.Calendar,
		attendance: a.Attendance,
		roster:     a.Roster,
		out:        os.Stdout,
		in:         os.Stdin,
	}
	err = cli.run(os.Args)
	_ = a.Close()
	if err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		zl.Fatal("command failed", zap.Error(err))
	}
}
