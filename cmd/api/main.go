package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/quartermasterhq/quartermaster/internal/api/routes"
	"github.com/quartermasterhq/quartermaster/internal/config"
	"github.com/quartermasterhq/quartermaster/internal/database"
	"github.com/quartermasterhq/quartermaster/internal/logger"
	"github.com/quartermasterhq/quartermaster/internal/server"
	"github.com/quartermasterhq/quartermaster/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(false, os.Stderr)
		logger.Log().WithError(err).Fatal("load config")
	}

	// Log with rotation to both stdout and file
	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "quartermaster.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.WithFields(map[string]interface{}{
		"version": version.Full(),
		"env":     cfg.Environment,
	}).Infof("starting %s backend", version.Name)

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		logger.Log().WithError(err).Fatal("connect database")
	}

	router := server.NewRouter(cfg.Environment, cfg.FrontendDir)

	deps, err := routes.Register(router, db, cfg)
	if err != nil {
		logger.Log().WithError(err).Fatal("register routes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic seat-counter reconciliation against the ledger
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		repaired, err := deps.Reconciler.Run(ctx)
		if err != nil {
			logger.Log().WithError(err).Error("reconcile sweep failed")
			return
		}
		if repaired > 0 {
			logger.WithFields(map[string]interface{}{"repaired": repaired}).Warn("reconciled drifted seat counters")
		}
	}); err != nil {
		logger.Log().WithError(err).Fatal("schedule reconciler")
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.WithFields(map[string]interface{}{"port": cfg.HTTPPort}).Info("listening")
	if err := server.Run(ctx, router, cfg.HTTPPort); err != nil {
		logger.Log().WithError(err).Fatal("server error")
	}
}
