package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feedkeep/internal/config"
	"feedkeep/internal/fetch"
	"feedkeep/internal/filter"
	"feedkeep/internal/handler"
	"feedkeep/internal/ids"
	"feedkeep/internal/kvstore"
	"feedkeep/internal/notify"
	"feedkeep/internal/scheduler"
	"feedkeep/internal/secrets"
	"feedkeep/internal/store"
	"feedkeep/internal/syncer"
	"feedkeep/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := ids.Init(0); err != nil {
		logger.Error("id generator init failed", "error", err)
		os.Exit(1)
	}

	kv, err := kvstore.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open store failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	st := store.New(kv, store.Config{
		PerFeedCap:    cfg.PerFeedCap,
		GlobalCap:     cfg.GlobalCap,
		RetentionDays: cfg.RetentionDays,
		LedgerSize:    cfg.LedgerSize,
		FlushDebounce: cfg.FlushDebounce,
	})

	sec := secrets.New(kv, cfg.SecretKey)
	engine := filter.New(st, notify.LogSink{})
	st.SetInvalidator(engine)

	if err := st.Load(context.Background()); err != nil {
		logger.Error("load state failed", "error", err)
		os.Exit(1)
	}

	orch := syncer.New(st, engine, fetch.New(nil), sec, cfg.FetchConcurrency)

	sched := scheduler.New(func(ctx context.Context) error {
		_, err := orch.RefreshAll(ctx)
		if errors.Is(err, syncer.ErrAlreadyRefreshing) {
			return nil
		}
		return err
	}, cfg.RefreshInterval)
	sched.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api := e.Group("/api")
	handler.NewFeedHandler(st, sec).RegisterRoutes(api)
	handler.NewItemHandler(st, engine).RegisterRoutes(api)
	handler.NewRuleHandler(st).RegisterRoutes(api)
	handler.NewRefreshHandler(st, orch).RegisterRoutes(api)
	handler.NewOPMLHandler(st).RegisterRoutes(api)

	go func() {
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("feedkeep started", "addr", cfg.Addr, "refresh_interval", cfg.RefreshInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := st.Close(ctx); err != nil {
		logger.Warn("final flush failed", "error", err)
	}
}
