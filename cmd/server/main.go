// Package main is the entry point for the cafepos API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafepos/internal/app"
	"cafepos/internal/config"
	v1 "cafepos/internal/infrastructure/http/v1"
	"cafepos/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting cafepos server", "env", cfg.Env)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()
	a.Pool.LogStats(ctx)

	routerCfg := v1.RouterConfig{
		Logger:               log,
		JWTValidator:         a.JWT,
		AuthService:          a.Auth,
		Catalog:              a.Catalog,
		Checker:              a.Checker,
		Inventory:            a.Inventory,
		Variance:             a.Variance,
		Forecast:             a.Forecast,
		Orders:               a.Orders,
		Prep:                 a.Prep,
		CriticalStockPercent: cfg.CriticalStockPercent,
		Pool:                 a.Pool,
	}
	if a.Cache != nil {
		routerCfg.Cache = a.Cache
	}
	if cfg.IdempotencyEnabled {
		routerCfg.Idempotency = a.Idem
	}

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr, "idempotency", cfg.IdempotencyEnabled, "cache", a.Cache != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
