// Package main is the entry point for the cafepos background worker.
//
// The worker relays the outbox (low-stock mail, forecast cache
// invalidation), expires unpaid orders and prunes expired idempotency keys
// and refresh tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cafepos/internal/app"
	"cafepos/internal/config"
	"cafepos/internal/infrastructure/notify"
	"cafepos/internal/infrastructure/storage/postgres"
	"cafepos/pkg/logger"
)

const (
	cleanupInterval    = time.Hour
	publishedRetention = 7 * 24 * time.Hour
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting cafepos worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	worker := NewWorker(a, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic jobs.
type Worker struct {
	app   *app.App
	relay *postgres.OutboxRelay
	log   *logger.Logger
}

// NewWorker builds the outbox relay with mail and cache subscribers.
func NewWorker(a *app.App, log *logger.Logger) *Worker {
	cfg := a.Config
	d := &dispatcher{
		notifier: notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			To:       notify.ParseRecipients(cfg.AlertEmailTo),
		}),
	}
	if a.Cache != nil {
		d.invalidator = a.Cache
	}

	return &Worker{
		app:   a,
		relay: postgres.NewOutboxRelay(a.TxM, d, 100),
		log:   log.WithComponent("worker"),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.app.Config.WorkerPollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	w.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
			w.expireOrders(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	n, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox batch failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Debugw("processed outbox batch", "count", n)
	}
}

func (w *Worker) expireOrders(ctx context.Context) {
	n, err := w.app.Orders.ExpireStale(ctx, w.app.Config.PendingOrderTTL)
	if err != nil {
		w.log.Errorw("expire pending orders failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("expired pending orders", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.app.Auth.CleanupExpiredTokens(ctx); err != nil {
		w.log.Errorw("cleanup refresh tokens failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up expired sessions", "count", n)
	}

	if n, err := w.app.Idem.CleanupExpired(ctx); err != nil {
		w.log.Errorw("cleanup idempotency keys failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	if n, err := w.relay.PurgePublished(ctx, time.Now().UTC().Add(-publishedRetention)); err != nil {
		w.log.Errorw("purge outbox failed", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}
}
