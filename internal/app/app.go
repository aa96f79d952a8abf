// Package app wires repositories and services on top of PostgreSQL. The
// server, worker and seed binaries share it.
package app

import (
	"context"
	"fmt"
	"time"

	"cafepos/internal/config"
	"cafepos/internal/domain/auth"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/forecast"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/orders"
	"cafepos/internal/domain/prep"
	"cafepos/internal/domain/variance"
	"cafepos/internal/infrastructure/cache"
	"cafepos/internal/infrastructure/storage/postgres"
	"cafepos/internal/infrastructure/storage/postgres/auth_repo"
	"cafepos/internal/infrastructure/storage/postgres/catalog_repo"
	"cafepos/internal/infrastructure/storage/postgres/inventory_repo"
	"cafepos/internal/infrastructure/storage/postgres/order_repo"
	"cafepos/internal/infrastructure/storage/postgres/prep_repo"
	"cafepos/internal/infrastructure/storage/postgres/variance_repo"
	"cafepos/pkg/logger"
)

// App holds the wired dependencies.
type App struct {
	Config config.Config

	Pool   *postgres.Pool
	TxM    *postgres.TxManager
	Audit  *postgres.AuditService
	Outbox *postgres.OutboxPublisher
	Idem   *postgres.IdempotencyStore

	// Cache is nil when REDIS_ADDR is not set.
	Cache *cache.RedisForecastCache

	JWT  *auth.JWTService
	Auth *auth.Service

	Catalog   *catalog.Service
	Checker   *availability.Checker
	Inventory *inventory.Service
	Engine    *deduction.Engine
	Variance  *variance.Tracker
	Forecast  *forecast.Service
	Orders    *orders.Service
	Prep      *prep.Service
}

// New connects to PostgreSQL and, when configured, Redis, then builds every service.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := postgres.NewTxManager(pool)
	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{
		Config: cfg,
		Pool:   pool,
		TxM:    txm,
		Audit:  auditSvc,
		Outbox: postgres.NewOutboxPublisher(txm),
		Idem:   postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
	}

	var forecastCache forecast.Cache
	if cfg.RedisAddr != "" {
		a.Cache = cache.NewRedisForecastCache(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.Cache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, forecasts will not be cached until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		forecastCache = a.Cache
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	if cfg.JWTTTL > 0 {
		jwtCfg.AccessTokenTTL = cfg.JWTTTL
	}
	a.JWT = auth.NewJWTService(jwtCfg)
	a.Auth = auth.NewService(auth_repo.NewUserRepo(txm), auth_repo.NewTokenRepo(txm), a.JWT, auth.DefaultServiceConfig())

	products := catalog_repo.NewProductRepo(txm)
	recipes := catalog_repo.NewRecipeRepo(txm)
	ingredients := inventory_repo.NewIngredientRepo(txm)
	ledger := inventory_repo.NewLedgerRepo(txm)
	payments := order_repo.NewPaymentRepo(txm)

	a.Catalog = catalog.NewService(txm, products, recipes, ingredients)
	a.Checker = availability.NewChecker(products, recipes, ingredients)
	a.Inventory = inventory.NewService(txm, ingredients, ledger, auditSvc)
	a.Engine = deduction.NewEngine(deduction.Config{
		TxManager:   txm,
		Products:    products,
		Recipes:     recipes,
		Ingredients: ingredients,
		Ledger:      ledger,
		Events:      a.Outbox,
	})
	a.Variance = variance.NewTracker(variance.Config{
		TxManager:   txm,
		Ingredients: ingredients,
		Ledger:      ledger,
		Waste:       variance_repo.NewWasteRepo(txm),
		Counts:      variance_repo.NewCountRepo(txm),
		Records:     variance_repo.NewRecordRepo(txm),
		Events:      a.Outbox,
		Audit:       auditSvc,
		Now:         time.Now,
	})
	a.Forecast = forecast.NewService(payments, forecastCache, cfg.ForecastCacheTTL)
	a.Orders = orders.NewService(orders.Config{
		TxManager: txm,
		Orders:    order_repo.NewOrderRepo(txm),
		Payments:  payments,
		Products:  products,
		Checker:   a.Checker,
		Engine:    a.Engine,
		Events:    a.Outbox,
		Audit:     auditSvc,
		Now:       time.Now,
	})
	a.Prep = prep.NewService(txm, prep_repo.NewBatchRepo(txm), recipes, a.Engine)

	return a, nil
}

// Close releases the pool and the cache client.
func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	a.Pool.Close()
}
