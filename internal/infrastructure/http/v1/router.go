// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cafepos/internal/domain/auth"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/forecast"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/orders"
	"cafepos/internal/domain/prep"
	"cafepos/internal/domain/variance"
	"cafepos/internal/infrastructure/http/v1/handlers"
	"cafepos/internal/infrastructure/http/v1/middleware"
	"cafepos/internal/infrastructure/storage/postgres"
	"cafepos/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	AuthService  *auth.Service

	Catalog   *catalog.Service
	Checker   *availability.Checker
	Inventory *inventory.Service
	Variance  *variance.Tracker
	Forecast  *forecast.Service
	Orders    *orders.Service
	Prep      *prep.Service

	// CriticalStockPercent is the default threshold for /ingredients/critical.
	CriticalStockPercent decimal.Decimal

	// Pool is used by health checks only; nil skips the health routes.
	Pool *postgres.Pool

	// Cache is reported by the readiness check when set.
	Cache handlers.Pinger

	// Idempotency enables X-Idempotency-Key handling when non-nil.
	Idempotency middleware.IdempotencyStore
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Pool != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Cache)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		base := handlers.NewBaseHandler()
		registerAuthRoutes(v1, protected, base, cfg)
		registerCatalogRoutes(protected, base, cfg)
		registerInventoryRoutes(protected, base, cfg)
		registerReportRoutes(protected, base, cfg)
		registerOrderRoutes(protected, base, cfg)
		registerPrepRoutes(protected, base, cfg)
	}

	return router
}

// registerAuthRoutes registers login endpoints and the admin staff list.
func registerAuthRoutes(public, protected *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}
	h := handlers.NewAuthHandler(base, cfg.AuthService)

	h.RegisterRoutes(public.Group("/auth"), protected.Group("/auth"))
	h.RegisterStaffRoutes(protected.Group("/staff", adminOnly()))
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Catalog == nil {
		return
	}
	h := handlers.NewCatalogHandler(base, cfg.Catalog, cfg.Checker)

	products := rg.Group("/products")
	products.GET("", staff(), h.List)
	products.POST("", adminOnly(), h.Create)
	products.GET("/:id", staff(), h.Get)
	products.GET("/:id/recipe", staff(), h.GetRecipe)
	products.GET("/:id/availability", staff(), h.Availability)

	rg.POST("/availability/check", staff(), h.CheckBatch)
}

func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Inventory == nil {
		return
	}
	h := handlers.NewInventoryHandler(base, cfg.Inventory, cfg.Variance, cfg.CriticalStockPercent)

	ingredients := rg.Group("/ingredients")
	ingredients.GET("", staff(), h.List)
	ingredients.POST("", adminOnly(), h.Create)
	ingredients.GET("/low-stock", staff(), h.LowStock)
	ingredients.GET("/critical", staff(), h.Critical)
	ingredients.GET("/:id", staff(), h.Get)
	ingredients.GET("/:id/history", adminOnly(), h.History)
	ingredients.POST("/:id/availability", staff(), h.SetAvailability)

	if cfg.Variance == nil {
		return
	}
	v := handlers.NewVarianceHandler(base, cfg.Variance, cfg.Forecast)
	ingredients.POST("/:id/waste", adminOnly(), v.LogWaste)
	ingredients.POST("/:id/counts", adminOnly(), v.RecordCount)
	ingredients.GET("/:id/variance", adminOnly(), v.Variance)
	ingredients.POST("/:id/variance", adminOnly(), v.RecordVariance)
	ingredients.GET("/:id/usage", adminOnly(), v.Usage)
}

func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Variance == nil {
		return
	}
	v := handlers.NewVarianceHandler(base, cfg.Variance, cfg.Forecast)

	reports := rg.Group("/reports", adminOnly())
	reports.GET("/waste", v.WasteReport)
	reports.GET("/variance", v.VarianceAnalysis)
	if cfg.Forecast != nil {
		reports.GET("/forecast", v.Forecast)
	}
}

func registerOrderRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Orders == nil {
		return
	}
	h := handlers.NewOrderHandler(base, cfg.Orders)

	group := rg.Group("/orders", staff())
	group.POST("/checkout", h.Checkout)
	group.POST("", h.Place)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("/:id/pay", h.Pay)
	group.POST("/:id/finish", h.Finish)
	group.POST("/:id/cancel", h.Cancel)
}

func registerPrepRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Prep == nil {
		return
	}
	h := handlers.NewPrepHandler(base, cfg.Prep)

	group := rg.Group("/prep-batches", adminOnly())
	group.POST("", h.Plan)
	group.GET("/:id", h.Get)
	group.POST("/:id/start", h.Start)
	group.POST("/:id/complete", h.Complete)
	group.POST("/:id/cancel", h.Cancel)
}
