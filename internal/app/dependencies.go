// Package app assembles the domain services and mounts them on the API router.
package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/customer"
	"github.com/noah-isme/backend-pos/internal/document"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pos"
	"github.com/noah-isme/backend-pos/internal/ratelimit"
	"github.com/noah-isme/backend-pos/internal/resilience"
)

// Dependencies enumerates the stores and clients the API is built from.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Redis     *redis.Client
	Catalog   catalog.Store
	Customers customer.Store
	Documents document.Store
}

// PostgresDependencies backs every store with pool.
func PostgresDependencies(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client) Dependencies {
	return Dependencies{
		Config:    cfg,
		Logger:    logger,
		Redis:     rdb,
		Catalog:   catalog.NewPGStore(pool),
		Customers: customer.NewPGStore(pool),
		Documents: document.NewPGStore(pool),
	}
}

// MountAPI wires the services and mounts catalog, customer, till and document routes on r.
func MountAPI(r chi.Router, deps Dependencies) error {
	cfg := deps.Config
	if cfg == nil {
		return errors.New("app: config is required")
	}

	var cache *catalog.Cache
	if deps.Redis != nil {
		breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("catalog_cache").WithLogger(deps.Logger)
		cache = catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL).WithBreaker(breaker)
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:               deps.Catalog,
		Cache:               cache,
		Logger:              deps.Logger,
		DefaultLimit:        cfg.CatalogDefaultLimit,
		MaxLimit:            cfg.CatalogMaxLimit,
		StockAlertThreshold: cfg.StockAlertThreshold,
	})
	if err != nil {
		return err
	}
	customerService, err := customer.NewService(deps.Customers, deps.Logger)
	if err != nil {
		return err
	}
	engine := cfg.PricingEngine()
	documentService, err := document.NewService(document.ServiceConfig{
		Store:     deps.Documents,
		Numbers:   document.RedisNumberer{Client: deps.Redis, Prefix: "pos:docnum:", Location: cfg.DocumentNumberLocation},
		Engine:    engine,
		Products:  catalogService,
		Customers: customerService,
		Stock:     catalogService,
		Locks:     &lock.Locker{Client: deps.Redis, Prefix: "pos:lock:", Wait: 2 * time.Second},
		Logger:    deps.Logger,
		MaxLimit:  cfg.DocumentListMaxLimit,
	})
	if err != nil {
		return err
	}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	scanLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "pos:rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClient("scan", obs.TillHeader),
			Window: cfg.ScanRateLimitWindow,
			Max:    cfg.ScanRateLimitMax,
		},
		OnError: func(err error) { deps.Logger.Warn().Err(err).Msg("scan_rate_limit_unavailable") },
	}

	r.Route("/api/v1", func(v chi.Router) {
		catalog.NewHandler(catalog.HandlerConfig{Service: catalogService}).Routes(v)
		customer.NewHandler(customerService).Routes(v)
		pos.NewHandler(pos.HandlerConfig{
			Catalog:        catalogService,
			Engine:         engine,
			Logger:         deps.Logger,
			ScanMiddleware: scanLimit.Middleware,
		}).Routes(v)
		document.NewHandler(document.HandlerConfig{
			Service:         documentService,
			WriteMiddleware: idem.Middleware,
		}).Routes(v)
		v.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			common.JSON(w, http.StatusOK, map[string]any{
				"name":     "pos-api",
				"currency": cfg.CurrencyCode,
				"vat_mode": engine.Mode(),
				"scanner": map[string]any{
					"timeout_ms": cfg.ScannerTimeout.Milliseconds(),
					"min_length": cfg.ScannerMinLength,
				},
			})
		})
	})

	return nil
}
