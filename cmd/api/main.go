package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidorduna/agromarket-backend/api/controllers"
	"github.com/davidorduna/agromarket-backend/api/middleware"
	"github.com/davidorduna/agromarket-backend/api/routes"
	"github.com/davidorduna/agromarket-backend/internal/cart"
	"github.com/davidorduna/agromarket-backend/internal/catalog"
	"github.com/davidorduna/agromarket-backend/internal/inventory"
	"github.com/davidorduna/agromarket-backend/internal/orders"
	"github.com/davidorduna/agromarket-backend/internal/payments"
	"github.com/davidorduna/agromarket-backend/internal/sales"
	"github.com/davidorduna/agromarket-backend/pkg/config"
	"github.com/davidorduna/agromarket-backend/pkg/db"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
	"github.com/davidorduna/agromarket-backend/pkg/metrics"
	"github.com/davidorduna/agromarket-backend/pkg/migrate"
	"github.com/davidorduna/agromarket-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Redis is optional: without it the API validates JWTs statelessly and
	// cannot revoke sessions.
	var sessions middleware.SessionChecker
	pingers := []controllers.Pinger{dbClient}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		sessions = redisClient
		pingers = append(pingers, redisClient)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	gormDB := dbClient.DB()
	inventoryRepo := inventory.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	categoryRepo := catalog.NewCategoryRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	salesRepo := sales.NewRepository(gormDB)
	paymentRepo := payments.NewRepository(gormDB)

	inventoryService, err := inventory.NewService(dbClient, inventoryRepo)
	requireService(logg, "inventory", err)

	catalogService, err := catalog.NewService(dbClient, catalogRepo, categoryRepo)
	requireService(logg, "catalog", err)

	cartService, err := cart.NewService(dbClient, cartRepo, catalogService, inventoryRepo)
	requireService(logg, "cart", err)

	orderService, err := orders.NewService(dbClient, orderRepo, cartRepo, catalogRepo, nil)
	requireService(logg, "orders", err)

	salesService, err := sales.NewService(salesRepo)
	requireService(logg, "sales", err)

	paymentService, err := payments.NewService(
		dbClient,
		paymentRepo,
		orderRepo,
		payments.NewSimulatedAuthorizer(cfg.Payment.DeclineMethods),
		salesService,
	)
	requireService(logg, "payments", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, registry, httpMetrics, sessions, pingers, routes.Services{
			Catalog:   catalogService,
			Cart:      cartService,
			Inventory: inventoryService,
			Orders:    orderService,
			Payments:  paymentService,
			Sales:     salesService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name+" service", err)
		os.Exit(1)
	}
}
