package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-retail/meridian/internal/app"
	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/catalog"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/gateway"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/platform/cache"
	"github.com/meridian-retail/meridian/internal/platform/db"
	"github.com/meridian-retail/meridian/internal/procurement"
	"github.com/meridian-retail/meridian/internal/returns"
	"github.com/meridian-retail/meridian/internal/sales"
	"github.com/meridian-retail/meridian/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	creditRepo := credit.NewRepository(dbpool)
	creditService := credit.NewService(creditRepo, auditLogger)
	creditHandler := credit.NewHandler(logger, creditService)

	drawerRepo := cashdrawer.NewRepository(dbpool)
	drawerService := cashdrawer.NewService(drawerRepo, auditLogger)
	drawerHandler := cashdrawer.NewHandler(logger, drawerService)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, catalogService, auditLogger)
	salesHandler := sales.NewHandler(logger, salesService)

	returnsRepo := returns.NewRepository(dbpool)
	returnsService := returns.NewService(returnsRepo, auditLogger)
	returnsHandler := returns.NewHandler(logger, returnsService)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, auditLogger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	gatewayClient := gateway.NewClient(cfg.GatewayURL, cfg.GatewaySecret)
	gatewayService := gateway.NewService(logger, gatewayClient, creditService, cfg.GatewaySecret)
	gatewayHandler := gateway.NewHandler(logger, gatewayService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalogHandler,
		InventoryHandler:   inventoryHandler,
		SalesHandler:       salesHandler,
		ReturnsHandler:     returnsHandler,
		ProcurementHandler: procurementHandler,
		DrawerHandler:      drawerHandler,
		CreditHandler:      creditHandler,
		GatewayHandler:     gatewayHandler,
		Idempotency:        idempotencyStore,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
