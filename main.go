package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/handlers"
	"github.com/acotrina/fise-coupon-service/internal/dedup"
	"github.com/acotrina/fise-coupon-service/internal/repository"
	"github.com/acotrina/fise-coupon-service/internal/service"
	"github.com/acotrina/fise-coupon-service/internal/sweeper"
	"github.com/acotrina/fise-coupon-service/pkg/backend"
	"github.com/acotrina/fise-coupon-service/pkg/cache"
	"github.com/acotrina/fise-coupon-service/pkg/database"
	"github.com/acotrina/fise-coupon-service/pkg/directory"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
	"github.com/acotrina/fise-coupon-service/pkg/transport"
	"github.com/acotrina/fise-coupon-service/pkg/validator"
	"github.com/acotrina/fise-coupon-service/routes"
)

func main() {
	logger.Init()

	// Load config
	cfg := environments.Load()

	// Hard-fail if required secrets are missing
	if cfg.Transport.GatewayURL == "" {
		logger.Fatalf("SMS_GATEWAY_URL is required but not set")
	}
	if cfg.Auth.InboundAPIKey == "" {
		logger.Fatalf("INBOUND_API_KEY is required but not set")
	}
	if cfg.Auth.TransactionsAPIKey == "" {
		logger.Fatalf("TRANSACTIONS_API_KEY is required but not set")
	}
	if cfg.Auth.SweeperAPIKey == "" {
		logger.Fatalf("SWEEPER_API_KEY is required but not set")
	}

	logger.Infof("Starting FISE Coupon Service...")

	// Init DB
	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed data
	if os.Getenv("SEED_DATA") == "true" {
		if err := database.SeedTestData(db); err != nil {
			logger.Warnf("Failed to seed test data: %v", err)
		}
	}

	// Dedup backend: shared Valkey when configured, per-process memory
	// cache otherwise.
	var valkeyClient *cache.Client
	var protocolDedup interface {
		ShouldProcess(sender, body string) bool
		MarkProcessed(sender, body string)
		Sweep() int
	}
	if cfg.Valkey.Enabled() {
		valkeyClient, err = cache.NewClient(cfg.Valkey, cfg.Protocol.DedupWindow)
		if err != nil {
			logger.Warnf("Valkey not available, falling back to in-memory dedup: %v", err)
			valkeyClient = nil
		}
	}
	if valkeyClient != nil {
		protocolDedup = valkeyClient
		logger.Infof("Using Valkey dedup cache at %s:%s", cfg.Valkey.Host, cfg.Valkey.Port)
	} else {
		protocolDedup = dedup.NewCache(cfg.Protocol.DedupWindow)
		logger.Infof("Using in-memory dedup cache (window %v)", cfg.Protocol.DedupWindow)
	}

	// External clients
	directoryClient := directory.NewClient(cfg.Directory, cfg.Protocol.CountryPrefix)
	backendClient := backend.NewClient(cfg.Backend)
	transportClient := transport.NewClient(cfg.Transport)

	// Repositories
	transactionRepo := repository.NewTransactionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	// Services
	messenger := service.NewMessenger(transportClient, historyRepo)
	protocol := service.NewProtocolService(
		transactionRepo,
		directoryClient,
		backendClient,
		protocolDedup,
		messenger,
		cfg.Protocol,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize sweeper
	sw := sweeper.NewSweeper(protocolDedup, transactionRepo, cfg.Sweeper.Interval, cfg.Sweeper.RecentLimit)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, valkeyClient)
	inboundHandler := handlers.NewInboundHandler(protocol)
	transactionHandler := handlers.NewTransactionHandler(transactionRepo, historyRepo)
	sweeperHandler := handlers.NewSweeperHandler(sw, ctx)

	// Auto-start sweeper
	if os.Getenv("AUTO_START_SWEEPER") != "false" {
		logger.Infof("Auto-starting sweeper...")
		if err := sw.Start(ctx); err != nil {
			logger.Warnf("Failed to auto-start sweeper: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			"x-fise-auth-key",
		},
	}))

	// Setup routes
	routes.RegisterRoutes(e, healthHandler, inboundHandler, transactionHandler, sweeperHandler, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Shutdown HTTP server first so no new events arrive.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	// Wait for in-flight protocol events.
	protocolCtx, protocolCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer protocolCancel()

	logger.Infof("Waiting for in-flight protocol events...")
	if err := protocol.Shutdown(protocolCtx); err != nil {
		logger.Errorf("Protocol shutdown incomplete: %v", err)
	} else {
		logger.Infof("Protocol engine drained")
	}

	// Stop sweeper
	if sw.IsRunning() {
		logger.Infof("Stopping sweeper...")
		if err := sw.Stop(); err != nil {
			logger.Errorf("Error stopping sweeper: %v", err)
		}
	}

	// Cancel context to signal any remaining goroutines.
	cancel()

	// Close database connection
	logger.Infof("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	// Close Valkey connection
	if valkeyClient != nil {
		logger.Infof("Closing Valkey connection...")
		if err := valkeyClient.Close(); err != nil {
			logger.Errorf("Error closing Valkey: %v", err)
		}
	}

	logger.Infof("Graceful shutdown completed")
}
