package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/handlers"
	"github.com/acotrina/fise-coupon-service/internal/middlewares"
)

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	inboundHandler *handlers.InboundHandler,
	transactionHandler *handlers.TransactionHandler,
	sweeperHandler *handlers.SweeperHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)

	// API v1 base group
	v1 := e.Group("/api/v1")

	// The gateway delivering inbound messages has its own API key.
	inbound := v1.Group("/inbound", middlewares.APIKeyAuth(cfg.Auth.InboundAPIKey))
	inbound.POST("", inboundHandler.ReceiveMessage)

	// Ledger and history reads share the transactions key.
	transactions := v1.Group("/transactions", middlewares.APIKeyAuth(cfg.Auth.TransactionsAPIKey))
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/recent", transactionHandler.GetRecentTransactions)
	transactions.GET("/stats", transactionHandler.GetStats)

	history := v1.Group("/history", middlewares.APIKeyAuth(cfg.Auth.TransactionsAPIKey))
	history.GET("", transactionHandler.GetHistory)

	// Sweeper control with its own API key
	sweeperGroup := v1.Group("/sweeper", middlewares.APIKeyAuth(cfg.Auth.SweeperAPIKey))
	sweeperGroup.POST("/start", sweeperHandler.StartSweeper)
	sweeperGroup.POST("/stop", sweeperHandler.StopSweeper)
	sweeperGroup.GET("/status", sweeperHandler.GetSweeperStatus)
}
