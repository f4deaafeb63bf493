package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/acotrina/fise-coupon-service/pkg/cache"
)

// HealthHandler reports database and dedup-backend connectivity.
type HealthHandler struct {
	db           *sqlx.DB
	valkey       *cache.Client
	checkTimeout time.Duration
}

func NewHealthHandler(db *sqlx.DB, valkeyClient *cache.Client) *HealthHandler {
	return &HealthHandler{
		db:           db,
		valkey:       valkeyClient,
		checkTimeout: 2 * time.Second,
	}
}

// Health returns overall status plus per-component statuses. A missing
// valkey client means the in-memory dedup cache is in use, reported as
// "disabled" rather than "down".
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	overallStatus := "ok"

	dbStatus := "up"
	if h.db == nil {
		dbStatus = "down"
		overallStatus = "down"
	} else if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "down"
		overallStatus = "down"
	}

	valkeyStatus := "disabled"
	if h.valkey != nil {
		if err := h.valkey.Ping(ctx); err != nil {
			valkeyStatus = "down"
			overallStatus = "degraded"
		} else {
			valkeyStatus = "up"
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"components": map[string]any{
			"database": map[string]any{
				"status": dbStatus,
			},
			"valkey": map[string]any{
				"status": valkeyStatus,
			},
		},
	})
}
