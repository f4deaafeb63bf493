package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/acotrina/fise-coupon-service/internal/sweeper"
	"github.com/acotrina/fise-coupon-service/pkg/response"
)

type SweeperHandler struct {
	sweeper *sweeper.Sweeper
	ctx     context.Context
}

func NewSweeperHandler(sw *sweeper.Sweeper, ctx context.Context) *SweeperHandler {
	return &SweeperHandler{
		sweeper: sw,
		ctx:     ctx,
	}
}

// StartSweeper starts the periodic dedup eviction and ledger diagnostics
// loop. Starting an already-running sweeper is a no-op.
func (h *SweeperHandler) StartSweeper(c echo.Context) error {
	if h.sweeper.IsRunning() {
		return response.OkWithMessage(c, "Sweeper is already running", h.sweeper.GetStatus())
	}

	if err := h.sweeper.Start(h.ctx); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Sweeper started successfully", h.sweeper.GetStatus())
}

// StopSweeper stops the loop and waits for the current run to finish.
func (h *SweeperHandler) StopSweeper(c echo.Context) error {
	if !h.sweeper.IsRunning() {
		return response.OkWithMessage(c, "Sweeper is already stopped", h.sweeper.GetStatus())
	}

	if err := h.sweeper.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Sweeper stopped successfully", h.sweeper.GetStatus())
}

// GetSweeperStatus returns run counters and scheduling state.
func (h *SweeperHandler) GetSweeperStatus(c echo.Context) error {
	return response.Ok(c, h.sweeper.GetStatus())
}
