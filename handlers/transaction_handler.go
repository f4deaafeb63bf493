package handlers

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/internal/repository"
	"github.com/acotrina/fise-coupon-service/pkg/response"
)

type TransactionHandler struct {
	transactions *repository.TransactionRepository
	history      *repository.HistoryRepository
}

func NewTransactionHandler(
	transactions *repository.TransactionRepository,
	history *repository.HistoryRepository,
) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		history:      history,
	}
}

// GetTransactions returns a paginated view of the ledger with an optional
// estado filter (PENDING, DELIVERED, FAILED, USED).
func (h *TransactionHandler) GetTransactions(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var estado *domain.TxStatus
	if estadoStr := c.QueryParam("estado"); estadoStr != "" {
		parsed := domain.TxStatus(estadoStr)
		switch parsed {
		case domain.StatusPending, domain.StatusDelivered, domain.StatusFailed, domain.StatusUsed:
			estado = &parsed
		default:
			return response.BadRequestWithMessage(c, "estado must be one of PENDING, DELIVERED, FAILED, USED")
		}
	}

	txs, totalCount, err := h.transactions.GetAll(c.Request().Context(), estado, page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, txs, page, pageSize, totalCount)
}

// GetRecentTransactions returns the newest ledger rows, all states mixed.
func (h *TransactionHandler) GetRecentTransactions(c echo.Context) error {
	limit := 20
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 100 {
			return response.BadRequestWithMessage(c, "limit must be between 1 and 100")
		}
		limit = l
	}

	txs, err := h.transactions.Recent(c.Request().Context(), limit)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, txs)
}

// GetStats returns per-state row counts for the whole ledger.
func (h *TransactionHandler) GetStats(c echo.Context) error {
	stats, err := h.transactions.Stats(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"pending":   stats.Pending,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
		"used":      stats.Used,
		"total":     stats.Pending + stats.Delivered + stats.Failed + stats.Used,
	})
}

// GetHistory returns the paginated inbound/outbound message history.
func (h *TransactionHandler) GetHistory(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	entries, totalCount, err := h.history.GetAll(c.Request().Context(), page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, entries, page, pageSize, totalCount)
}

func parsePaginationParams(c echo.Context) (int, int, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)

	page := defaultPage
	if pageStr := c.QueryParam("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		page = p
	}

	pageSize := defaultPageSize
	if pageSizeStr := c.QueryParam("pageSize"); pageSizeStr != "" {
		ps, err := strconv.Atoi(pageSizeStr)
		if err != nil || ps <= 0 || ps > maxPageSize {
			return 0, 0, fmt.Errorf("pageSize must be between 1 and %d", maxPageSize)
		}
		pageSize = ps
	}

	return page, pageSize, nil
}
