package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/acotrina/fise-coupon-service/internal/domain"
)

// HistoryRepository is the durable message history: every inbound body and
// every outbound reply, appended and never mutated.
type HistoryRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, phone, body string, direction domain.Direction) error {
	query := `
		INSERT INTO message_history (phone, body, direction, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`

	if _, err := r.db.ExecContext(ctx, query, phone, body, direction); err != nil {
		return fmt.Errorf("failed to append message history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) GetAll(ctx context.Context, page, pageSize int) ([]domain.HistoryEntry, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM message_history"); err != nil {
		return nil, 0, fmt.Errorf("failed to count message history: %w", err)
	}

	query := `
		SELECT id, phone, body, direction, created_at
		FROM message_history
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	var entries []domain.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to get message history: %w", err)
	}

	return entries, totalCount, nil
}
