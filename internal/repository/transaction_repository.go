package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/acotrina/fise-coupon-service/internal/domain"
)

// TransactionRepository is the voucher ledger. Every operation is scoped to
// one (cupon, dni) identity, so no multi-row transactions are needed; the
// database/sql pool makes concurrent use safe.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txColumns = `id, driver_phone, entidad, agente_phone, cupon, dni, fecha,
		monto, estado, respuesta, sn, created_at, updated_at`

// Upsert inserts a new PENDING row, or replaces the existing current PENDING
// row for the same (cupon, dni) identity. Last write wins.
func (r *TransactionRepository) Upsert(ctx context.Context, tx *domain.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions
			(driver_phone, entidad, agente_phone, cupon, dni, fecha, monto, estado, respuesta, sn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = LAST_INSERT_ID(id),
			driver_phone = VALUES(driver_phone),
			entidad = VALUES(entidad),
			agente_phone = VALUES(agente_phone),
			fecha = VALUES(fecha),
			monto = VALUES(monto),
			respuesta = VALUES(respuesta),
			sn = VALUES(sn)
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.DriverPhone, tx.Entidad, tx.AgentePhone, tx.Cupon, tx.DNI,
		tx.Fecha, tx.Monto, tx.Estado, tx.Respuesta, tx.SN,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction id: %w", err)
	}
	return id, nil
}

// UpdateStatus mutates the current PENDING row for (cupon, dni). It never
// inserts; zero rows affected means the caller raced or the row is gone.
func (r *TransactionRepository) UpdateStatus(
	ctx context.Context,
	cupon, dni string,
	estado domain.TxStatus,
	monto *float64,
	respuesta *string,
) (int64, error) {
	query := `
		UPDATE transactions
		SET estado = ?, monto = COALESCE(?, monto), respuesta = COALESCE(?, respuesta)
		WHERE cupon = ? AND dni = ? AND estado = 'PENDING'
	`

	result, err := r.db.ExecContext(ctx, query, estado, monto, respuesta, cupon, dni)
	if err != nil {
		return 0, fmt.Errorf("failed to update transaction status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// MarkUsed promotes an already-DELIVERED row to USED when the entity
// re-confirms the coupon later. Idempotent: an already-USED row matches
// nothing.
func (r *TransactionRepository) MarkUsed(ctx context.Context, id int64) error {
	query := `UPDATE transactions SET estado = 'USED' WHERE id = ? AND estado = 'DELIVERED'`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark transaction used: %w", err)
	}
	return nil
}

// FindPending returns the newest PENDING row matching (cupon, dni) exactly.
func (r *TransactionRepository) FindPending(ctx context.Context, cupon, dni string) (*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE cupon = ? AND dni = ? AND estado = 'PENDING'
		ORDER BY fecha DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, cupon, dni)
}

// FindPendingByCoupon is the fallback when the exact (cupon, dni) match
// misses. Known limitation: if two drivers submit the same coupon value it
// can return the other driver's row.
func (r *TransactionRepository) FindPendingByCoupon(ctx context.Context, cupon string) (*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE cupon = ? AND estado = 'PENDING'
		ORDER BY fecha DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, cupon)
}

// FindPendingByEntity returns the newest PENDING row whose stored entity
// number ends with the given suffix. Suffix matching tolerates country-code
// prefix variance between the stored number and the sender address.
func (r *TransactionRepository) FindPendingByEntity(ctx context.Context, entitySuffix string) (*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE estado = 'PENDING' AND entidad LIKE CONCAT('%', ?)
		ORDER BY fecha DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, entitySuffix)
}

// FindLatestByCoupon returns the newest row for a coupon in any state, for
// already-processed notices.
func (r *TransactionRepository) FindLatestByCoupon(ctx context.Context, cupon string) (*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE cupon = ?
		ORDER BY fecha DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, cupon)
}

func (r *TransactionRepository) Recent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		ORDER BY fecha DESC
		LIMIT ?
	`

	var txs []domain.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent transactions: %w", err)
	}
	return txs, nil
}

func (r *TransactionRepository) GetAll(
	ctx context.Context,
	estado *domain.TxStatus,
	page, pageSize int,
) ([]domain.Transaction, int64, error) {
	offset := (page - 1) * pageSize
	var totalCount int64
	var txs []domain.Transaction

	if estado != nil {
		countQuery := "SELECT COUNT(*) FROM transactions WHERE estado = ?"
		if err := r.db.GetContext(ctx, &totalCount, countQuery, *estado); err != nil {
			return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
		}

		query := `
			SELECT ` + txColumns + `
			FROM transactions
			WHERE estado = ?
			ORDER BY fecha DESC
			LIMIT ? OFFSET ?
		`
		if err := r.db.SelectContext(ctx, &txs, query, *estado, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get transactions: %w", err)
		}
	} else {
		countQuery := "SELECT COUNT(*) FROM transactions"
		if err := r.db.GetContext(ctx, &totalCount, countQuery); err != nil {
			return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
		}

		query := `
			SELECT ` + txColumns + `
			FROM transactions
			ORDER BY fecha DESC
			LIMIT ? OFFSET ?
		`
		if err := r.db.SelectContext(ctx, &txs, query, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get transactions: %w", err)
		}
	}

	return txs, totalCount, nil
}

func (r *TransactionRepository) Stats(ctx context.Context) (domain.TxStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN estado = 'PENDING' THEN 1 ELSE 0 END), 0)   AS pending,
			COALESCE(SUM(CASE WHEN estado = 'DELIVERED' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN estado = 'FAILED' THEN 1 ELSE 0 END), 0)    AS failed,
			COALESCE(SUM(CASE WHEN estado = 'USED' THEN 1 ELSE 0 END), 0)      AS used
		FROM transactions
	`

	var stats struct {
		Pending   int64 `db:"pending"`
		Delivered int64 `db:"delivered"`
		Failed    int64 `db:"failed"`
		Used      int64 `db:"used"`
	}

	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return domain.TxStats{}, fmt.Errorf("failed to get transaction stats: %w", err)
	}

	return domain.TxStats{
		Pending:   stats.Pending,
		Delivered: stats.Delivered,
		Failed:    stats.Failed,
		Used:      stats.Used,
	}, nil
}

// KnownEntity reports whether a number suffix has appeared as a validating
// entity in the ledger. Together with the configured entity list it backs
// the parser's sender-role lookup.
func (r *TransactionRepository) KnownEntity(ctx context.Context, phoneSuffix string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE entidad LIKE CONCAT('%', ?))`

	var known bool
	if err := r.db.GetContext(ctx, &known, query, phoneSuffix); err != nil {
		return false, fmt.Errorf("failed to look up entity role: %w", err)
	}
	return known, nil
}

// KnownDriver reports whether a number suffix has appeared as a driver.
func (r *TransactionRepository) KnownDriver(ctx context.Context, phoneSuffix string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE driver_phone LIKE CONCAT('%', ?))`

	var known bool
	if err := r.db.GetContext(ctx, &known, query, phoneSuffix); err != nil {
		return false, fmt.Errorf("failed to look up driver role: %w", err)
	}
	return known, nil
}

func (r *TransactionRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := r.db.GetContext(ctx, &tx, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}
