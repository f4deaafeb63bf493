package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/acotrina/fise-coupon-service/internal/domain"
)

func newMockRepo(t *testing.T) (*TransactionRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewTransactionRepository(sqlx.NewDb(db, "mysql")), mock
}

func txRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "driver_phone", "entidad", "agente_phone", "cupon", "dni",
		"fecha", "monto", "estado", "respuesta", "sn", "created_at", "updated_at",
	})
}

func TestUpsert_InsertsPendingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(
			"+51999888777", "998877665", "+51999888777", "1234567890", "87654321",
			sqlmock.AnyArg(), nil, string(domain.StatusPending), nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Upsert(context.Background(), &domain.Transaction{
		DriverPhone: "+51999888777",
		Entidad:     "998877665",
		AgentePhone: "+51999888777",
		Cupon:       "1234567890",
		DNI:         "87654321",
		Fecha:       time.Now(),
		Estado:      domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus_ReturnsRowsAffected(t *testing.T) {
	repo, mock := newMockRepo(t)

	monto := 60.50
	respuesta := "Generacion FISE"

	mock.ExpectExec(`UPDATE transactions`).
		WithArgs(string(domain.StatusDelivered), monto, respuesta, "1234567890", "87654321").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.UpdateStatus(
		context.Background(), "1234567890", "87654321",
		domain.StatusDelivered, &monto, &respuesta,
	)
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
}

func TestUpdateStatus_NoMatchingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE transactions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.UpdateStatus(
		context.Background(), "0000000000", "11111111",
		domain.StatusFailed, nil, nil,
	)
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected 0 rows affected, got %d", rows)
	}
}

func TestFindPending_ReturnsNewestMatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`WHERE cupon = \? AND dni = \? AND estado = 'PENDING'`).
		WithArgs("1234567890", "87654321").
		WillReturnRows(txRows().AddRow(
			3, "+51999888777", "998877665", "+51999888777", "1234567890", "87654321",
			now, nil, "PENDING", nil, nil, now, nil,
		))

	tx, err := repo.FindPending(context.Background(), "1234567890", "87654321")
	if err != nil {
		t.Fatalf("FindPending returned error: %v", err)
	}
	if tx == nil {
		t.Fatalf("expected a transaction, got nil")
	}
	if tx.ID != 3 || tx.Estado != domain.StatusPending {
		t.Fatalf("unexpected row: %+v", tx)
	}
}

func TestFindPending_MissReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`WHERE cupon = \? AND dni = \?`).
		WithArgs("1234567890", "87654321").
		WillReturnRows(txRows())

	tx, err := repo.FindPending(context.Background(), "1234567890", "87654321")
	if err != nil {
		t.Fatalf("FindPending returned error: %v", err)
	}
	if tx != nil {
		t.Fatalf("expected nil on miss, got %+v", tx)
	}
}

func TestFindPendingByEntity_MatchesBySuffix(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`WHERE estado = 'PENDING' AND entidad LIKE CONCAT\('%', \?\)`).
		WithArgs("998877665").
		WillReturnRows(txRows().AddRow(
			9, "+51999888777", "+51998877665", "+51999888777", "1234567890", "87654321",
			now, nil, "PENDING", nil, nil, now, nil,
		))

	tx, err := repo.FindPendingByEntity(context.Background(), "998877665")
	if err != nil {
		t.Fatalf("FindPendingByEntity returned error: %v", err)
	}
	if tx == nil || tx.ID != 9 {
		t.Fatalf("expected row 9, got %+v", tx)
	}
}

func TestStats(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT\s+COALESCE`).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "delivered", "failed", "used"}).
			AddRow(2, 5, 1, 3))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	want := domain.TxStats{Pending: 2, Delivered: 5, Failed: 1, Used: 3}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestKnownEntity(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("998877665").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	known, err := repo.KnownEntity(context.Background(), "998877665")
	if err != nil {
		t.Fatalf("KnownEntity returned error: %v", err)
	}
	if !known {
		t.Fatalf("expected entity to be known")
	}
}

func TestMarkUsed_OnlyPromotesDelivered(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE transactions SET estado = 'USED' WHERE id = \? AND estado = 'DELIVERED'`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkUsed(context.Background(), 4); err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
