package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

func NewMySQLDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to MySQL database")
	return db, nil
}

func RunMigrations(db *sqlx.DB) error {
	schemas := []string{
		// Voucher ledger. uq_pending gives Upsert its replace-on-conflict
		// identity: one current PENDING row per (cupon, dni). Resolved rows
		// fall out of the unique key because estado_pendiente goes NULL.
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			driver_phone VARCHAR(20) NOT NULL,
			entidad VARCHAR(20) NOT NULL,
			agente_phone VARCHAR(20) NOT NULL,
			cupon VARCHAR(20) NOT NULL,
			dni VARCHAR(8) NOT NULL,
			fecha DATETIME NOT NULL,
			monto DOUBLE,
			estado VARCHAR(10) NOT NULL DEFAULT 'PENDING',
			respuesta TEXT,
			sn VARCHAR(13),
			estado_pendiente VARCHAR(10) GENERATED ALWAYS AS (IF(estado = 'PENDING', estado, NULL)) STORED,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_pending (cupon, dni, estado_pendiente),
			INDEX idx_tx_cupon (cupon),
			INDEX idx_tx_entidad (entidad),
			INDEX idx_tx_estado_fecha (estado, fecha)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		// Durable message history, inbound and outbound.
		`CREATE TABLE IF NOT EXISTS message_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			phone VARCHAR(20) NOT NULL,
			body TEXT NOT NULL,
			direction VARCHAR(3) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_history_phone (phone),
			INDEX idx_history_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Infof("Database migrations completed")
	return nil
}

func SeedTestData(db *sqlx.DB) error {
	var count int

	err := db.Get(&count, "SELECT COUNT(*) FROM transactions")
	if err != nil {
		return err
	}

	if count > 0 {
		logger.Infof("Database already has %d transactions, skipping seed", count)
		return nil
	}

	testTransactions := []struct {
		driverPhone string
		entidad     string
		cupon       string
		dni         string
		estado      string
	}{
		{"+51911222333", "+51999000111", "1234567890", "87654321", "PENDING"},
		{"+51911222334", "+51999000111", "2234567891", "12345678", "DELIVERED"},
		{"+51911222335", "+51999000111", "3234567892", "23456789", "FAILED"},
		{"+51911222336", "+51999000112", "4234567893", "34567890", "DELIVERED"},
		{"+51911222337", "+51999000112", "5234567894", "45678901", "USED"},
	}

	for _, tx := range testTransactions {
		_, err := db.Exec(
			`INSERT INTO transactions (driver_phone, entidad, agente_phone, cupon, dni, fecha, estado)
			 VALUES (?, ?, ?, ?, ?, NOW(), ?)`,
			tx.driverPhone, tx.entidad, tx.driverPhone, tx.cupon, tx.dni, tx.estado,
		)
		if err != nil {
			return fmt.Errorf("failed to seed test data: %w", err)
		}
	}

	logger.Infof("Seeded %d test transactions", len(testTransactions))
	return nil
}
