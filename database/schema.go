// database/schema.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// CreateTablesIfNotExist создает таблицы хранилища, если они не существуют.
// Время хранится как unix-миллисекунды (BIGINT), чтобы схема одинаково работала во всех диалектах.
func CreateTablesIfNotExist(ctx context.Context, db *sql.DB, d Dialect) error {
	statements := []struct {
		table string
		query string
	}{
		{"etl_run_log", `
		CREATE TABLE IF NOT EXISTS etl_run_log (
			id VARCHAR(36) PRIMARY KEY,
			start_time BIGINT NOT NULL,
			end_time BIGINT NULL,
			status VARCHAR(16) NOT NULL,
			rows_read INT NOT NULL DEFAULT 0,
			rows_dropped INT NOT NULL DEFAULT 0,
			transactions_processed INT NOT NULL DEFAULT 0,
			customers_processed INT NOT NULL DEFAULT 0,
			source_file VARCHAR(512) NOT NULL DEFAULT '',
			error_message TEXT NULL,
			execution_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0
		)`},
		{"cohort_cells", `
		CREATE TABLE IF NOT EXISTS cohort_cells (
			cohort_month VARCHAR(7) NOT NULL,
			cohort_age INT NOT NULL,
			users INT NOT NULL,
			transactions INT NOT NULL,
			fee DECIMAL(24,4) NOT NULL,
			amount DECIMAL(24,4) NOT NULL,
			retention_pct DOUBLE PRECISION NOT NULL,
			cumulative_value_per_customer DOUBLE PRECISION NOT NULL,
			run_id VARCHAR(36) NOT NULL,
			PRIMARY KEY (cohort_month, cohort_age)
		)`},
		{"monthly_facts", `
		CREATE TABLE IF NOT EXISTS monthly_facts (
			period_month VARCHAR(7) NOT NULL PRIMARY KEY,
			volume DECIMAL(24,4) NOT NULL,
			revenue DECIMAL(24,4) NOT NULL,
			external_fee DECIMAL(24,4) NOT NULL,
			transactions INT NOT NULL,
			active_customers INT NOT NULL,
			new_customers INT NOT NULL,
			returning_customers INT NOT NULL,
			mom_growth_pct DOUBLE PRECISION NULL,
			run_id VARCHAR(36) NOT NULL
		)`},
		{"market_share_facts", `
		CREATE TABLE IF NOT EXISTS market_share_facts (
			period_month VARCHAR(7) NOT NULL,
			bank VARCHAR(128) NOT NULL,
			volume DECIMAL(24,4) NOT NULL,
			volume_share DOUBLE PRECISION NOT NULL,
			run_id VARCHAR(36) NOT NULL,
			PRIMARY KEY (period_month, bank)
		)`},
		{"customer_value_facts", `
		CREATE TABLE IF NOT EXISTS customer_value_facts (
			customer_id VARCHAR(64) NOT NULL PRIMARY KEY,
			topup_count INT NOT NULL,
			avg_topup_amount DOUBLE PRECISION NOT NULL,
			total_topup_amount DECIMAL(24,4) NOT NULL,
			total_fee DECIMAL(24,4) NOT NULL,
			segment VARCHAR(32) NOT NULL,
			run_id VARCHAR(36) NOT NULL
		)`},
		{"trend_forecasts", `
		CREATE TABLE IF NOT EXISTS trend_forecasts (
			metric VARCHAR(32) NOT NULL,
			forecast_month VARCHAR(7) NOT NULL,
			period_start VARCHAR(7) NOT NULL,
			period_end VARCHAR(7) NOT NULL,
			slope DOUBLE PRECISION NOT NULL,
			intercept DOUBLE PRECISION NOT NULL,
			r DOUBLE PRECISION NOT NULL,
			r2 DOUBLE PRECISION NOT NULL,
			forecast_value DOUBLE PRECISION NOT NULL,
			ci_lower DOUBLE PRECISION NOT NULL,
			ci_upper DOUBLE PRECISION NOT NULL,
			run_id VARCHAR(36) NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (metric, forecast_month)
		)`},
		{"report_snapshots", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS report_snapshots (
			name VARCHAR(64) NOT NULL PRIMARY KEY,
			run_id VARCHAR(36) NOT NULL,
			created_at BIGINT NOT NULL,
			payload_size INT NOT NULL,
			payload %s NOT NULL
		)`, d.BlobType())},
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.query); err != nil {
			return fmt.Errorf("ошибка создания таблицы %s: %w", stmt.table, err)
		}
	}

	log.Println("✅ Структура хранилища проверена и актуализирована")
	return nil
}
