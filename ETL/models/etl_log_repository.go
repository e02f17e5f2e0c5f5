package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LilVoxy/ledger_analytics/database"
)

// SQLETLLogRepository реализация ETLLogRepository для хранилища (MySQL, SQLite, PostgreSQL)
type SQLETLLogRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLETLLogRepository создает новый экземпляр SQLETLLogRepository
func NewSQLETLLogRepository(db *sql.DB, dialect database.Dialect) *SQLETLLogRepository {
	return &SQLETLLogRepository{
		db:      db,
		dialect: dialect,
	}
}

const runLogColumns = `
	id, start_time, end_time, status,
	rows_read, rows_dropped, transactions_processed, customers_processed,
	source_file, error_message, execution_time_seconds`

// CreateLogEntry создает новую запись о запуске ETL
func (r *SQLETLLogRepository) CreateLogEntry(ctx context.Context, runLog *ETLRunLog) error {
	query := r.dialect.Rebind(`
	INSERT INTO etl_run_log (id, start_time, status, source_file)
	VALUES (?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query, runLog.ID, runLog.StartTime.UnixMilli(), RunStatusInProgress, runLog.SourceFile)
	if err != nil {
		return fmt.Errorf("ошибка при создании записи о запуске ETL: %w", err)
	}

	runLog.Status = RunStatusInProgress
	return nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntrySuccess(ctx context.Context, runLog *ETLRunLog) error {
	executionTime := runLog.EndTime.Sub(runLog.StartTime).Seconds()

	query := r.dialect.Rebind(`
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = ?,
		rows_read = ?,
		rows_dropped = ?,
		transactions_processed = ?,
		customers_processed = ?,
		execution_time_seconds = ?
	WHERE id = ?`)

	_, err := r.db.ExecContext(ctx, query,
		runLog.EndTime.UnixMilli(),
		RunStatusSuccess,
		runLog.RowsRead,
		runLog.RowsDropped,
		runLog.TransactionsProcessed,
		runLog.CustomersProcessed,
		executionTime,
		runLog.ID,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL: %w", err)
	}

	runLog.Status = RunStatusSuccess
	runLog.ExecutionTimeSeconds = executionTime
	return nil
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntryFailure(ctx context.Context, id string, endTime time.Time, errorMessage string) error {
	var startMillis int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT start_time FROM etl_run_log WHERE id = ?"), id).Scan(&startMillis)
	if err != nil {
		return fmt.Errorf("ошибка при получении времени начала ETL: %w", err)
	}

	executionTime := endTime.Sub(time.UnixMilli(startMillis)).Seconds()

	query := r.dialect.Rebind(`
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = ?,
		error_message = ?,
		execution_time_seconds = ?
	WHERE id = ?`)

	_, err = r.db.ExecContext(ctx, query, endTime.UnixMilli(), RunStatusFailed, errorMessage, executionTime, id)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL: %w", err)
	}

	return nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *SQLETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	query := r.dialect.Rebind(`SELECT` + runLogColumns + `
	FROM etl_run_log
	WHERE status = ?
	ORDER BY end_time DESC
	LIMIT 1`)

	runLog, err := scanRunLog(r.db.QueryRowContext(ctx, query, RunStatusSuccess))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Нет успешных запусков
		}
		return nil, fmt.Errorf("ошибка при получении информации о последнем успешном запуске ETL: %w", err)
	}

	return runLog, nil
}

// GetETLRunStats получает последние limit запусков ETL
func (r *SQLETLLogRepository) GetETLRunStats(ctx context.Context, limit int) ([]ETLRunLog, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.dialect.Rebind(`SELECT` + runLogColumns + `
	FROM etl_run_log
	ORDER BY start_time DESC
	LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}
	defer rows.Close()

	var logs []ETLRunLog
	for rows.Next() {
		runLog, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи о запуске ETL: %w", err)
		}
		logs = append(logs, *runLog)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по записям о запусках ETL: %w", err)
	}

	return logs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunLog(row rowScanner) (*ETLRunLog, error) {
	var (
		runLog       ETLRunLog
		startMillis  int64
		endMillis    sql.NullInt64
		errorMessage sql.NullString
	)

	err := row.Scan(
		&runLog.ID, &startMillis, &endMillis, &runLog.Status,
		&runLog.RowsRead, &runLog.RowsDropped, &runLog.TransactionsProcessed, &runLog.CustomersProcessed,
		&runLog.SourceFile, &errorMessage, &runLog.ExecutionTimeSeconds,
	)
	if err != nil {
		return nil, err
	}

	runLog.StartTime = time.UnixMilli(startMillis).UTC()
	if endMillis.Valid {
		runLog.EndTime = time.UnixMilli(endMillis.Int64).UTC()
	}
	runLog.ErrorMessage = errorMessage.String

	return &runLog, nil
}

// MemoryETLLogRepository хранит журнал запусков в памяти, когда хранилище отключено
type MemoryETLLogRepository struct {
	mu   sync.RWMutex
	runs map[string]ETLRunLog
}

// NewMemoryETLLogRepository создает пустой журнал в памяти
func NewMemoryETLLogRepository() *MemoryETLLogRepository {
	return &MemoryETLLogRepository{
		runs: make(map[string]ETLRunLog),
	}
}

// CreateLogEntry создает новую запись о запуске ETL
func (r *MemoryETLLogRepository) CreateLogEntry(_ context.Context, runLog *ETLRunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[runLog.ID]; exists {
		return fmt.Errorf("запись о запуске %s уже существует", runLog.ID)
	}
	runLog.Status = RunStatusInProgress
	r.runs[runLog.ID] = *runLog
	return nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *MemoryETLLogRepository) UpdateLogEntrySuccess(_ context.Context, runLog *ETLRunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[runLog.ID]; !exists {
		return fmt.Errorf("запись о запуске %s не найдена", runLog.ID)
	}
	runLog.Status = RunStatusSuccess
	runLog.ExecutionTimeSeconds = runLog.EndTime.Sub(runLog.StartTime).Seconds()
	r.runs[runLog.ID] = *runLog
	return nil
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *MemoryETLLogRepository) UpdateLogEntryFailure(_ context.Context, id string, endTime time.Time, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	runLog, exists := r.runs[id]
	if !exists {
		return fmt.Errorf("запись о запуске %s не найдена", id)
	}
	runLog.EndTime = endTime
	runLog.Status = RunStatusFailed
	runLog.ErrorMessage = errorMessage
	runLog.ExecutionTimeSeconds = endTime.Sub(runLog.StartTime).Seconds()
	r.runs[id] = runLog
	return nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *MemoryETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	runs, _ := r.GetETLRunStats(ctx, 0)

	var last *ETLRunLog
	for i := range runs {
		if runs[i].Status != RunStatusSuccess {
			continue
		}
		if last == nil || runs[i].EndTime.After(last.EndTime) {
			last = &runs[i]
		}
	}
	return last, nil
}

// GetETLRunStats получает последние limit запусков (0 — все)
func (r *MemoryETLLogRepository) GetETLRunStats(_ context.Context, limit int) ([]ETLRunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]ETLRunLog, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
