package models

import (
	"context"
	"time"
)

// Статусы запуска ETL
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// ETLRunLog представляет запись о запуске ETL процесса
type ETLRunLog struct {
	ID                    string    `json:"id"`
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time"`
	Status                string    `json:"status"` // "success", "failed", "in_progress"
	RowsRead              int       `json:"rows_read"`
	RowsDropped           int       `json:"rows_dropped"`
	TransactionsProcessed int       `json:"transactions_processed"`
	CustomersProcessed    int       `json:"customers_processed"`
	SourceFile            string    `json:"source_file"`
	ErrorMessage          string    `json:"error_message,omitempty"`
	ExecutionTimeSeconds  float64   `json:"execution_time_seconds"`
}

// ETLLogRepository представляет репозиторий для работы с логами ETL
type ETLLogRepository interface {
	// CreateLogEntry создает новую запись о запуске ETL
	CreateLogEntry(ctx context.Context, runLog *ETLRunLog) error

	// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
	UpdateLogEntrySuccess(ctx context.Context, runLog *ETLRunLog) error

	// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
	UpdateLogEntryFailure(ctx context.Context, id string, endTime time.Time, errorMessage string) error

	// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
	GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error)

	// GetETLRunStats получает последние limit запусков, новые первыми
	GetETLRunStats(ctx context.Context, limit int) ([]ETLRunLog, error)
}

// ETLStateMonitor предоставляет информацию о текущем состоянии ETL процесса
type ETLStateMonitor struct {
	LastSuccessfulRun       *ETLRunLog `json:"last_successful_run"`
	LastFailedRun           *ETLRunLog `json:"last_failed_run,omitempty"`
	CurrentRun              *ETLRunLog `json:"current_run,omitempty"`
	TotalSuccessfulRuns     int        `json:"total_successful_runs"`
	TotalFailedRuns         int        `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64    `json:"avg_execution_time_seconds"`
	TotalItemsProcessed     int        `json:"total_items_processed"` // Общее количество обработанных транзакций
}

// BuildStateMonitor собирает состояние ETL по списку запусков (новые первыми)
func BuildStateMonitor(runs []ETLRunLog) *ETLStateMonitor {
	monitor := &ETLStateMonitor{}
	var totalTime float64

	for i := range runs {
		run := runs[i]
		switch run.Status {
		case RunStatusSuccess:
			if monitor.LastSuccessfulRun == nil {
				monitor.LastSuccessfulRun = &run
			}
			monitor.TotalSuccessfulRuns++
			totalTime += run.ExecutionTimeSeconds
			monitor.TotalItemsProcessed += run.TransactionsProcessed
		case RunStatusFailed:
			if monitor.LastFailedRun == nil {
				monitor.LastFailedRun = &run
			}
			monitor.TotalFailedRuns++
		case RunStatusInProgress:
			if monitor.CurrentRun == nil {
				monitor.CurrentRun = &run
			}
		}
	}

	if monitor.TotalSuccessfulRuns > 0 {
		monitor.AvgExecutionTimeSeconds = totalTime / float64(monitor.TotalSuccessfulRuns)
	}
	return monitor
}
