package linear_regression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/database"
)

// SQLPredictionRepository реализация PredictionRepository для таблицы trend_forecasts
type SQLPredictionRepository struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewSQLPredictionRepository создает новый репозиторий для работы с прогнозами
func NewSQLPredictionRepository(db *sql.DB, dialect database.Dialect) *SQLPredictionRepository {
	return &SQLPredictionRepository{
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}
}

var forecastKeys = []string{"metric", "forecast_month"}

var forecastColumns = []string{
	"period_start", "period_end", "slope", "intercept", "r", "r2",
	"forecast_value", "ci_lower", "ci_upper", "run_id", "created_at",
}

// SaveMultiplePredictions сохраняет прогнозы показателя в транзакции.
// Прогноз на тот же месяц перезаписывается.
func (r *SQLPredictionRepository) SaveMultiplePredictions(ctx context.Context, runID string, result RegressionResult, forecasts []ForecastPoint) error {
	// Начинаем транзакцию
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.dialect.UpsertQuery("trend_forecasts", forecastKeys, forecastColumns))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("не удалось подготовить запрос: %w", err)
	}
	defer stmt.Close()

	createdAt := r.now().UnixMilli()

	// Выполняем запрос для каждого прогноза
	for _, forecast := range forecasts {
		_, err := stmt.ExecContext(ctx,
			string(result.Metric),
			forecast.Month.String(),
			result.PeriodStart.String(),
			result.PeriodEnd.String(),
			result.A,
			result.B,
			result.R,
			result.R2,
			forecast.ForecastValue,
			forecast.CILower,
			forecast.CIUpper,
			runID,
			createdAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("не удалось сохранить прогноз %s на %s: %w", result.Metric, forecast.Month, err)
		}
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}

	return nil
}

// GetForecasts получает прогнозы показателя по возрастанию месяца
func (r *SQLPredictionRepository) GetForecasts(ctx context.Context, metric Metric) ([]ForecastPoint, error) {
	query := r.dialect.Rebind(`
	SELECT forecast_month, forecast_value, ci_lower, ci_upper
	FROM trend_forecasts
	WHERE metric = ?
	ORDER BY forecast_month`)

	rows, err := r.db.QueryContext(ctx, query, string(metric))
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении запроса: %w", err)
	}
	defer rows.Close()

	var forecasts []ForecastPoint
	for rows.Next() {
		var (
			f     ForecastPoint
			month string
		)
		if err := rows.Scan(&month, &f.ForecastValue, &f.CILower, &f.CIUpper); err != nil {
			return nil, fmt.Errorf("ошибка при чтении данных: %w", err)
		}
		if f.Month, err = models.ParseYearMonth(month); err != nil {
			return nil, err
		}
		f.Date = f.Month.Start()
		forecasts = append(forecasts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по результатам: %w", err)
	}

	return forecasts, nil
}

// GetLastRegressionResult получает последний результат регрессии показателя
func (r *SQLPredictionRepository) GetLastRegressionResult(ctx context.Context, metric Metric) (*RegressionResult, error) {
	query := r.dialect.Rebind(`
	SELECT slope, intercept, r, r2, period_start, period_end
	FROM trend_forecasts
	WHERE metric = ?
	ORDER BY created_at DESC, forecast_month DESC
	LIMIT 1`)

	var (
		result     = RegressionResult{Metric: metric}
		start, end string
	)
	err := r.db.QueryRowContext(ctx, query, string(metric)).Scan(
		&result.A,
		&result.B,
		&result.R,
		&result.R2,
		&start,
		&end,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Нет данных - возвращаем nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении последнего результата регрессии: %w", err)
	}

	if result.PeriodStart, err = models.ParseYearMonth(start); err != nil {
		return nil, err
	}
	if result.PeriodEnd, err = models.ParseYearMonth(end); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteOldPredictions удаляет устаревшие прогнозы
func (r *SQLPredictionRepository) DeleteOldPredictions(ctx context.Context, olderThan time.Time) error {
	query := r.dialect.Rebind(`DELETE FROM trend_forecasts WHERE created_at < ?`)

	if _, err := r.db.ExecContext(ctx, query, olderThan.UnixMilli()); err != nil {
		return fmt.Errorf("ошибка при удалении устаревших прогнозов: %w", err)
	}

	return nil
}
