package linear_regression

import (
	"context"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

// Metric прогнозируемый месячный показатель
type Metric string

const (
	MetricRevenue         Metric = "revenue"          // сумма внутренних комиссий
	MetricVolume          Metric = "volume"           // сумма пополнений (net_amount)
	MetricActiveCustomers Metric = "active_customers" // уникальные клиенты за месяц (MAU)
)

// Metrics все прогнозируемые показатели
var Metrics = []Metric{MetricRevenue, MetricVolume, MetricActiveCustomers}

// DataPoint представляет точку данных для линейной регрессии
type DataPoint struct {
	X     float64          // Порядковый номер месяца (0 - первый месяц ряда)
	Y     float64          // Значение показателя за месяц
	Month models.YearMonth // Фактический месяц
}

// RegressionResult содержит результаты линейной регрессии
type RegressionResult struct {
	Metric      Metric           `json:"metric"`
	A           float64          `json:"slope"`     // Коэффициент наклона
	B           float64          `json:"intercept"` // Сдвиг
	R           float64          `json:"r"`         // Коэффициент корреляции Пирсона
	R2          float64          `json:"r2"`        // Коэффициент детерминации
	PeriodStart models.YearMonth `json:"period_start"`
	PeriodEnd   models.YearMonth `json:"period_end"`
	DataPoints  []DataPoint      `json:"-"`
}

// ForecastPoint представляет точку прогноза
type ForecastPoint struct {
	Month         models.YearMonth `json:"month"`
	Date          time.Time        `json:"date"` // Первый день месяца прогноза
	ForecastValue float64          `json:"forecast_value"`
	CILower       float64          `json:"ci_lower"`
	CIUpper       float64          `json:"ci_upper"`
}

// MetricForecast модель и прогноз одного показателя
type MetricForecast struct {
	Result    RegressionResult `json:"result"`
	Forecasts []ForecastPoint  `json:"forecasts"`
	LowR2     bool             `json:"low_r2"`
}

// PredictionRepository интерфейс для работы с хранилищем прогнозов
type PredictionRepository interface {
	// SaveMultiplePredictions сохраняет модель и прогнозы показателя
	SaveMultiplePredictions(ctx context.Context, runID string, result RegressionResult, forecasts []ForecastPoint) error

	// GetForecasts получает сохраненные прогнозы показателя
	GetForecasts(ctx context.Context, metric Metric) ([]ForecastPoint, error)

	// GetLastRegressionResult получает последний результат регрессии показателя
	GetLastRegressionResult(ctx context.Context, metric Metric) (*RegressionResult, error)

	// DeleteOldPredictions удаляет прогнозы, созданные раньше olderThan
	DeleteOldPredictions(ctx context.Context, olderThan time.Time) error
}
