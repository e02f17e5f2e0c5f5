package linear_regression

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
)

// Config конфигурация процессора линейной регрессии
type Config struct {
	// Количество месяцев для прогноза
	ForecastMonths int
	// Уровень доверия (0.90, 0.95, 0.99)
	ConfidenceLevel float64
	// Минимальное значение r² для признания модели значимой
	MinR2Threshold float64
	// Срок хранения прогнозов в хранилище
	RetentionPeriod time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		ForecastMonths:  3,
		ConfidenceLevel: 0.95,
		MinR2Threshold:  0.30, // 30% объяснённой вариации
		RetentionPeriod: 90 * 24 * time.Hour,
	}
}

// RegressionProcessor процессор линейной регрессии
type RegressionProcessor struct {
	repository PredictionRepository // nil, если хранилище отключено
	logger     *utils.ETLLogger
	config     Config
}

// NewRegressionProcessor создает новый процессор линейной регрессии
func NewRegressionProcessor(repository PredictionRepository, logger *utils.ETLLogger, config Config) *RegressionProcessor {
	return &RegressionProcessor{
		repository: repository,
		logger:     logger,
		config:     config,
	}
}

// Process строит модели и прогнозы выручки, объема и активных клиентов по месячным фактам.
// Ошибка модели отдельного показателя логируется и не прерывает остальные;
// ошибка возвращается, только если не удалось построить ни одной модели или сохранить прогнозы.
func (p *RegressionProcessor) Process(ctx context.Context, runID string, facts []models.MonthlyFact) ([]MetricForecast, error) {
	startTime := time.Now()
	p.logger.Info("Запуск процесса линейной регрессии для прогнозирования месячных показателей")

	var (
		results  []MetricForecast
		firstErr error
	)
	for _, metric := range Metrics {
		forecast, err := p.ProcessMetric(metric, facts)
		if err != nil {
			p.logger.Warn("Прогноз показателя %s не построен: %v", metric, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, *forecast)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("ни один прогноз не построен: %w", firstErr)
	}

	if p.repository != nil {
		p.logger.Info("Сохранение прогнозов в хранилище")
		for _, r := range results {
			if err := p.repository.SaveMultiplePredictions(ctx, runID, r.Result, r.Forecasts); err != nil {
				return results, fmt.Errorf("ошибка при сохранении прогнозов: %w", err)
			}
		}

		// Удаляем устаревшие прогнозы
		if p.config.RetentionPeriod > 0 {
			deleteOlderThan := time.Now().Add(-p.config.RetentionPeriod)
			if err := p.repository.DeleteOldPredictions(ctx, deleteOlderThan); err != nil {
				// Это некритическая ошибка, просто логируем
				p.logger.Warn("Не удалось удалить устаревшие прогнозы: %v", err)
			}
		}
	}

	p.logger.Info("Процесс линейной регрессии успешно завершен. Время выполнения: %v", time.Since(startTime))
	return results, nil
}

// ProcessMetric строит модель и прогноз одного показателя
func (p *RegressionProcessor) ProcessMetric(metric Metric, facts []models.MonthlyFact) (*MetricForecast, error) {
	dataPoints, err := SeriesFromMonthlyFacts(facts, metric)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Показатель %s: %d точек данных", metric, len(dataPoints))

	regressionResult, err := LinearRegression(metric, dataPoints)
	if err != nil {
		return nil, fmt.Errorf("ошибка при построении модели линейной регрессии: %w", err)
	}

	p.logger.Info("Модель %s: наклон (a)=%.3f, сдвиг (b)=%.3f, R=%.3f, R²=%.3f, период %s..%s",
		metric, regressionResult.A, regressionResult.B, regressionResult.R, regressionResult.R2,
		regressionResult.PeriodStart, regressionResult.PeriodEnd)

	forecast := &MetricForecast{Result: *regressionResult}

	// Если модель недостаточно хороша, логируем предупреждение
	if regressionResult.R2 < p.config.MinR2Threshold {
		forecast.LowR2 = true
		p.logger.Warn("Низкое качество модели %s (R²=%.3f < %.3f). Однако прогноз будет сделан.",
			metric, regressionResult.R2, p.config.MinR2Threshold)
	}

	forecast.Forecasts = GenerateForecasts(regressionResult, p.config.ForecastMonths, p.config.ConfidenceLevel)
	for _, f := range forecast.Forecasts {
		p.logger.Debug("Прогноз %s на %s: %.3f [%.3f; %.3f]", metric, f.Month, f.ForecastValue, f.CILower, f.CIUpper)
	}

	return forecast, nil
}
