package pipeline

import (
	"context"
	"fmt"

	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/load"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/transform"
)

// Clean выполняет только очистку: исходный реестр -> очищенный CSV
func (r *Runner) Clean(ctx context.Context) (*transform.CleaningReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Запуск очистки реестра %s", r.config.InputPath)
	return r.extractAndClean(ctx)
}

// RunForecasts строит прогнозы с параметрами cfg.
// Месячные факты берутся из хранилища, если оно включено и заполнено, иначе считаются по очищенному CSV.
func (r *Runner) RunForecasts(ctx context.Context, cfg linear_regression.Config) ([]linear_regression.MetricForecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Запуск линейной регрессии с параметрами: прогноз=%d мес., доверие=%.2f, минR²=%.2f",
		cfg.ForecastMonths, cfg.ConfidenceLevel, cfg.MinR2Threshold)

	facts, err := r.monthlyFacts(ctx)
	if err != nil {
		return nil, err
	}

	processor := linear_regression.NewRegressionProcessor(r.predictions, r.logger, cfg)
	forecasts, err := processor.Process(ctx, "lr-"+newRunSuffix(), facts)
	if err != nil {
		return nil, err
	}

	if r.console != nil {
		r.console.PrintForecasts(forecasts)
	}
	return forecasts, nil
}

func (r *Runner) monthlyFacts(ctx context.Context) ([]models.MonthlyFact, error) {
	if r.warehouse != nil {
		facts, err := linear_regression.NewDataService(r.warehouse.DB, r.warehouse.Dialect).GetMonthlyFacts(ctx)
		if err != nil {
			return nil, err
		}
		if len(facts) > 0 {
			r.logger.Info("Месячные факты прочитаны из хранилища: %d месяцев", len(facts))
			return facts, nil
		}
		r.logger.Warn("В хранилище нет месячных фактов, используется очищенный CSV")
	}

	data, err := r.extractor.ExtractClean(ctx, r.config.CleanPath)
	if err != nil {
		return nil, err
	}
	facts, err := transform.BuildMonthlyFacts(data.Transactions)
	if err != nil {
		return nil, fmt.Errorf("ошибка при формировании месячных показателей: %w", err)
	}
	return facts, nil
}

// Runs возвращает последние limit запусков, новые первыми
func (r *Runner) Runs(ctx context.Context, limit int) ([]models.ETLRunLog, error) {
	return r.etlLogRepo.GetETLRunStats(ctx, limit)
}

// State возвращает сводное состояние ETL по журналу запусков
func (r *Runner) State(ctx context.Context) (*models.ETLStateMonitor, error) {
	runs, err := r.etlLogRepo.GetETLRunStats(ctx, 1000)
	if err != nil {
		return nil, err
	}
	return models.BuildStateMonitor(runs), nil
}

// Snapshots возвращает хранилище отчетов последнего запуска
func (r *Runner) Snapshots() load.SnapshotStore {
	return r.loadManager.Snapshots()
}
