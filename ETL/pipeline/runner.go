package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LilVoxy/ledger_analytics/ETL/config"
	"github.com/LilVoxy/ledger_analytics/ETL/extractors"
	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/load"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/report"
	"github.com/LilVoxy/ledger_analytics/ETL/transform"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/LilVoxy/ledger_analytics/processor"
)

// RunResult итог успешного запуска ETL
type RunResult struct {
	Run       models.ETLRunLog         `json:"run"`
	Cleaning  transform.CleaningReport `json:"cleaning"`
	Forecasts int                      `json:"forecasts"`
	Snapshots []load.SnapshotInfo      `json:"snapshots"`
	Charts    []string                 `json:"charts,omitempty"`
	Exports   []string                 `json:"exports,omitempty"`
	Warnings  []string                 `json:"warnings,omitempty"`
	Data      *models.TransformedData  `json:"-"`
}

// Runner выполняет ETL процесс: извлечение, очистка, преобразование, прогноз, загрузка и отчеты
type Runner struct {
	// Одновременно выполняется только один запуск
	mu sync.Mutex

	config      config.ETLConfig
	logger      *utils.ETLLogger
	warehouse   *config.Warehouse // nil, если хранилище отключено
	ownsLogger  bool
	extractor   *extractors.LedgerExtractor
	transformer *transform.Transformer
	predictions linear_regression.PredictionRepository
	loadManager *load.LoadManager
	etlLogRepo  models.ETLLogRepository
	console     *report.ConsoleReporter
	charts      *report.ChartRenderer

	listenersMu     sync.RWMutex
	listeners       []func(RunResult)
	failedListeners []func(models.ETLRunLog)
}

// Open создает Runner по конфигурации: логгер в LogDir и подключение к хранилищу, если оно включено
func Open(ctx context.Context, cfg config.ETLConfig) (*Runner, error) {
	logger, err := utils.NewETLLogger(cfg.LogDir, cfg.EnableDetailedLogging)
	if err != nil {
		return nil, err
	}
	logger.Info("Инициализация ETL Runner")

	var warehouse *config.Warehouse
	if cfg.EnableWarehouse {
		warehouse, err = config.ConnectWarehouse(ctx, cfg.Warehouse)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
		}
		logger.Info("Подключено хранилище %s", warehouse.Dialect.Driver)
	}

	runner := NewRunner(cfg, logger, warehouse, os.Stdout)
	runner.ownsLogger = true
	return runner, nil
}

// NewRunner создает Runner из готовых зависимостей. warehouse может быть nil:
// тогда журнал запусков и отчеты хранятся в памяти, а фаза Load пропускается.
// Консольные таблицы печатаются в out.
func NewRunner(cfg config.ETLConfig, logger *utils.ETLLogger, warehouse *config.Warehouse, out io.Writer) *Runner {
	r := &Runner{
		config:    cfg,
		logger:    logger,
		warehouse: warehouse,
		extractor: extractors.NewLedgerExtractor(logger),
		transformer: transform.NewTransformer(logger, transform.Options{
			Cohort: transform.CohortOptions{ExcludeZeroFee: cfg.ExcludeZeroFee},
			Recency: transform.RecencyThresholds{
				Active: cfg.RecencyThresholds.Active,
				AtRisk: cfg.RecencyThresholds.AtRisk,
			},
			TopCustomers: cfg.TopCustomers,
		}),
	}

	if warehouse != nil {
		r.etlLogRepo = models.NewSQLETLLogRepository(warehouse.DB, warehouse.Dialect)
		r.predictions = linear_regression.NewSQLPredictionRepository(warehouse.DB, warehouse.Dialect)
		r.loadManager = load.NewLoadManager(
			load.NewWarehouseLoader(warehouse.DB, warehouse.Dialect, logger),
			snapshotStore(cfg, warehouse, logger),
			logger,
		)
	} else {
		r.etlLogRepo = models.NewMemoryETLLogRepository()
		r.loadManager = load.NewLoadManager(nil, load.NewMemorySnapshotStore(), logger)
	}

	if cfg.EnableConsoleReport && out != nil {
		r.console = report.NewConsoleReporter(out)
	}
	if cfg.EnableCharts {
		r.charts = report.NewChartRenderer(cfg.OutputDir, logger)
	}
	return r
}

// snapshotStore создает хранилище отчетов в базе, с шифрованием, если задан ключ
func snapshotStore(cfg config.ETLConfig, warehouse *config.Warehouse, logger *utils.ETLLogger) *load.SQLSnapshotStore {
	store := load.NewSQLSnapshotStore(warehouse.DB, warehouse.Dialect)
	if cfg.SnapshotKey == "" {
		return store
	}
	sealer, err := processor.NewSealer(cfg.SnapshotKey)
	if err != nil {
		// Validate отклоняет такой ключ; сюда попадает только конфигурация, собранная вручную
		logger.Error("Шифрование отчетов отключено: %v", err)
		return store
	}
	return store.WithSealer(sealer)
}

// Close закрывает соединение с хранилищем и файл лога
func (r *Runner) Close() {
	r.logger.Info("Завершение работы ETL Runner")
	config.CloseWarehouse(r.warehouse)
	if r.ownsLogger {
		r.logger.Close()
	}
}

// Logger возвращает логгер ETL
func (r *Runner) Logger() *utils.ETLLogger {
	return r.logger
}

// OnRunComplete регистрирует обработчик успешного завершения запуска
func (r *Runner) OnRunComplete(fn func(RunResult)) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// OnRunFailed регистрирует обработчик неудачного запуска
func (r *Runner) OnRunFailed(fn func(models.ETLRunLog)) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.failedListeners = append(r.failedListeners, fn)
}

func (r *Runner) notify(result RunResult) {
	r.listenersMu.RLock()
	listeners := append([]func(RunResult){}, r.listeners...)
	r.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(result)
	}
}

func (r *Runner) forecastConfig() linear_regression.Config {
	cfg := linear_regression.DefaultConfig()
	cfg.ForecastMonths = r.config.ForecastMonths
	cfg.ConfidenceLevel = r.config.ConfidenceLevel
	cfg.MinR2Threshold = r.config.MinR2Threshold
	return cfg
}

// ExecuteETL выполняет полный ETL процесс.
// Ошибка прогнозирования не прерывает запуск; ошибка любой другой фазы помечает запуск как failed.
func (r *Runner) ExecuteETL(ctx context.Context) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startTime := time.Now()
	runLog := &models.ETLRunLog{
		ID:         uuid.NewString(),
		StartTime:  startTime,
		SourceFile: r.config.InputPath,
	}
	r.logger.LogETLStart(runLog.ID)

	// Создаем запись в журнале ETL
	if err := r.etlLogRepo.CreateLogEntry(ctx, runLog); err != nil {
		r.logger.Error("Ошибка при создании записи в журнале ETL: %v", err)
		return nil, fmt.Errorf("ошибка при создании записи в журнале ETL: %w", err)
	}

	result := &RunResult{}

	// 1. Фаза извлечения и очистки (Extract + Clean)
	cleaning, err := r.extractAndClean(ctx)
	if err != nil {
		return nil, r.fail(ctx, runLog, "Extract", err)
	}
	result.Cleaning = *cleaning
	runLog.RowsRead = cleaning.RowsRead
	runLog.RowsDropped = cleaning.Dropped()

	// 2. Чтение очищенного CSV
	cleanData, err := r.extractor.ExtractClean(ctx, r.config.CleanPath)
	if err != nil {
		return nil, r.fail(ctx, runLog, "Extract", err)
	}

	// 3. Фаза трансформации данных (Transform)
	transformedData, err := r.transformer.Transform(ctx, runLog.ID, cleanData.Transactions)
	if err != nil {
		return nil, r.fail(ctx, runLog, "Transform", err)
	}
	result.Data = transformedData
	result.Warnings = append(result.Warnings, transformedData.Metadata.Warnings...)

	// 4. Линейная регрессия для прогнозирования месячных показателей
	forecaster := linear_regression.NewRegressionProcessor(r.predictions, r.logger, r.forecastConfig())
	forecasts, err := forecaster.Process(ctx, runLog.ID, transformedData.Monthly)
	if err != nil {
		// Не прерываем ETL процесс из-за ошибки в линейной регрессии
		r.logger.Error("Ошибка при выполнении линейной регрессии: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("прогноз: %v", err))
	}
	result.Forecasts = len(forecasts)

	// 5. Фаза загрузки данных (Load)
	if err := r.loadManager.Load(ctx, runLog.ID, transformedData); err != nil {
		return nil, r.fail(ctx, runLog, "Load", err)
	}

	// 6. Отчеты
	bundle := report.Bundle{Data: transformedData, Forecasts: forecasts, Cleaning: cleaning}
	if err := r.writeReports(ctx, runLog.ID, bundle, result); err != nil {
		return nil, r.fail(ctx, runLog, "Report", err)
	}

	// Обновляем запись в журнале с информацией об успешном выполнении
	runLog.EndTime = time.Now()
	runLog.TransactionsProcessed = transformedData.Metadata.TransactionsProcessed
	runLog.CustomersProcessed = transformedData.Metadata.CustomersProcessed
	if err := r.etlLogRepo.UpdateLogEntrySuccess(ctx, runLog); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
	}
	result.Run = *runLog

	r.logger.LogETLComplete(startTime, runLog.TransactionsProcessed, runLog.CustomersProcessed, len(transformedData.Monthly))
	r.notify(*result)
	return result, nil
}

// fail помечает запуск как неудачный и возвращает обернутую ошибку фазы
func (r *Runner) fail(ctx context.Context, runLog *models.ETLRunLog, phase string, err error) error {
	errMsg := fmt.Sprintf("Ошибка в фазе %s: %v", phase, err)
	r.logger.Error("%s", errMsg)

	runLog.EndTime = time.Now()
	runLog.Status = models.RunStatusFailed
	runLog.ErrorMessage = errMsg

	// Запись в журнал не должна зависеть от отмененного контекста запуска
	logCtx := context.WithoutCancel(ctx)
	if err := r.etlLogRepo.UpdateLogEntryFailure(logCtx, runLog.ID, runLog.EndTime, errMsg); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
	}

	r.listenersMu.RLock()
	listeners := append([]func(models.ETLRunLog){}, r.failedListeners...)
	r.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(*runLog)
	}
	return fmt.Errorf("ошибка в фазе %s: %w", phase, err)
}

// extractAndClean читает исходный реестр, очищает его и записывает очищенный CSV
func (r *Runner) extractAndClean(ctx context.Context) (*transform.CleaningReport, error) {
	raw, err := r.extractor.ExtractRaw(ctx, r.config.InputPath)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	transactions, cleaning := transform.Clean(raw.Raw)
	if dropped := cleaning.Dropped(); dropped > 0 {
		r.logger.Warn("Очистка отбросила %d из %d строк (нет клиента: %d, некорректная дата: %d, некорректная сумма: %d, отрицательная сумма: %d)",
			dropped, cleaning.RowsRead, cleaning.MissingCustomer, cleaning.InvalidPayingAt, cleaning.InvalidAmount, cleaning.NegativeAmount)
	}

	if err := transform.WriteCleanCSVFile(r.config.CleanPath, transactions); err != nil {
		return nil, fmt.Errorf("ошибка записи очищенного CSV: %w", err)
	}
	r.logger.Info("Очищенный CSV записан: %s (%s строк)", r.config.CleanPath, utils.FormatInt(int64(len(transactions))))
	r.logger.LogPhase("Clean", startTime)
	return &cleaning, nil
}

// writeReports сохраняет снимки отчетов, печатает таблицы, строит графики и экспортирует JSON
func (r *Runner) writeReports(ctx context.Context, runID string, bundle report.Bundle, result *RunResult) error {
	startTime := time.Now()

	snapshots, err := r.loadManager.SaveSnapshots(ctx, runID, report.Snapshots(bundle))
	if err != nil {
		return err
	}
	result.Snapshots = snapshots

	if r.console != nil {
		r.console.Render(bundle)
	}

	if r.charts != nil {
		files, err := r.charts.RenderAll(bundle)
		if err != nil {
			return err
		}
		result.Charts = files
	}

	if r.config.EnableJSONExport {
		files, err := report.ExportAll(r.config.OutputDir, bundle, startTime)
		if err != nil {
			return err
		}
		r.logger.Info("Отчеты экспортированы в JSON: %d файлов", len(files))
		result.Exports = files
	}

	r.logger.LogPhase("Report", startTime)
	return nil
}
