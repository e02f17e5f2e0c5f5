package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/extractors"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
)

// Options параметры аналитических преобразований
type Options struct {
	Cohort       CohortOptions
	Recency      RecencyThresholds
	TopCustomers int
}

// Transformer координирует построение всех аналитических агрегатов по очищенным транзакциям
type Transformer struct {
	logger  *utils.ETLLogger
	options Options
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(logger *utils.ETLLogger, options Options) *Transformer {
	if options.Recency == (RecencyThresholds{}) {
		options.Recency = DefaultRecencyThresholds
	}
	if options.TopCustomers <= 0 {
		options.TopCustomers = 10
	}
	return &Transformer{
		logger:  logger,
		options: options,
	}
}

// Transform выполняет полный процесс преобразования.
// Ошибки месячных показателей и когорт фатальны; клиентская аналитика, которую не удалось
// посчитать, остается nil, а причина попадает в Metadata.Warnings.
func (t *Transformer) Transform(ctx context.Context, runID string, transactions []models.Transaction) (*models.TransformedData, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform (Преобразование данных)")

	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}

	// Создаем структуру для хранения трансформированных данных
	transformedData := &models.TransformedData{}
	var err error

	// 1. Месячные показатели
	t.logger.Info("Формирование месячных показателей...")
	transformedData.Monthly, err = BuildMonthlyFacts(transactions)
	if err != nil {
		t.logger.Error("Ошибка при формировании месячных показателей: %v", err)
		return nil, fmt.Errorf("ошибка при формировании месячных показателей: %w", err)
	}

	// 2. Доли банков
	t.logger.Info("Расчет долей банков...")
	transformedData.MarketShare, err = BuildMarketShare(transactions)
	if err != nil {
		t.logger.Error("Ошибка при расчете долей банков: %v", err)
		return nil, fmt.Errorf("ошибка при расчете долей банков: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Когортная матрица
	t.logger.Info("Построение когортной матрицы...")
	transformedData.Cohorts, err = BuildCohortMatrix(transactions, t.options.Cohort)
	if err != nil {
		t.logger.Error("Ошибка при построении когорт: %v", err)
		return nil, fmt.Errorf("ошибка при построении когорт: %w", err)
	}
	if skipped := transformedData.Cohorts.SkippedRecords; skipped > 0 {
		t.logger.Warn("При назначении когорт пропущено %d записей", skipped)
	}
	transformedData.CohortValue = CohortValueSnapshots(transformedData.Cohorts)
	t.logger.Debug("Когорт: %d, максимальный возраст: %d", len(transformedData.Cohorts.Rows), transformedData.Cohorts.MaxAge())

	var warnings []string
	warn := func(what string, err error) {
		t.logger.Warn("Показатель \"%s\" не рассчитан: %v", what, err)
		warnings = append(warnings, fmt.Sprintf("%s: %v", what, err))
	}

	// 4. Клиентская аналитика
	t.logger.Info("Сегментация клиентов...")
	if transformedData.Segmentation, err = SegmentCustomers(transactions); err != nil {
		warn("сегментация клиентов", err)
	}

	t.logger.Info("Расчет концентрации выручки...")
	if transformedData.Concentration, err = BuildConcentration(transactions); err != nil {
		warn("концентрация выручки", err)
	}

	t.logger.Info("Расчет наблюдаемой ценности клиентов...")
	if transformedData.ObservedValue, err = BuildObservedValue(transactions, t.options.TopCustomers); err != nil {
		warn("наблюдаемая ценность клиентов", err)
	}

	t.logger.Info("Оценка вовлеченности клиентов...")
	if transformedData.Engagement, err = BuildEngagement(transactions, t.options.Recency); err != nil {
		warn("вовлеченность клиентов", err)
	}

	// Заполняем метаданные
	customers := make(map[string]struct{})
	for _, tx := range transactions {
		if tx.CustomerID != "" {
			customers[tx.CustomerID] = struct{}{}
		}
	}
	transformedData.Metadata = models.ETLMetadata{
		RunID:                 runID,
		TransformedAt:         time.Now(),
		TransactionsProcessed: len(transactions),
		CustomersProcessed:    len(customers),
		FirstMonth:            transformedData.Monthly[0].Month,
		LastMonth:             transformedData.Monthly[len(transformedData.Monthly)-1].Month,
		Warnings:              warnings,
	}

	duration := time.Since(startTime)
	t.logger.Info("Фаза Transform завершена. Длительность: %v", duration)

	return transformedData, nil
}

// IsDataError сообщает, что ошибка вызвана содержимым данных, а не сбоем окружения
func IsDataError(err error) bool {
	var missing *extractors.MissingColumnsError
	return errors.As(err, &missing) ||
		errors.Is(err, ErrNoTransactions) ||
		errors.Is(err, ErrNonPositiveRevenue) ||
		errors.Is(err, ErrNoPositiveValue)
}
