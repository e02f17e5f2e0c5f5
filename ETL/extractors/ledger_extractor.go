package extractors

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/shopspring/decimal"
)

// LedgerExtractor извлекает транзакции из CSV-реестра
type LedgerExtractor struct {
	logger *utils.ETLLogger
}

// NewLedgerExtractor создает новый экземпляр LedgerExtractor
func NewLedgerExtractor(logger *utils.ETLLogger) *LedgerExtractor {
	return &LedgerExtractor{
		logger: logger,
	}
}

// ExtractRaw читает исходный реестр. Нераспознанные значения остаются пустыми,
// решение об отбрасывании строк принимает очистка.
func (e *LedgerExtractor) ExtractRaw(ctx context.Context, path string) (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogExtractStart(path)

	file, err := os.Open(path)
	if err != nil {
		e.logger.Error("Не удалось открыть реестр %s: %v", path, err)
		return nil, fmt.Errorf("ошибка открытия реестра: %w", err)
	}
	defer file.Close()

	data, err := e.ReadRaw(ctx, file, path)
	if err != nil {
		e.logger.Error("Ошибка при извлечении транзакций: %v", err)
		return nil, err
	}

	e.logger.LogExtractComplete(data.RowsRead, data.RowsSkipped, time.Since(startTime))
	return data, nil
}

// ReadRaw читает исходный реестр из r; source используется в сообщениях об ошибках
func (e *LedgerExtractor) ReadRaw(ctx context.Context, r io.Reader, source string) (*models.ExtractedData, error) {
	table, err := readCSV(r, source, RawColumns)
	if err != nil {
		return nil, err
	}

	data := &models.ExtractedData{
		SourcePath:  source,
		Raw:         make([]models.RawTransaction, 0, len(table.rows)),
		RowsRead:    len(table.rows),
		ExtractedAt: time.Now(),
	}

	for i, row := range table.rows {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw := models.RawTransaction{
			Line:        i + 2, // строка 1 - заголовок
			ID:          table.value(row, "id"),
			CustomerID:  NormalizeCustomerID(table.value(row, "customer_id")),
			NetAmount:   ParseDecimal(table.value(row, "net_amount")),
			FeeInternal: ParseDecimal(table.value(row, "fee_internal_amount")),
			FeeExternal: ParseDecimal(table.value(row, "fee_external_amount")),
			Category:    table.value(row, "category"),
		}
		raw.PayingAt, _ = ParseTimestamp(table.value(row, "paying_at"))
		raw.CreatedAt, _ = ParseTimestamp(table.value(row, "created_at"))

		data.Raw = append(data.Raw, raw)
	}

	e.logger.Debug("Прочитано %d строк из %s", data.RowsRead, source)
	return data, nil
}

// ExtractClean читает очищенный CSV, который используют все аналитические шаги
func (e *LedgerExtractor) ExtractClean(ctx context.Context, path string) (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogExtractStart(path)

	file, err := os.Open(path)
	if err != nil {
		e.logger.Error("Не удалось открыть очищенный CSV %s: %v", path, err)
		return nil, fmt.Errorf("ошибка открытия очищенного CSV: %w", err)
	}
	defer file.Close()

	data, err := e.ReadClean(ctx, file, path)
	if err != nil {
		e.logger.Error("Ошибка при извлечении очищенных транзакций: %v", err)
		return nil, err
	}

	if data.RowsSkipped > 0 {
		e.logger.Warn("В %s пропущено %d строк с некорректными значениями", path, data.RowsSkipped)
	}
	e.logger.LogExtractComplete(data.RowsRead, data.RowsSkipped, time.Since(startTime))
	return data, nil
}

// ReadClean читает очищенный CSV из r. Строки без клиента, месяца или сумм пропускаются и считаются.
func (e *LedgerExtractor) ReadClean(ctx context.Context, r io.Reader, source string) (*models.ExtractedData, error) {
	table, err := readCSV(r, source, RequiredCleanColumns)
	if err != nil {
		return nil, err
	}

	data := &models.ExtractedData{
		SourcePath:   source,
		Transactions: make([]models.Transaction, 0, len(table.rows)),
		RowsRead:     len(table.rows),
		ExtractedAt:  time.Now(),
	}

	missingCohort := false
	for i, row := range table.rows {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		tx, ok := parseCleanRow(table, row)
		if !ok {
			data.RowsSkipped++
			e.logger.Debug("Пропущена строка %d в %s", i+2, source)
			continue
		}
		if !tx.CohortMonth.Valid() {
			missingCohort = true
		}
		data.Transactions = append(data.Transactions, tx)
	}

	// Старые выгрузки могут не содержать cohort_month
	if missingCohort {
		fillCohortMonths(data.Transactions)
	}

	return data, nil
}

func parseCleanRow(table *csvTable, row []string) (models.Transaction, bool) {
	customerID := NormalizeCustomerID(table.value(row, "customer_id"))
	if customerID == "" {
		return models.Transaction{}, false
	}

	month, err := models.ParseYearMonth(table.value(row, "year_month"))
	if err != nil {
		return models.Transaction{}, false
	}

	netAmount := ParseDecimal(table.value(row, "net_amount"))
	feeInternal := ParseDecimal(table.value(row, "fee_internal_amount"))
	if !netAmount.Valid || !feeInternal.Valid {
		return models.Transaction{}, false
	}

	tx := models.Transaction{
		ID:          table.value(row, "id"),
		CustomerID:  customerID,
		NetAmount:   netAmount.Decimal,
		FeeInternal: feeInternal.Decimal,
		FeeExternal: decimal.Zero,
		Category:    table.value(row, "category"),
		YearMonth:   month,
	}

	if fee := ParseDecimal(table.value(row, "fee_external_amount")); fee.Valid {
		tx.FeeExternal = fee.Decimal
	}
	if date, ok := ParseTimestamp(table.value(row, "transaction_date")); ok {
		tx.TransactionDate = date
	} else {
		tx.TransactionDate = month.Start()
	}
	if cohort, err := models.ParseYearMonth(table.value(row, "cohort_month")); err == nil {
		tx.CohortMonth = cohort
	}
	tx.CreatedAt, _ = ParseTimestamp(table.value(row, "created_at"))

	return tx, true
}

// fillCohortMonths проставляет месяц первой транзакции клиента там, где он не задан
func fillCohortMonths(transactions []models.Transaction) {
	first := make(map[string]models.YearMonth)
	for _, tx := range transactions {
		if m, ok := first[tx.CustomerID]; !ok || tx.YearMonth < m {
			first[tx.CustomerID] = tx.YearMonth
		}
	}
	for i := range transactions {
		if !transactions[i].CohortMonth.Valid() {
			transactions[i].CohortMonth = first[transactions[i].CustomerID]
		}
	}
}
