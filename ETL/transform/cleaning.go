package transform

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/extractors"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/shopspring/decimal"
)

// CleaningReport содержит количество строк, отброшенных при очистке, по причинам
type CleaningReport struct {
	RowsRead        int `json:"rows_read"`
	RowsKept        int `json:"rows_kept"`
	MissingCustomer int `json:"missing_customer"`
	InvalidPayingAt int `json:"invalid_paying_at"`
	InvalidAmount   int `json:"invalid_amount"`
	NegativeAmount  int `json:"negative_amount"`
}

// Dropped возвращает общее число отброшенных строк
func (r CleaningReport) Dropped() int {
	return r.MissingCustomer + r.InvalidPayingAt + r.InvalidAmount + r.NegativeAmount
}

// Clean превращает сырые строки реестра в транзакции.
// Строка отбрасывается, если нет клиента, не распознан paying_at или не распознаны
// net_amount / fee_internal_amount, а также если любая сумма отрицательна (возвраты и сторно).
// Пустая внешняя комиссия считается нулевой.
func Clean(raw []models.RawTransaction) ([]models.Transaction, CleaningReport) {
	report := CleaningReport{RowsRead: len(raw)}
	transactions := make([]models.Transaction, 0, len(raw))

	for _, r := range raw {
		switch {
		case r.CustomerID == "":
			report.MissingCustomer++
			continue
		case r.PayingAt.IsZero():
			report.InvalidPayingAt++
			continue
		case !r.NetAmount.Valid || !r.FeeInternal.Valid:
			report.InvalidAmount++
			continue
		case r.NetAmount.Decimal.IsNegative() || r.FeeInternal.Decimal.IsNegative() ||
			(r.FeeExternal.Valid && r.FeeExternal.Decimal.IsNegative()):
			report.NegativeAmount++
			continue
		}

		feeExternal := decimal.Zero
		if r.FeeExternal.Valid {
			feeExternal = r.FeeExternal.Decimal
		}

		transactions = append(transactions, models.Transaction{
			ID:              r.ID,
			CustomerID:      r.CustomerID,
			NetAmount:       r.NetAmount.Decimal,
			FeeInternal:     r.FeeInternal.Decimal,
			FeeExternal:     feeExternal,
			Category:        r.Category,
			TransactionDate: dateOf(r.PayingAt),
			YearMonth:       models.YearMonthOf(r.PayingAt),
			CreatedAt:       r.CreatedAt,
		})
	}

	// Месяц когорты - месяц первой оплаты клиента
	firstMonth := firstMonthByCustomer(transactions)
	for i := range transactions {
		transactions[i].CohortMonth = firstMonth[transactions[i].CustomerID]
	}

	report.RowsKept = len(transactions)
	return transactions, report
}

// WriteCleanCSVFile записывает очищенные транзакции в файл, создавая каталог при необходимости
func WriteCleanCSVFile(path string, transactions []models.Transaction) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ошибка создания каталога %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла %s: %w", path, err)
	}

	if err := WriteCleanCSV(file, transactions); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCleanCSV записывает очищенные транзакции в формате, который читает extractors.ReadClean
func WriteCleanCSV(w io.Writer, transactions []models.Transaction) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(extractors.CleanColumns); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	for _, tx := range transactions {
		createdAt := ""
		if !tx.CreatedAt.IsZero() {
			createdAt = tx.CreatedAt.Format("2006-01-02 15:04:05")
		}

		record := []string{
			tx.ID,
			tx.CustomerID,
			tx.NetAmount.String(),
			tx.FeeInternal.String(),
			tx.FeeExternal.String(),
			tx.Category,
			tx.TransactionDate.Format("2006-01-02"),
			tx.YearMonth.String(),
			tx.CohortMonth.String(),
			createdAt,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("ошибка записи транзакции %s: %w", tx.ID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("ошибка записи очищенного CSV: %w", err)
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// firstMonthByCustomer возвращает месяц первой транзакции каждого клиента
func firstMonthByCustomer(transactions []models.Transaction) map[string]models.YearMonth {
	first := make(map[string]models.YearMonth)
	for _, tx := range transactions {
		if !tx.YearMonth.Valid() {
			continue
		}
		if m, ok := first[tx.CustomerID]; !ok || tx.YearMonth < m {
			first[tx.CustomerID] = tx.YearMonth
		}
	}
	return first
}

// dayNumber номер календарного дня транзакции от эпохи
func dayNumber(tx models.Transaction) int64 {
	return dateOf(tx.TransactionDate).Unix() / 86400
}

func dateFromDayNumber(day int64) time.Time {
	return time.Unix(day*86400, 0).UTC()
}
