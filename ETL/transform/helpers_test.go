package transform

import (
	"testing"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/shopspring/decimal"
)

func ym(year int, month time.Month) models.YearMonth {
	return models.NewYearMonth(year, month)
}

// tx собирает транзакцию клиента в день day месяца month
func tx(customer string, month models.YearMonth, day int, amount, fee float64, bank string) models.Transaction {
	return models.Transaction{
		ID:              customer + "-" + month.String(),
		CustomerID:      customer,
		NetAmount:       decimal.NewFromFloat(amount),
		FeeInternal:     decimal.NewFromFloat(fee),
		FeeExternal:     decimal.Zero,
		Category:        bank,
		TransactionDate: time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC),
		YearMonth:       month,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	const eps = 1e-9
	if got-want > eps || want-got > eps {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}
