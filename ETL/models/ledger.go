package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction представляет строку исходного реестра транзакций до очистки.
// Значения, которые не удалось разобрать, остаются пустыми (нулевое время, Valid=false).
type RawTransaction struct {
	Line        int
	ID          string
	CustomerID  string
	NetAmount   decimal.NullDecimal
	FeeInternal decimal.NullDecimal
	FeeExternal decimal.NullDecimal
	Category    string
	PayingAt    time.Time
	CreatedAt   time.Time
}

// Transaction представляет очищенную транзакцию
type Transaction struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	FeeInternal     decimal.Decimal `json:"fee_internal_amount"`
	FeeExternal     decimal.Decimal `json:"fee_external_amount"`
	Category        string          `json:"category"`
	TransactionDate time.Time       `json:"transaction_date"`
	YearMonth       YearMonth       `json:"year_month"`
	CohortMonth     YearMonth       `json:"cohort_month"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExtractedData содержит данные, извлечённые из CSV
type ExtractedData struct {
	SourcePath   string
	Raw          []RawTransaction
	Transactions []Transaction
	RowsRead     int
	RowsSkipped  int
	ExtractedAt  time.Time
}
