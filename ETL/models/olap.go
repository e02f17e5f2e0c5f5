package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CohortCell представляет ячейку когортной матрицы (когорта × возраст)
type CohortCell struct {
	Cohort                     YearMonth       `json:"cohort"`
	Age                        int             `json:"age"`
	Users                      int             `json:"users"`
	Transactions               int             `json:"transactions"`
	Fee                        decimal.Decimal `json:"fee"`
	Amount                     decimal.Decimal `json:"amount"`
	RetentionPct               float64         `json:"retention_pct"`
	CumulativeFee              decimal.Decimal `json:"cumulative_fee"`
	CumulativeValuePerCustomer float64         `json:"cumulative_value_per_customer"`
}

// CohortRow строка матрицы: все возрасты одной когорты от 0 до горизонта наблюдения
type CohortRow struct {
	Cohort YearMonth    `json:"cohort"`
	Size   int          `json:"size"`
	Cells  []CohortCell `json:"cells"`
}

// CohortMatrix плотная когортная матрица
type CohortMatrix struct {
	Rows           []CohortRow `json:"rows"`
	LatestPeriod   YearMonth   `json:"latest_period"`
	SkippedRecords int         `json:"skipped_records"`
}

// Cell возвращает ячейку (когорта, возраст). Для возраста за горизонтом когорты ячейки нет.
func (m *CohortMatrix) Cell(cohort YearMonth, age int) (CohortCell, bool) {
	for _, row := range m.Rows {
		if row.Cohort != cohort {
			continue
		}
		if age < 0 || age >= len(row.Cells) {
			return CohortCell{}, false
		}
		return row.Cells[age], true
	}
	return CohortCell{}, false
}

// Cells возвращает все ячейки матрицы построчно
func (m *CohortMatrix) Cells() []CohortCell {
	var cells []CohortCell
	for _, row := range m.Rows {
		cells = append(cells, row.Cells...)
	}
	return cells
}

// MaxAge возвращает наибольший возраст в матрице
func (m *CohortMatrix) MaxAge() int {
	maxAge := 0
	for _, row := range m.Rows {
		if len(row.Cells)-1 > maxAge {
			maxAge = len(row.Cells) - 1
		}
	}
	return maxAge
}

// CohortValueSnapshot последнее наблюдаемое значение ценности клиента по когорте
type CohortValueSnapshot struct {
	Cohort           YearMonth `json:"cohort"`
	CohortSize       int       `json:"cohort_size"`
	MonthsObserved   int       `json:"months_observed"`
	ValuePerCustomer float64   `json:"value_per_customer"`
}

// MonthlyFact представляет месячные показатели платформы
type MonthlyFact struct {
	Month              YearMonth       `json:"month"`
	Volume             decimal.Decimal `json:"volume"`
	Revenue            decimal.Decimal `json:"revenue"`
	ExternalFee        decimal.Decimal `json:"external_fee"`
	Transactions       int             `json:"transactions"`
	ActiveCustomers    int             `json:"active_customers"`
	NewCustomers       int             `json:"new_customers"`
	ReturningCustomers int             `json:"returning_customers"`
	MoMGrowthPct       *float64        `json:"mom_growth_pct"` // nil, если выручка прошлого месяца равна 0
}

// MarketShareFact доля банка в объеме пополнений за месяц
type MarketShareFact struct {
	Month  YearMonth       `json:"month"`
	Bank   string          `json:"bank"`
	Volume decimal.Decimal `json:"volume"`
	Share  float64         `json:"share"`
}

// CustomerSegment сегмент клиента по суммарному объему пополнений
type CustomerSegment string

const (
	SegmentLongTail   CustomerSegment = "Long Tail (Bottom 20%)"
	SegmentMassMarket CustomerSegment = "Mass Market (Middle 60%)"
	SegmentHighValue  CustomerSegment = "High Value (Next 15%)"
	SegmentWhale      CustomerSegment = "Whale (Top 5%)"
)

// CustomerSegments порядок сегментов от меньшего к большему
var CustomerSegments = []CustomerSegment{SegmentLongTail, SegmentMassMarket, SegmentHighValue, SegmentWhale}

// CustomerValue агрегаты по клиенту
type CustomerValue struct {
	CustomerID       string          `json:"customer_id"`
	TopupCount       int             `json:"topup_count"`
	AvgTopupAmount   float64         `json:"avg_topup_amount"`
	TotalTopupAmount decimal.Decimal `json:"total_topup_amount"`
	TotalFee         decimal.Decimal `json:"total_fee"`
	Segment          CustomerSegment `json:"segment"`
}

// SegmentationSummary результат сегментации клиентов
type SegmentationSummary struct {
	P20       float64                 `json:"p20"`
	P80       float64                 `json:"p80"`
	P95       float64                 `json:"p95"`
	Counts    map[CustomerSegment]int `json:"counts"`
	Customers []CustomerValue         `json:"customers"`
}

// ParetoPoint точка кривой концентрации выручки
type ParetoPoint struct {
	Rank            int             `json:"rank"`
	CustomerID      string          `json:"customer_id"`
	TotalFee        decimal.Decimal `json:"total_fee"`
	CustomerPct     float64         `json:"customer_pct"`
	CumulativeShare float64         `json:"cumulative_share"`
}

// ConcentrationSummary концентрация выручки и зависимость от крупных клиентов
type ConcentrationSummary struct {
	Customers        int             `json:"customers"`
	TotalFee         decimal.Decimal `json:"total_fee"`
	Top80Rank        int             `json:"top_80_rank"`
	Top80CustomerPct float64         `json:"top_80_customer_pct"`
	Top5Share        float64         `json:"top_5_share"`
	Top1Share        float64         `json:"top_1_share"`
	Curve            []ParetoPoint   `json:"curve"`
}

// CustomerLTV наблюдаемая ценность клиента в окне данных
type CustomerLTV struct {
	CustomerID       string          `json:"customer_id"`
	ObservedLTV      decimal.Decimal `json:"observed_ltv"`
	TransactionCount int             `json:"transaction_count"`
}

// ObservedValueSummary распределение наблюдаемой ценности клиентов
type ObservedValueSummary struct {
	Customers int           `json:"customers"`
	Mean      float64       `json:"mean"`
	Median    float64       `json:"median"`
	P90       float64       `json:"p90"`
	P95       float64       `json:"p95"`
	P99       float64       `json:"p99"`
	Top       []CustomerLTV `json:"top"`
	Values    []float64     `json:"values"`
}

// RecencySegment сегмент клиента по давности последней транзакции
type RecencySegment string

const (
	RecencyActive   RecencySegment = "Active"
	RecencyAtRisk   RecencySegment = "At-risk"
	RecencyInactive RecencySegment = "Inactive"
)

// SegmentCount количество и доля клиентов в сегменте
type SegmentCount struct {
	Segment   RecencySegment `json:"segment"`
	Label     string         `json:"label"`
	Customers int            `json:"customers"`
	Share     float64        `json:"share"`
}

// EngagementSummary текущее состояние вовлеченности клиентов
type EngagementSummary struct {
	SnapshotDate      time.Time      `json:"snapshot_date"`
	SnapshotMonth     YearMonth      `json:"snapshot_month"`
	UniqueCustomers   int            `json:"unique_customers"`
	Active7dRate      float64        `json:"active_7d_rate"`
	Active30dRate     float64        `json:"active_30d_rate"`
	AvgRecencyDays    float64        `json:"avg_recency_days"`
	MedianRecencyDays float64        `json:"median_recency_days"`
	Segments          []SegmentCount `json:"segments"`
}

// ETLMetadata содержит метаданные о запуске ETL
type ETLMetadata struct {
	RunID                 string    `json:"run_id"`
	TransformedAt         time.Time `json:"transformed_at"`
	TransactionsProcessed int       `json:"transactions_processed"`
	CustomersProcessed    int       `json:"customers_processed"`
	FirstMonth            YearMonth `json:"first_month"`
	LastMonth             YearMonth `json:"last_month"`
	Warnings              []string  `json:"warnings,omitempty"`
}
