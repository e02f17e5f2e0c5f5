package report

import (
	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/transform"
)

// Имена отчетов (снимки в хранилище, JSON-экспорт, API)
const (
	NameSummary       = "summary"
	NameMonthly       = "monthly"
	NameMarketShare   = "market_share"
	NameCohorts       = "cohorts"
	NameCohortValue   = "cohort_value"
	NameSegmentation  = "segmentation"
	NameConcentration = "concentration"
	NameObservedValue = "observed_value"
	NameEngagement    = "engagement"
	NameForecasts     = "forecasts"
)

// Bundle все результаты одного запуска, из которых строятся отчеты
type Bundle struct {
	Data      *models.TransformedData
	Forecasts []linear_regression.MetricForecast
	Cleaning  *transform.CleaningReport // nil, если запуск начинался с очищенного CSV
}

// Summary сводка запуска
type Summary struct {
	models.ETLMetadata
	Cleaning     *transform.CleaningReport `json:"cleaning,omitempty"`
	TotalVolume  float64                   `json:"total_volume"`
	TotalRevenue float64                   `json:"total_revenue"`
	Cohorts      int                       `json:"cohorts"`
	Banks        int                       `json:"banks"`
}

// BuildSummary собирает сводку запуска
func BuildSummary(b Bundle) Summary {
	s := Summary{
		ETLMetadata: b.Data.Metadata,
		Cleaning:    b.Cleaning,
	}
	for _, f := range b.Data.Monthly {
		s.TotalVolume += f.Volume.InexactFloat64()
		s.TotalRevenue += f.Revenue.InexactFloat64()
	}
	if b.Data.Cohorts != nil {
		s.Cohorts = len(b.Data.Cohorts.Rows)
	}
	banks := make(map[string]struct{})
	for _, f := range b.Data.MarketShare {
		banks[f.Bank] = struct{}{}
	}
	s.Banks = len(banks)
	return s
}

// Snapshots возвращает все отчеты запуска по именам.
// Значения nil (показатель не посчитан) сохранять не нужно.
func Snapshots(b Bundle) map[string]any {
	return map[string]any{
		NameSummary:       BuildSummary(b),
		NameMonthly:       b.Data.Monthly,
		NameMarketShare:   b.Data.MarketShare,
		NameCohorts:       b.Data.Cohorts,
		NameCohortValue:   b.Data.CohortValue,
		NameSegmentation:  b.Data.Segmentation,
		NameConcentration: b.Data.Concentration,
		NameObservedValue: b.Data.ObservedValue,
		NameEngagement:    b.Data.Engagement,
		NameForecasts:     b.Forecasts,
	}
}
