package load

import (
	"context"
	"database/sql"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

var monthlyTable = table{
	name: "monthly_facts",
	keys: []string{"period_month"},
	columns: []string{
		"volume", "revenue", "external_fee", "transactions",
		"active_customers", "new_customers", "returning_customers", "mom_growth_pct",
	},
}

var marketShareTable = table{
	name:    "market_share_facts",
	keys:    []string{"period_month", "bank"},
	columns: []string{"volume", "volume_share"},
}

// FactsLoader отвечает за загрузку месячных фактов и долей банков
type FactsLoader struct {
	w *WarehouseLoader
}

// LoadMonthly загружает месячные показатели
func (l *FactsLoader) LoadMonthly(ctx context.Context, runID string, facts []models.MonthlyFact) error {
	if len(facts) == 0 {
		l.w.logger.Debug("Нет месячных показателей для загрузки")
		return nil
	}

	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		// Рост к прошлому месяцу не определен, если выручка прошлого месяца равна 0
		growth := sql.NullFloat64{}
		if f.MoMGrowthPct != nil {
			growth = sql.NullFloat64{Float64: *f.MoMGrowthPct, Valid: true}
		}

		rows = append(rows, []any{
			f.Month.String(),
			f.Volume,
			f.Revenue,
			f.ExternalFee,
			f.Transactions,
			f.ActiveCustomers,
			f.NewCustomers,
			f.ReturningCustomers,
			growth,
		})
	}

	_, err := l.w.upsert(ctx, monthlyTable, runID, rows)
	return err
}

// LoadMarketShare загружает доли банков по месяцам
func (l *FactsLoader) LoadMarketShare(ctx context.Context, runID string, facts []models.MarketShareFact) error {
	if len(facts) == 0 {
		l.w.logger.Debug("Нет долей банков для загрузки")
		return nil
	}

	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{f.Month.String(), f.Bank, f.Volume, f.Share})
	}

	_, err := l.w.upsert(ctx, marketShareTable, runID, rows)
	return err
}
