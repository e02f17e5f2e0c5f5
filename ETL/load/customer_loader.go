package load

import (
	"context"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

var customerTable = table{
	name: "customer_value_facts",
	keys: []string{"customer_id"},
	columns: []string{
		"topup_count", "avg_topup_amount", "total_topup_amount", "total_fee", "segment",
	},
}

// CustomerLoader отвечает за загрузку агрегатов по клиентам
type CustomerLoader struct {
	w *WarehouseLoader
}

// Load загружает агрегаты по клиентам вместе с их сегментом
func (l *CustomerLoader) Load(ctx context.Context, runID string, customers []models.CustomerValue) error {
	if len(customers) == 0 {
		l.w.logger.Debug("Нет данных клиентов для загрузки")
		return nil
	}

	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []any{
			c.CustomerID,
			c.TopupCount,
			c.AvgTopupAmount,
			c.TotalTopupAmount,
			c.TotalFee,
			string(c.Segment),
		})
	}

	_, err := l.w.upsert(ctx, customerTable, runID, rows)
	return err
}
