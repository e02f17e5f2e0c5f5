package load

import (
	"context"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

var cohortTable = table{
	name: "cohort_cells",
	keys: []string{"cohort_month", "cohort_age"},
	columns: []string{
		"users", "transactions", "fee", "amount",
		"retention_pct", "cumulative_value_per_customer",
	},
}

// CohortLoader отвечает за загрузку ячеек когортной матрицы
type CohortLoader struct {
	w *WarehouseLoader
}

// Load загружает все ячейки матрицы, включая нулевые
func (l *CohortLoader) Load(ctx context.Context, runID string, matrix *models.CohortMatrix) error {
	if matrix == nil || len(matrix.Rows) == 0 {
		l.w.logger.Debug("Нет когортных данных для загрузки")
		return nil
	}

	cells := matrix.Cells()
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, []any{
			c.Cohort.String(),
			c.Age,
			c.Users,
			c.Transactions,
			c.Fee,
			c.Amount,
			c.RetentionPct,
			c.CumulativeValuePerCustomer,
		})
	}

	_, err := l.w.upsert(ctx, cohortTable, runID, rows)
	return err
}
