package linear_regression

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/database"
)

// SeriesFromMonthlyFacts строит ряд показателя по плотным месячным фактам.
// X - номер месяца от начала ряда.
func SeriesFromMonthlyFacts(facts []models.MonthlyFact, metric Metric) ([]DataPoint, error) {
	points := make([]DataPoint, 0, len(facts))
	for i, fact := range facts {
		var y float64
		switch metric {
		case MetricRevenue:
			y = fact.Revenue.InexactFloat64()
		case MetricVolume:
			y = fact.Volume.InexactFloat64()
		case MetricActiveCustomers:
			y = float64(fact.ActiveCustomers)
		default:
			return nil, fmt.Errorf("неизвестный показатель: %s", metric)
		}
		points = append(points, DataPoint{X: float64(i), Y: y, Month: fact.Month})
	}
	return points, nil
}

// DataService сервис для получения месячных рядов из хранилища
type DataService struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewDataService создает новый сервис для работы с данными
func NewDataService(db *sql.DB, dialect database.Dialect) *DataService {
	return &DataService{
		db:      db,
		dialect: dialect,
	}
}

// GetMonthlyFacts читает месячные факты, загруженные последним запуском ETL
func (s *DataService) GetMonthlyFacts(ctx context.Context) ([]models.MonthlyFact, error) {
	query := `
	SELECT period_month, volume, revenue, transactions, active_customers
	FROM monthly_facts
	ORDER BY period_month`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении запроса к хранилищу: %w", err)
	}
	defer rows.Close()

	var facts []models.MonthlyFact
	for rows.Next() {
		var (
			month string
			fact  models.MonthlyFact
		)
		if err := rows.Scan(&month, &fact.Volume, &fact.Revenue, &fact.Transactions, &fact.ActiveCustomers); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании месячного факта: %w", err)
		}
		if fact.Month, err = models.ParseYearMonth(month); err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", err)
	}
	return facts, nil
}
