package transform

import (
	"errors"
	"sort"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/shopspring/decimal"
)

// ErrNoTransactions возвращается, когда после фильтрации не осталось ни одной транзакции
var ErrNoTransactions = errors.New("нет транзакций для анализа")

// CohortOptions параметры построения когортной матрицы
type CohortOptions struct {
	// ExcludeZeroFee исключает транзакции с нулевой комиссией до назначения когорт
	ExcludeZeroFee bool
}

// cohortRecord транзакция с назначенной когортой и возрастом
type cohortRecord struct {
	customerID string
	cohort     models.YearMonth
	age        int
	fee        decimal.Decimal
	amount     decimal.Decimal
}

type cohortKey struct {
	cohort models.YearMonth
	age    int
}

// cohortAggregate разреженная ячейка: есть только там, где была хотя бы одна транзакция
type cohortAggregate struct {
	customers    map[string]struct{}
	transactions int
	fee          decimal.Decimal
	amount       decimal.Decimal
}

// BuildCohortMatrix строит плотную когортную матрицу удержания и накопленной ценности.
//
// Когорта клиента - минимальный месяц его транзакций, возраст - число месяцев от когорты.
// Для каждой когорты присутствуют все возрасты от 0 до (последний месяц данных - когорта),
// отсутствующие ячейки заполняются нулями.
func BuildCohortMatrix(transactions []models.Transaction, opts CohortOptions) (*models.CohortMatrix, error) {
	records, skipped := assignCohorts(transactions, opts)
	if len(records) == 0 {
		return nil, ErrNoTransactions
	}

	sparse, latest := aggregateCohorts(records)
	matrix := densifyCohorts(sparse, latest)
	applyCohortMetrics(matrix)
	matrix.SkippedRecords = skipped

	return matrix, nil
}

// assignCohorts назначает каждой записи когорту и возраст.
// Записи без клиента или с некорректным месяцем пропускаются и считаются.
func assignCohorts(transactions []models.Transaction, opts CohortOptions) ([]cohortRecord, int) {
	skipped := 0
	valid := make([]models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.CustomerID == "" || !tx.YearMonth.Valid() {
			skipped++
			continue
		}
		if opts.ExcludeZeroFee && tx.FeeInternal.IsZero() {
			continue
		}
		valid = append(valid, tx)
	}

	cohortOf := firstMonthByCustomer(valid)

	records := make([]cohortRecord, 0, len(valid))
	for _, tx := range valid {
		cohort := cohortOf[tx.CustomerID]
		records = append(records, cohortRecord{
			customerID: tx.CustomerID,
			cohort:     cohort,
			age:        tx.YearMonth.MonthsSince(cohort),
			fee:        tx.FeeInternal,
			amount:     tx.NetAmount,
		})
	}
	return records, skipped
}

// aggregateCohorts группирует записи по (когорта, возраст) и возвращает последний месяц данных
func aggregateCohorts(records []cohortRecord) (map[cohortKey]*cohortAggregate, models.YearMonth) {
	sparse := make(map[cohortKey]*cohortAggregate)
	var latest models.YearMonth

	for _, r := range records {
		key := cohortKey{cohort: r.cohort, age: r.age}
		agg, ok := sparse[key]
		if !ok {
			agg = &cohortAggregate{customers: make(map[string]struct{})}
			sparse[key] = agg
		}
		agg.customers[r.customerID] = struct{}{}
		agg.transactions++
		agg.fee = agg.fee.Add(r.fee)
		agg.amount = agg.amount.Add(r.amount)

		if period := r.cohort.AddMonths(r.age); period > latest {
			latest = period
		}
	}
	return sparse, latest
}

// densifyCohorts разворачивает разреженные ячейки в плотные строки по всем возрастам до горизонта
func densifyCohorts(sparse map[cohortKey]*cohortAggregate, latest models.YearMonth) *models.CohortMatrix {
	cohortSet := make(map[models.YearMonth]struct{})
	for key := range sparse {
		cohortSet[key.cohort] = struct{}{}
	}
	cohorts := make([]models.YearMonth, 0, len(cohortSet))
	for c := range cohortSet {
		cohorts = append(cohorts, c)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i] < cohorts[j] })

	matrix := &models.CohortMatrix{
		Rows:         make([]models.CohortRow, 0, len(cohorts)),
		LatestPeriod: latest,
	}

	for _, cohort := range cohorts {
		horizon := latest.MonthsSince(cohort)
		row := models.CohortRow{
			Cohort: cohort,
			Cells:  make([]models.CohortCell, 0, horizon+1),
		}
		for age := 0; age <= horizon; age++ {
			cell := models.CohortCell{
				Cohort: cohort,
				Age:    age,
				Fee:    decimal.Zero,
				Amount: decimal.Zero,
			}
			if agg, ok := sparse[cohortKey{cohort: cohort, age: age}]; ok {
				cell.Users = len(agg.customers)
				cell.Transactions = agg.transactions
				cell.Fee = agg.fee
				cell.Amount = agg.amount
			}
			row.Cells = append(row.Cells, cell)
		}
		matrix.Rows = append(matrix.Rows, row)
	}
	return matrix
}

// applyCohortMetrics считает размер когорты, удержание и накопленную ценность на клиента.
// Когорты нулевого размера исключаются.
func applyCohortMetrics(matrix *models.CohortMatrix) {
	rows := matrix.Rows[:0]
	for _, row := range matrix.Rows {
		size := row.Cells[0].Users
		if size == 0 {
			continue
		}
		row.Size = size

		cumulative := decimal.Zero
		sizeDec := decimal.NewFromInt(int64(size))
		for i := range row.Cells {
			cell := &row.Cells[i]
			cell.RetentionPct = float64(cell.Users) / float64(size) * 100
			cumulative = cumulative.Add(cell.Fee)
			cell.CumulativeFee = cumulative
			cell.CumulativeValuePerCustomer = cumulative.Div(sizeDec).InexactFloat64()
		}
		rows = append(rows, row)
	}
	matrix.Rows = rows
}

// CohortValueSnapshots возвращает последнюю наблюдаемую ценность на клиента для каждой когорты,
// от самых ценных когорт к менее ценным
func CohortValueSnapshots(matrix *models.CohortMatrix) []models.CohortValueSnapshot {
	if matrix == nil {
		return nil
	}

	snapshots := make([]models.CohortValueSnapshot, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		last := row.Cells[len(row.Cells)-1]
		snapshots = append(snapshots, models.CohortValueSnapshot{
			Cohort:           row.Cohort,
			CohortSize:       row.Size,
			MonthsObserved:   len(row.Cells),
			ValuePerCustomer: last.CumulativeValuePerCustomer,
		})
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].ValuePerCustomer != snapshots[j].ValuePerCustomer {
			return snapshots[i].ValuePerCustomer > snapshots[j].ValuePerCustomer
		}
		return snapshots[i].Cohort < snapshots[j].Cohort
	})
	return snapshots
}
