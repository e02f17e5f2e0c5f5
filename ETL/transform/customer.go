package transform

import (
	"errors"
	"math"
	"sort"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNonPositiveRevenue возвращается, когда суммарная комиссия не положительна и доли не определены
	ErrNonPositiveRevenue = errors.New("суммарная выручка не положительна, доли концентрации не определены")

	// ErrNoPositiveValue возвращается, когда ни у одного клиента нет положительной наблюдаемой ценности
	ErrNoPositiveValue = errors.New("нет клиентов с положительной наблюдаемой ценностью")
)

type customerTotals struct {
	id           string
	transactions int
	amount       decimal.Decimal
	fee          decimal.Decimal
}

// aggregateCustomers суммирует транзакции по клиентам; порядок - по идентификатору клиента
func aggregateCustomers(transactions []models.Transaction) []customerTotals {
	byID := make(map[string]*customerTotals)
	for _, tx := range transactions {
		if tx.CustomerID == "" {
			continue
		}
		c, ok := byID[tx.CustomerID]
		if !ok {
			c = &customerTotals{id: tx.CustomerID}
			byID[tx.CustomerID] = c
		}
		c.transactions++
		c.amount = c.amount.Add(tx.NetAmount)
		c.fee = c.fee.Add(tx.FeeInternal)
	}

	customers := make([]customerTotals, 0, len(byID))
	for _, c := range byID {
		customers = append(customers, *c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].id < customers[j].id })
	return customers
}

// SegmentCustomers делит клиентов на сегменты по суммарному объему пополнений.
// Пороги - 20-й, 80-й и 95-й перцентили суммарного объема.
func SegmentCustomers(transactions []models.Transaction) (*models.SegmentationSummary, error) {
	customers := aggregateCustomers(transactions)
	if len(customers) == 0 {
		return nil, ErrNoTransactions
	}

	totals := make([]float64, len(customers))
	for i, c := range customers {
		totals[i] = c.amount.InexactFloat64()
	}
	sorted := sortedCopy(totals)

	summary := &models.SegmentationSummary{
		P20:       quantile(sorted, 0.20),
		P80:       quantile(sorted, 0.80),
		P95:       quantile(sorted, 0.95),
		Counts:    make(map[models.CustomerSegment]int, len(models.CustomerSegments)),
		Customers: make([]models.CustomerValue, 0, len(customers)),
	}
	for _, segment := range models.CustomerSegments {
		summary.Counts[segment] = 0
	}

	for i, c := range customers {
		segment := segmentFor(totals[i], summary.P20, summary.P80, summary.P95)
		summary.Counts[segment]++
		summary.Customers = append(summary.Customers, models.CustomerValue{
			CustomerID:       c.id,
			TopupCount:       c.transactions,
			AvgTopupAmount:   totals[i] / float64(c.transactions),
			TotalTopupAmount: c.amount,
			TotalFee:         c.fee,
			Segment:          segment,
		})
	}

	return summary, nil
}

func segmentFor(total, p20, p80, p95 float64) models.CustomerSegment {
	switch {
	case total >= p95:
		return models.SegmentWhale
	case total >= p80:
		return models.SegmentHighValue
	case total >= p20:
		return models.SegmentMassMarket
	default:
		return models.SegmentLongTail
	}
}

// BuildConcentration считает концентрацию выручки: кривую Парето, ранг, на котором
// накопленная доля достигает 80%, и долю выручки топ-5% и топ-1% клиентов.
// Клиенты ранжируются по комиссии по убыванию, при равенстве - по идентификатору.
func BuildConcentration(transactions []models.Transaction) (*models.ConcentrationSummary, error) {
	customers := aggregateCustomers(transactions)
	if len(customers) == 0 {
		return nil, ErrNoTransactions
	}

	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].fee.GreaterThan(customers[j].fee)
	})

	total := decimal.Zero
	for _, c := range customers {
		total = total.Add(c.fee)
	}
	if !total.IsPositive() {
		return nil, ErrNonPositiveRevenue
	}

	n := len(customers)
	summary := &models.ConcentrationSummary{
		Customers: n,
		TotalFee:  total,
		Curve:     make([]models.ParetoPoint, 0, n),
	}

	// Порог 80% сравнивается точно: cum*5 >= total*4
	threshold := total.Mul(decimal.NewFromInt(4))
	five := decimal.NewFromInt(5)

	cumulative := decimal.Zero
	for i, c := range customers {
		rank := i + 1
		cumulative = cumulative.Add(c.fee)
		point := models.ParetoPoint{
			Rank:            rank,
			CustomerID:      c.id,
			TotalFee:        c.fee,
			CustomerPct:     float64(rank) / float64(n) * 100,
			CumulativeShare: cumulative.Div(total).InexactFloat64() * 100,
		}
		summary.Curve = append(summary.Curve, point)

		if summary.Top80Rank == 0 && cumulative.Mul(five).GreaterThanOrEqual(threshold) {
			summary.Top80Rank = rank
			summary.Top80CustomerPct = point.CustomerPct
		}
	}

	summary.Top5Share = topShare(customers, total, 0.05)
	summary.Top1Share = topShare(customers, total, 0.01)

	return summary, nil
}

// topShare доля выручки (в %) первых max(1, ceil(n*p)) клиентов
func topShare(ranked []customerTotals, total decimal.Decimal, p float64) float64 {
	count := int(math.Ceil(float64(len(ranked)) * p))
	if count < 1 {
		count = 1
	}
	if count > len(ranked) {
		count = len(ranked)
	}

	sum := decimal.Zero
	for _, c := range ranked[:count] {
		sum = sum.Add(c.fee)
	}
	return sum.Div(total).InexactFloat64() * 100
}

// BuildObservedValue описывает распределение наблюдаемой ценности (суммы комиссий) клиентов.
// Учитываются только клиенты с положительной ценностью; top - размер списка лучших клиентов.
func BuildObservedValue(transactions []models.Transaction, top int) (*models.ObservedValueSummary, error) {
	customers := aggregateCustomers(transactions)

	positive := customers[:0]
	for _, c := range customers {
		if c.fee.IsPositive() {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return nil, ErrNoPositiveValue
	}

	values := make([]float64, len(positive))
	for i, c := range positive {
		values[i] = c.fee.InexactFloat64()
	}
	sorted := sortedCopy(values)

	summary := &models.ObservedValueSummary{
		Customers: len(positive),
		Mean:      mean(values),
		Median:    median(sorted),
		P90:       quantile(sorted, 0.90),
		P95:       quantile(sorted, 0.95),
		P99:       quantile(sorted, 0.99),
		Values:    values,
	}

	sort.SliceStable(positive, func(i, j int) bool {
		return positive[i].fee.GreaterThan(positive[j].fee)
	})
	if top > len(positive) {
		top = len(positive)
	}
	for _, c := range positive[:max(top, 0)] {
		summary.Top = append(summary.Top, models.CustomerLTV{
			CustomerID:       c.id,
			ObservedLTV:      c.fee,
			TransactionCount: c.transactions,
		})
	}

	return summary, nil
}
