package transform

import (
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/shopspring/decimal"
)

type monthAccumulator struct {
	volume       decimal.Decimal
	revenue      decimal.Decimal
	externalFee  decimal.Decimal
	transactions int
	customers    map[string]struct{}
}

// BuildMonthlyFacts считает месячные показатели платформы для каждого календарного месяца
// от первого до последнего месяца данных. Месяцы без транзакций заполняются нулями.
func BuildMonthlyFacts(transactions []models.Transaction) ([]models.MonthlyFact, error) {
	byMonth := make(map[models.YearMonth]*monthAccumulator)
	var first, last models.YearMonth

	for _, tx := range transactions {
		if tx.CustomerID == "" || !tx.YearMonth.Valid() {
			continue
		}
		acc, ok := byMonth[tx.YearMonth]
		if !ok {
			acc = &monthAccumulator{customers: make(map[string]struct{})}
			byMonth[tx.YearMonth] = acc
		}
		acc.volume = acc.volume.Add(tx.NetAmount)
		acc.revenue = acc.revenue.Add(tx.FeeInternal)
		acc.externalFee = acc.externalFee.Add(tx.FeeExternal)
		acc.transactions++
		acc.customers[tx.CustomerID] = struct{}{}

		if !first.Valid() || tx.YearMonth < first {
			first = tx.YearMonth
		}
		if tx.YearMonth > last {
			last = tx.YearMonth
		}
	}

	if len(byMonth) == 0 {
		return nil, ErrNoTransactions
	}

	firstMonth := firstMonthByCustomer(transactions)

	months := models.MonthRange(first, last)
	facts := make([]models.MonthlyFact, 0, len(months))
	for i, month := range months {
		fact := models.MonthlyFact{
			Month:       month,
			Volume:      decimal.Zero,
			Revenue:     decimal.Zero,
			ExternalFee: decimal.Zero,
		}

		if acc, ok := byMonth[month]; ok {
			fact.Volume = acc.volume
			fact.Revenue = acc.revenue
			fact.ExternalFee = acc.externalFee
			fact.Transactions = acc.transactions
			fact.ActiveCustomers = len(acc.customers)
			for customerID := range acc.customers {
				if firstMonth[customerID] == month {
					fact.NewCustomers++
				}
			}
			fact.ReturningCustomers = fact.ActiveCustomers - fact.NewCustomers
		}

		// Рост выручки к прошлому месяцу: для первого месяца 0, при нулевой базе не определен
		if i == 0 {
			zero := 0.0
			fact.MoMGrowthPct = &zero
		} else if prev := facts[i-1].Revenue; !prev.IsZero() {
			growth := fact.Revenue.Sub(prev).Div(prev).InexactFloat64() * 100
			fact.MoMGrowthPct = &growth
		}

		facts = append(facts, fact)
	}

	return facts, nil
}
