package transform

import (
	"sort"
	"strings"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/shopspring/decimal"
)

// UnknownBank подставляется для транзакций без категории
const UnknownBank = "Unknown"

// BankOf возвращает банк транзакции (категория без пробелов по краям)
func BankOf(tx models.Transaction) string {
	bank := strings.TrimSpace(tx.Category)
	if bank == "" {
		return UnknownBank
	}
	return bank
}

// BuildMarketShare считает долю каждого банка в месячном объеме пополнений.
// Результат плотный: каждый месяц диапазона × каждый банк из данных, месяц за месяцем, банки по алфавиту.
func BuildMarketShare(transactions []models.Transaction) ([]models.MarketShareFact, error) {
	type key struct {
		month models.YearMonth
		bank  string
	}

	volumes := make(map[key]decimal.Decimal)
	totals := make(map[models.YearMonth]decimal.Decimal)
	bankSet := make(map[string]struct{})
	var first, last models.YearMonth

	for _, tx := range transactions {
		if !tx.YearMonth.Valid() {
			continue
		}
		bank := BankOf(tx)
		k := key{month: tx.YearMonth, bank: bank}
		volumes[k] = volumes[k].Add(tx.NetAmount)
		totals[tx.YearMonth] = totals[tx.YearMonth].Add(tx.NetAmount)
		bankSet[bank] = struct{}{}

		if !first.Valid() || tx.YearMonth < first {
			first = tx.YearMonth
		}
		if tx.YearMonth > last {
			last = tx.YearMonth
		}
	}

	if len(bankSet) == 0 {
		return nil, ErrNoTransactions
	}

	banks := make([]string, 0, len(bankSet))
	for bank := range bankSet {
		banks = append(banks, bank)
	}
	sort.Strings(banks)

	months := models.MonthRange(first, last)
	facts := make([]models.MarketShareFact, 0, len(months)*len(banks))
	for _, month := range months {
		total := totals[month]
		for _, bank := range banks {
			volume := volumes[key{month: month, bank: bank}]
			share := 0.0
			if !total.IsZero() {
				share = volume.Div(total).InexactFloat64()
			}
			facts = append(facts, models.MarketShareFact{
				Month:  month,
				Bank:   bank,
				Volume: volume,
				Share:  share,
			})
		}
	}

	return facts, nil
}
