package transform

import (
	"fmt"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

// RecencyThresholds границы сегментов давности в днях:
// Active - не более Active дней, At-risk - до AtRisk дней включительно, далее Inactive
type RecencyThresholds struct {
	Active int
	AtRisk int
}

// DefaultRecencyThresholds пороги 7 и 30 дней
var DefaultRecencyThresholds = RecencyThresholds{Active: 7, AtRisk: 30}

// Labels возвращает подписи сегментов для отчетов
func (t RecencyThresholds) Labels() map[models.RecencySegment]string {
	return map[models.RecencySegment]string{
		models.RecencyActive:   fmt.Sprintf("Active (≤%d days)", t.Active),
		models.RecencyAtRisk:   fmt.Sprintf("At-risk (%d–%d days)", t.Active+1, t.AtRisk),
		models.RecencyInactive: fmt.Sprintf("Inactive (>%d days)", t.AtRisk),
	}
}

func (t RecencyThresholds) segment(days int) models.RecencySegment {
	switch {
	case days <= t.Active:
		return models.RecencyActive
	case days <= t.AtRisk:
		return models.RecencyAtRisk
	default:
		return models.RecencyInactive
	}
}

// BuildEngagement оценивает текущую вовлеченность клиентов относительно даты последней транзакции в данных
func BuildEngagement(transactions []models.Transaction, thresholds RecencyThresholds) (*models.EngagementSummary, error) {
	lastSeen := make(map[string]int64) // клиент -> день последней транзакции (дни от эпохи)
	var snapshotDay int64
	found := false

	for _, tx := range transactions {
		if tx.CustomerID == "" || tx.TransactionDate.IsZero() {
			continue
		}
		day := dayNumber(tx)
		if last, ok := lastSeen[tx.CustomerID]; !ok || day > last {
			lastSeen[tx.CustomerID] = day
		}
		if !found || day > snapshotDay {
			snapshotDay = day
			found = true
		}
	}

	if len(lastSeen) == 0 {
		return nil, ErrNoTransactions
	}

	counts := make(map[models.RecencySegment]int, 3)
	recency := make([]float64, 0, len(lastSeen))
	var within7, within30 int
	for _, last := range lastSeen {
		days := int(snapshotDay - last)
		counts[thresholds.segment(days)]++
		recency = append(recency, float64(days))
		// Доли активных за 7 и 30 дней не зависят от настроенных порогов сегментов
		if days <= 7 {
			within7++
		}
		if days <= 30 {
			within30++
		}
	}

	total := len(lastSeen)
	labels := thresholds.Labels()
	snapshotDate := dateFromDayNumber(snapshotDay)

	summary := &models.EngagementSummary{
		SnapshotDate:      snapshotDate,
		SnapshotMonth:     models.YearMonthOf(snapshotDate),
		UniqueCustomers:   total,
		AvgRecencyDays:    mean(recency),
		MedianRecencyDays: median(sortedCopy(recency)),
	}

	for _, segment := range []models.RecencySegment{models.RecencyActive, models.RecencyAtRisk, models.RecencyInactive} {
		summary.Segments = append(summary.Segments, models.SegmentCount{
			Segment:   segment,
			Label:     labels[segment],
			Customers: counts[segment],
			Share:     float64(counts[segment]) / float64(total),
		})
	}
	summary.Active7dRate = float64(within7) / float64(total)
	summary.Active30dRate = float64(within30) / float64(total)

	return summary, nil
}
