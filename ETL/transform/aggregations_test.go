package transform

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

func TestBuildMonthlyFactsDense(t *testing.T) {
	jan, mar, apr := ym(2024, time.January), ym(2024, time.March), ym(2024, time.April)
	transactions := []models.Transaction{
		tx("A", jan, 2, 100, 10, "BCA"),
		tx("B", jan, 5, 300, 30, "BRI"),
		tx("A", mar, 2, 50, 5, "BCA"),
		tx("C", mar, 7, 70, 15, "BCA"),
		tx("C", apr, 1, 10, 15, "BCA"),
	}

	facts, err := BuildMonthlyFacts(transactions)
	if err != nil {
		t.Fatalf("BuildMonthlyFacts: %v", err)
	}
	if len(facts) != 4 {
		t.Fatalf("months = %d, want 4 (gap month included)", len(facts))
	}

	first := facts[0]
	if first.Revenue.String() != "40" || first.Volume.String() != "400" || first.ActiveCustomers != 2 || first.NewCustomers != 2 {
		t.Fatalf("january = %+v", first)
	}
	if first.MoMGrowthPct == nil || *first.MoMGrowthPct != 0 {
		t.Fatalf("first month growth = %v, want 0", first.MoMGrowthPct)
	}

	gap := facts[1]
	if gap.Month != ym(2024, time.February) || !gap.Revenue.IsZero() || gap.Transactions != 0 {
		t.Fatalf("gap month = %+v", gap)
	}
	approx(t, "february growth", *gap.MoMGrowthPct, -100)

	march := facts[2]
	if march.MoMGrowthPct != nil {
		t.Fatalf("growth after a zero-revenue month must be undefined, got %v", *march.MoMGrowthPct)
	}
	if march.NewCustomers != 1 || march.ReturningCustomers != 1 {
		t.Fatalf("march new/returning = %d/%d", march.NewCustomers, march.ReturningCustomers)
	}

	approx(t, "april growth", *facts[3].MoMGrowthPct, -25)
}

func TestBuildMonthlyFactsEmpty(t *testing.T) {
	if _, err := BuildMonthlyFacts(nil); !errors.Is(err, ErrNoTransactions) {
		t.Fatalf("expected ErrNoTransactions, got %v", err)
	}
}

func TestBuildMarketShare(t *testing.T) {
	jan, feb := ym(2024, time.January), ym(2024, time.February)
	transactions := []models.Transaction{
		tx("A", jan, 1, 300, 1, " BCA "),
		tx("B", jan, 1, 100, 1, "BRI"),
		tx("C", feb, 1, 50, 1, "BCA"),
		tx("D", feb, 1, 50, 1, ""),
	}

	facts, err := BuildMarketShare(transactions)
	if err != nil {
		t.Fatalf("BuildMarketShare: %v", err)
	}
	if len(facts) != 6 {
		t.Fatalf("facts = %d, want 2 months × 3 banks", len(facts))
	}

	sums := map[models.YearMonth]float64{}
	for _, f := range facts {
		sums[f.Month] += f.Share
	}
	for month, sum := range sums {
		approx(t, "share sum "+month.String(), sum, 1)
	}

	if facts[0].Bank != "BCA" || facts[0].Month != jan {
		t.Fatalf("first fact = %+v", facts[0])
	}
	approx(t, "BCA january share", facts[0].Share, 0.75)
	if facts[4].Bank != "BRI" || facts[4].Month != feb || facts[4].Share != 0 {
		t.Fatalf("BRI february = %+v", facts[4])
	}
	if facts[5].Bank != UnknownBank {
		t.Fatalf("bank for empty category = %s", facts[5].Bank)
	}
}

func TestSegmentCustomers(t *testing.T) {
	jan := ym(2024, time.January)
	var transactions []models.Transaction
	for i := 1; i <= 20; i++ {
		id := string(rune('A' + i - 1))
		transactions = append(transactions, tx(id, jan, 1, float64(i*100), 1, "X"))
	}
	// Второе пополнение клиента A не меняет его сегмент
	transactions = append(transactions, tx("A", jan, 2, 50, 1, "X"))

	summary, err := SegmentCustomers(transactions)
	if err != nil {
		t.Fatalf("SegmentCustomers: %v", err)
	}
	if len(summary.Customers) != 20 {
		t.Fatalf("customers = %d", len(summary.Customers))
	}

	total := 0
	for _, segment := range models.CustomerSegments {
		total += summary.Counts[segment]
	}
	if total != 20 {
		t.Fatalf("segment counts sum to %d", total)
	}
	if summary.Counts[models.SegmentWhale] != 1 || summary.Counts[models.SegmentLongTail] != 4 {
		t.Fatalf("counts = %v", summary.Counts)
	}

	a := summary.Customers[0]
	if a.CustomerID != "A" || a.TopupCount != 2 || a.TotalTopupAmount.String() != "150" {
		t.Fatalf("customer A = %+v", a)
	}
	approx(t, "avg topup", a.AvgTopupAmount, 75)
	if a.Segment != models.SegmentLongTail {
		t.Fatalf("customer A segment = %s", a.Segment)
	}
}

func TestBuildConcentration(t *testing.T) {
	jan := ym(2024, time.January)
	transactions := []models.Transaction{
		tx("A", jan, 1, 1, 50, "X"),
		tx("B", jan, 1, 1, 30, "X"),
		tx("C", jan, 1, 1, 10, "X"),
		tx("D", jan, 1, 1, 10, "X"),
	}

	summary, err := BuildConcentration(transactions)
	if err != nil {
		t.Fatalf("BuildConcentration: %v", err)
	}
	if summary.Top80Rank != 2 {
		t.Fatalf("top 80 rank = %d, want 2", summary.Top80Rank)
	}
	approx(t, "top 80 customer pct", summary.Top80CustomerPct, 50)
	approx(t, "top 5 share", summary.Top5Share, 50)
	approx(t, "top 1 share", summary.Top1Share, 50)

	last := summary.Curve[len(summary.Curve)-1]
	approx(t, "curve end", last.CumulativeShare, 100)
	if summary.Curve[2].CustomerID != "C" || summary.Curve[3].CustomerID != "D" {
		t.Fatalf("ties must be ordered by customer id: %+v", summary.Curve)
	}
}

func TestBuildConcentrationNonPositive(t *testing.T) {
	jan := ym(2024, time.January)
	transactions := []models.Transaction{
		tx("A", jan, 1, 1, 0, "X"),
		tx("B", jan, 1, 1, 0, "X"),
	}
	if _, err := BuildConcentration(transactions); !errors.Is(err, ErrNonPositiveRevenue) {
		t.Fatalf("expected ErrNonPositiveRevenue, got %v", err)
	}
}

func TestBuildObservedValue(t *testing.T) {
	jan := ym(2024, time.January)
	transactions := []models.Transaction{
		tx("A", jan, 1, 1, 10, "X"),
		tx("A", jan, 2, 1, 30, "X"),
		tx("B", jan, 1, 1, 20, "X"),
		tx("C", jan, 1, 1, 60, "X"),
		tx("D", jan, 1, 1, 0, "X"),
	}

	summary, err := BuildObservedValue(transactions, 2)
	if err != nil {
		t.Fatalf("BuildObservedValue: %v", err)
	}
	if summary.Customers != 3 {
		t.Fatalf("customers = %d, zero-value customer must be excluded", summary.Customers)
	}
	approx(t, "mean", summary.Mean, 40)
	approx(t, "median", summary.Median, 40)
	approx(t, "p90", summary.P90, 56)
	if len(summary.Top) != 2 || summary.Top[0].CustomerID != "C" || summary.Top[1].TransactionCount != 2 {
		t.Fatalf("top = %+v", summary.Top)
	}

	if _, err := BuildObservedValue([]models.Transaction{tx("D", jan, 1, 1, 0, "X")}, 10); !errors.Is(err, ErrNoPositiveValue) {
		t.Fatalf("expected ErrNoPositiveValue, got %v", err)
	}
}

func TestBuildEngagement(t *testing.T) {
	may := ym(2024, time.May)
	apr := ym(2024, time.April)
	transactions := []models.Transaction{
		tx("A", may, 31, 1, 1, "X"), // снимок, 0 дней
		tx("B", may, 24, 1, 1, "X"), // 7 дней
		tx("C", may, 23, 1, 1, "X"), // 8 дней
		tx("D", may, 1, 1, 1, "X"),  // 30 дней
		tx("E", apr, 30, 1, 1, "X"), // 31 день
		tx("E", apr, 1, 1, 1, "X"),
	}

	summary, err := BuildEngagement(transactions, DefaultRecencyThresholds)
	if err != nil {
		t.Fatalf("BuildEngagement: %v", err)
	}
	if !summary.SnapshotDate.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)) || summary.SnapshotMonth != may {
		t.Fatalf("snapshot = %v / %s", summary.SnapshotDate, summary.SnapshotMonth)
	}
	if len(summary.Segments) != 3 {
		t.Fatalf("segments = %d", len(summary.Segments))
	}

	counts := []int{summary.Segments[0].Customers, summary.Segments[1].Customers, summary.Segments[2].Customers}
	if counts[0] != 2 || counts[1] != 2 || counts[2] != 1 {
		t.Fatalf("segment counts = %v", counts)
	}
	if summary.Segments[1].Label != "At-risk (8–30 days)" {
		t.Fatalf("label = %s", summary.Segments[1].Label)
	}
	approx(t, "active 7d", summary.Active7dRate, 0.4)
	approx(t, "active 30d", summary.Active30dRate, 0.8)
	approx(t, "avg recency", summary.AvgRecencyDays, 15.2)
	approx(t, "median recency", summary.MedianRecencyDays, 8)
}

func TestEngagementRatesIgnoreCustomThresholds(t *testing.T) {
	may := ym(2024, time.May)
	transactions := []models.Transaction{
		tx("A", may, 31, 1, 1, "X"), // 0 дней
		tx("B", may, 24, 1, 1, "X"), // 7 дней
		tx("C", may, 23, 1, 1, "X"), // 8 дней
		tx("D", may, 1, 1, 1, "X"),  // 30 дней
		tx("E", ym(2024, time.April), 30, 1, 1, "X"),
	}

	summary, err := BuildEngagement(transactions, RecencyThresholds{Active: 3, AtRisk: 60})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Segments[0].Customers != 1 || summary.Segments[1].Customers != 4 {
		t.Fatalf("segments = %+v", summary.Segments)
	}
	approx(t, "active 7d", summary.Active7dRate, 0.4)
	approx(t, "active 30d", summary.Active30dRate, 0.8)
}

func TestEngagementAlwaysHasThreeSegments(t *testing.T) {
	summary, err := BuildEngagement([]models.Transaction{tx("A", ym(2024, time.May), 3, 1, 1, "X")}, DefaultRecencyThresholds)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Segments) != 3 || summary.Segments[2].Customers != 0 || summary.Segments[2].Share != 0 {
		t.Fatalf("segments = %+v", summary.Segments)
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	approx(t, "q0.5", quantile(values, 0.5), 2.5)
	approx(t, "q0.2", quantile(values, 0.2), 1.6)
	approx(t, "q1", quantile(values, 1), 4)
	if !math.IsNaN(quantile(nil, 0.5)) {
		t.Fatal("quantile of empty sample must be NaN")
	}
}
