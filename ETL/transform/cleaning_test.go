package transform

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/extractors"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.NullDecimal {
	return extractors.ParseDecimal(s)
}

func TestClean(t *testing.T) {
	paid := func(y int, m time.Month, d, h int) time.Time { return time.Date(y, m, d, h, 0, 0, 0, time.UTC) }
	raw := []models.RawTransaction{
		{ID: "1", CustomerID: "A", NetAmount: dec("100"), FeeInternal: dec("10"), FeeExternal: dec("1"), Category: "BCA", PayingAt: paid(2024, 2, 10, 13)},
		{ID: "2", CustomerID: "A", NetAmount: dec("50"), FeeInternal: dec("5"), Category: "BCA", PayingAt: paid(2024, 1, 31, 23)},
		{ID: "3", CustomerID: "", NetAmount: dec("50"), FeeInternal: dec("5"), PayingAt: paid(2024, 1, 1, 0)},
		{ID: "4", CustomerID: "B", NetAmount: dec("50"), FeeInternal: dec("5")},
		{ID: "5", CustomerID: "B", NetAmount: dec("x"), FeeInternal: dec("5"), PayingAt: paid(2024, 1, 1, 0)},
		{ID: "6", CustomerID: "C", NetAmount: dec("10"), FeeInternal: dec(""), PayingAt: paid(2024, 1, 1, 0)},
	}

	transactions, report := Clean(raw)
	if len(transactions) != 2 {
		t.Fatalf("kept = %d, want 2", len(transactions))
	}
	if report.RowsRead != 6 || report.RowsKept != 2 || report.MissingCustomer != 1 || report.InvalidPayingAt != 1 || report.InvalidAmount != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.Dropped() != 4 {
		t.Fatalf("dropped = %d", report.Dropped())
	}

	first := transactions[0]
	if first.YearMonth != ym(2024, time.February) || first.CohortMonth != ym(2024, time.January) {
		t.Fatalf("months = %s / %s", first.YearMonth, first.CohortMonth)
	}
	if !first.TransactionDate.Equal(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("transaction date = %v", first.TransactionDate)
	}
	if !transactions[1].FeeExternal.IsZero() {
		t.Fatalf("missing external fee = %s, want 0", transactions[1].FeeExternal)
	}
}

func TestCleanDropsNegativeAmounts(t *testing.T) {
	paid := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	raw := []models.RawTransaction{
		{ID: "1", CustomerID: "A", NetAmount: dec("100"), FeeInternal: dec("10"), PayingAt: paid},
		{ID: "2", CustomerID: "A", NetAmount: dec("80"), FeeInternal: dec("-8"), PayingAt: paid},
		{ID: "3", CustomerID: "A", NetAmount: dec("-100"), FeeInternal: dec("0"), PayingAt: paid},
		{ID: "4", CustomerID: "B", NetAmount: dec("10"), FeeInternal: dec("1"), FeeExternal: dec("-0.5"), PayingAt: paid},
		{ID: "5", CustomerID: "B", NetAmount: dec("0"), FeeInternal: dec("0"), PayingAt: paid},
	}

	transactions, report := Clean(raw)
	if len(transactions) != 2 || transactions[0].ID != "1" || transactions[1].ID != "5" {
		t.Fatalf("kept = %+v", transactions)
	}
	if report.NegativeAmount != 3 || report.InvalidAmount != 0 || report.Dropped() != 3 {
		t.Fatalf("report = %+v", report)
	}
}

func TestWriteCleanCSVRoundTrip(t *testing.T) {
	raw := []models.RawTransaction{
		{ID: "1", CustomerID: "A", NetAmount: dec("100.5"), FeeInternal: dec("10"), FeeExternal: dec("1"), Category: "BCA",
			PayingAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), CreatedAt: time.Date(2024, 3, 1, 7, 59, 0, 0, time.UTC)},
		{ID: "2", CustomerID: "B", NetAmount: dec("20"), FeeInternal: dec("2"), Category: "BRI",
			PayingAt: time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)},
	}
	transactions, _ := Clean(raw)

	var buf bytes.Buffer
	if err := WriteCleanCSV(&buf, transactions); err != nil {
		t.Fatalf("WriteCleanCSV: %v", err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if header != strings.Join(extractors.CleanColumns, ",") {
		t.Fatalf("header = %s", header)
	}

	extractor := extractors.NewLedgerExtractor(utils.NewDiscardLogger())
	data, err := extractor.ReadClean(context.Background(), &buf, "clean.csv")
	if err != nil {
		t.Fatalf("ReadClean: %v", err)
	}
	if len(data.Transactions) != 2 || data.RowsSkipped != 0 {
		t.Fatalf("read back %d transactions, skipped %d", len(data.Transactions), data.RowsSkipped)
	}

	for i, got := range data.Transactions {
		want := transactions[i]
		if got.ID != want.ID || got.CustomerID != want.CustomerID || !got.NetAmount.Equal(want.NetAmount) ||
			got.YearMonth != want.YearMonth || got.CohortMonth != want.CohortMonth ||
			!got.TransactionDate.Equal(want.TransactionDate) || !got.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("row %d:\n got %+v\nwant %+v", i, got, want)
		}
	}
}
