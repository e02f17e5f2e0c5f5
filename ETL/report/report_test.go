package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/transform"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/shopspring/decimal"
)

func bundle(t *testing.T) Bundle {
	t.Helper()

	start := models.NewYearMonth(2024, time.January)
	var txs []models.Transaction
	add := func(customer string, month models.YearMonth, day int, amount, fee int64, bank string) {
		txs = append(txs, models.Transaction{
			ID:              customer + month.String(),
			CustomerID:      customer,
			NetAmount:       decimal.NewFromInt(amount),
			FeeInternal:     decimal.NewFromInt(fee),
			FeeExternal:     decimal.NewFromInt(1),
			Category:        bank,
			TransactionDate: time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC),
			YearMonth:       month,
		})
	}
	add("A", start, 3, 1000, 10, "topup_bca")
	add("B", start, 5, 2000, 20, "topup_mandiri")
	add("A", start.AddMonths(1), 7, 1500, 15, "topup_bca")
	add("C", start.AddMonths(2), 2, 3000, 30, "topup_mandiri")
	add("A", start.AddMonths(3), 9, 900, 9, "topup_bca")
	add("D", start.AddMonths(3), 28, 50000, 500, "")

	data, err := transform.NewTransformer(utils.NewDiscardLogger(), transform.Options{}).
		Transform(context.Background(), "run-1", txs)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	forecasts, err := linear_regression.NewRegressionProcessor(nil, utils.NewDiscardLogger(), linear_regression.DefaultConfig()).
		Process(context.Background(), "run-1", data.Monthly)
	if err != nil {
		t.Fatalf("forecasts: %v", err)
	}

	return Bundle{
		Data:      data,
		Forecasts: forecasts,
		Cleaning:  &transform.CleaningReport{RowsRead: 8, RowsKept: 6, MissingCustomer: 2},
	}
}

func TestConsoleReporterRender(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporter(&buf).Render(bundle(t))
	out := buf.String()

	for _, want := range []string{
		"Сводка запуска run-1",
		"2024-01 … 2024-04",
		"Удержание по когортам",
		"M3",
		"100.0",
		"Unknown",
		string(models.SegmentWhale),
		"Active (≤7 days)",
		"Прогноз линейного тренда",
		"2024-05",
		"58,400", // суммарный объем
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestChartRendererRenderAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	b := bundle(t)

	files, err := NewChartRenderer(dir, utils.NewDiscardLogger()).RenderAll(b)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}

	want := 12 + len(b.Forecasts)
	if len(files) != want {
		t.Fatalf("charts = %d, want %d: %v", len(files), want, files)
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
		if info.Size() == 0 || filepath.Ext(f) != ".png" {
			t.Fatalf("bad chart file %s (%d bytes)", f, info.Size())
		}
	}
}

func TestChartRendererSkipsMissingAnalytics(t *testing.T) {
	b := bundle(t)
	b.Data.Segmentation = nil
	b.Data.Engagement = nil
	b.Forecasts = nil

	files, err := NewChartRenderer(t.TempDir(), utils.NewDiscardLogger()).RenderAll(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 10 {
		t.Fatalf("charts = %d, want 10", len(files))
	}
}

func TestExportAll(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)

	files, err := ExportAll(dir, bundle(t), at)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(files) != len(Snapshots(bundle(t))) {
		t.Fatalf("files = %d", len(files))
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary_20240501_150405.json"))
	if err != nil {
		t.Fatal(err)
	}
	var summary struct {
		RunID      string `json:"run_id"`
		FirstMonth string `json:"first_month"`
		Cohorts    int    `json:"cohorts"`
		Banks      int    `json:"banks"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.RunID != "run-1" || summary.FirstMonth != "2024-01" || summary.Cohorts != 3 || summary.Banks != 3 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestMonthTicksLimitLabels(t *testing.T) {
	months := models.MonthRange(models.NewYearMonth(2022, time.January), models.NewYearMonth(2023, time.December))
	ticks := monthTicks(months).Ticks(0, 23)
	if len(ticks) != 24 {
		t.Fatalf("ticks = %d", len(ticks))
	}
	labelled := 0
	for _, tick := range ticks {
		if tick.Label != "" {
			labelled++
		}
	}
	if labelled != 12 || ticks[0].Label != "2022-01" || ticks[2].Label != "2022-03" {
		t.Fatalf("labelled = %d, first = %q", labelled, ticks[0].Label)
	}
}
