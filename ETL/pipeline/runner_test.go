package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/config"
	"github.com/LilVoxy/ledger_analytics/ETL/extractors"
	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/report"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/LilVoxy/ledger_analytics/database"
)

const ledgerCSV = `id,customer_id,net_amount,fee_internal_amount,fee_external_amount,category,paying_at,created_at
1,100,50000,1500,500,BCA,2024-01-05 10:00:00,2024-01-05 09:59:00
2,101,75000,2000,,Mandiri,2024-01-20 08:30:00,2024-01-20 08:29:00
3,100,20000,600,200,BCA,2024-02-11 12:00:00,2024-02-11 12:00:00
4,102,30000,900,300,BRI,2024-03-02 09:00:00,2024-03-02 09:00:00
5,101,45000,1300,400,Mandiri,2024-04-15 18:00:00,2024-04-15 18:00:00
6,,10000,300,100,BCA,2024-04-16 12:00:00,2024-04-16 12:00:00
7,103,abc,300,100,BRI,2024-04-17 12:00:00,2024-04-17 12:00:00
`

func testConfig(t *testing.T) config.ETLConfig {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "ledger.csv")
	if err := os.WriteFile(input, []byte(ledgerCSV), 0644); err != nil {
		t.Fatal(err)
	}

	var cfg config.ETLConfig
	cfg.InputPath = input
	cfg.CleanPath = filepath.Join(dir, "clean", "ledger_clean.csv")
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.RunInterval = time.Hour
	cfg.ForecastMonths = 3
	cfg.ConfidenceLevel = 0.95
	cfg.MinR2Threshold = 0.3
	cfg.RecencyThresholds.Active = 7
	cfg.RecencyThresholds.AtRisk = 30
	cfg.TopCustomers = 5
	cfg.EnableConsoleReport = true
	return cfg
}

func TestExecuteETLWithoutWarehouse(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableJSONExport = true
	var out bytes.Buffer
	runner := NewRunner(cfg, utils.NewDiscardLogger(), nil, &out)

	var (
		mu       sync.Mutex
		notified []RunResult
	)
	runner.OnRunComplete(func(r RunResult) {
		mu.Lock()
		notified = append(notified, r)
		mu.Unlock()
	})

	result, err := runner.ExecuteETL(context.Background())
	if err != nil {
		t.Fatalf("ExecuteETL: %v", err)
	}

	if result.Run.Status != models.RunStatusSuccess {
		t.Fatalf("status = %s", result.Run.Status)
	}
	if result.Run.RowsRead != 7 || result.Run.RowsDropped != 2 || result.Run.TransactionsProcessed != 5 || result.Run.CustomersProcessed != 3 {
		t.Fatalf("run counters = %+v", result.Run)
	}
	if result.Forecasts != len(linear_regression.Metrics) {
		t.Fatalf("forecasts = %d", result.Forecasts)
	}
	if len(result.Exports) == 0 {
		t.Fatal("JSON export expected")
	}
	if len(notified) != 1 || notified[0].Run.ID != result.Run.ID {
		t.Fatalf("listeners notified %d times", len(notified))
	}

	// Очищенный CSV читается обратно
	clean, err := extractors.NewLedgerExtractor(utils.NewDiscardLogger()).ExtractClean(context.Background(), cfg.CleanPath)
	if err != nil {
		t.Fatalf("clean csv: %v", err)
	}
	if len(clean.Transactions) != 5 {
		t.Fatalf("clean rows = %d", len(clean.Transactions))
	}

	if !strings.Contains(out.String(), "Удержание по когортам") {
		t.Fatal("console report was not printed")
	}

	_, payload, err := runner.Snapshots().Get(context.Background(), report.NameCohorts)
	if err != nil {
		t.Fatalf("cohorts snapshot: %v", err)
	}
	if !bytes.Contains(payload, []byte(`"cohort":"2024-01"`)) {
		t.Fatalf("cohorts snapshot = %s", payload)
	}

	runs, err := runner.Runs(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, %v", runs, err)
	}
	state, err := runner.State(context.Background())
	if err != nil || state.TotalSuccessfulRuns != 1 || state.LastSuccessfulRun == nil {
		t.Fatalf("state = %+v, %v", state, err)
	}
}

func TestExecuteETLWithWarehouse(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableConsoleReport = false
	cfg.EnableCharts = true
	cfg.EnableWarehouse = true
	cfg.Warehouse = config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "warehouse.db"),
	}

	ctx := context.Background()
	warehouse, err := config.ConnectWarehouse(ctx, cfg.Warehouse)
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(cfg, utils.NewDiscardLogger(), warehouse, nil)
	defer runner.Close()

	result, err := runner.ExecuteETL(ctx)
	if err != nil {
		t.Fatalf("ExecuteETL: %v", err)
	}
	if len(result.Charts) == 0 {
		t.Fatal("charts expected")
	}

	var months int
	if err := warehouse.DB.QueryRow("SELECT COUNT(*) FROM monthly_facts").Scan(&months); err != nil {
		t.Fatal(err)
	}
	if months != 4 {
		t.Fatalf("monthly_facts = %d, want 4", months)
	}

	last, err := models.NewSQLETLLogRepository(warehouse.DB, warehouse.Dialect).GetLastSuccessfulRun(ctx)
	if err != nil || last == nil || last.ID != result.Run.ID {
		t.Fatalf("last run = %+v, %v", last, err)
	}

	// Прогноз по данным хранилища
	lr := linear_regression.DefaultConfig()
	lr.ForecastMonths = 2
	forecasts, err := runner.RunForecasts(ctx, lr)
	if err != nil {
		t.Fatalf("RunForecasts: %v", err)
	}
	if len(forecasts) != 3 || len(forecasts[0].Forecasts) != 2 {
		t.Fatalf("forecasts = %+v", forecasts)
	}
	if forecasts[0].Forecasts[0].Month != models.NewYearMonth(2024, time.May) {
		t.Fatalf("first forecast month = %s", forecasts[0].Forecasts[0].Month)
	}
}

func TestExecuteETLFailureIsLogged(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "missing.csv")
	runner := NewRunner(cfg, utils.NewDiscardLogger(), nil, nil)
	var failed []models.ETLRunLog
	runner.OnRunFailed(func(run models.ETLRunLog) { failed = append(failed, run) })

	if _, err := runner.ExecuteETL(context.Background()); err == nil {
		t.Fatal("expected error for missing input")
	}
	if len(failed) != 1 || failed[0].Status != models.RunStatusFailed {
		t.Fatalf("failure listener got %+v", failed)
	}

	runs, _ := runner.Runs(context.Background(), 0)
	if len(runs) != 1 || runs[0].Status != models.RunStatusFailed || !strings.Contains(runs[0].ErrorMessage, "Extract") {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestFailureLogKeepsPercentInPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "ledger_100%done.csv")
	var logs bytes.Buffer
	runner := NewRunner(cfg, utils.NewETLLoggerWithWriters(&logs, nil, false), nil, nil)

	if _, err := runner.ExecuteETL(context.Background()); err == nil {
		t.Fatal("expected error for missing input")
	}

	if !strings.Contains(logs.String(), "ledger_100%done.csv") || strings.Contains(logs.String(), "%!") {
		t.Fatalf("log mangled the path:\n%s", logs.String())
	}
	runs, _ := runner.Runs(context.Background(), 1)
	if len(runs) != 1 || !strings.Contains(runs[0].ErrorMessage, "ledger_100%done.csv") {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestExecuteETLMissingColumns(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.InputPath, []byte("id,customer_id\n1,100\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(cfg, utils.NewDiscardLogger(), nil, nil)

	_, err := runner.ExecuteETL(context.Background())
	var missing *extractors.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
}

func TestCleanOnly(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, utils.NewDiscardLogger(), nil, nil)

	cleaning, err := runner.Clean(context.Background())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleaning.RowsRead != 7 || cleaning.RowsKept != 5 || cleaning.MissingCustomer != 1 || cleaning.InvalidAmount != 1 {
		t.Fatalf("cleaning = %+v", cleaning)
	}
	if _, err := os.Stat(cfg.CleanPath); err != nil {
		t.Fatalf("clean csv: %v", err)
	}

	// Прогноз без хранилища строится по очищенному CSV
	forecasts, err := runner.RunForecasts(context.Background(), linear_regression.DefaultConfig())
	if err != nil || len(forecasts) != 3 {
		t.Fatalf("forecasts = %d, %v", len(forecasts), err)
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, utils.NewDiscardLogger(), nil, nil)

	done := make(chan struct{})
	runner.OnRunComplete(func(RunResult) {
		select {
		case <-done:
		default:
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runner.StartScheduler(ctx) }()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("scheduled run did not complete")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
