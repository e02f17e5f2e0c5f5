package models

import (
	"context"
	"testing"
	"time"

	"github.com/LilVoxy/ledger_analytics/database"
	"github.com/google/uuid"
)

func openTestWarehouse(t *testing.T) *SQLETLLogRepository {
	t.Helper()

	ctx := context.Background()
	db, dialect, err := database.Open(ctx, database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.CreateTablesIfNotExist(ctx, db, dialect); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return NewSQLETLLogRepository(db, dialect)
}

func runLogRepositories(t *testing.T) map[string]ETLLogRepository {
	return map[string]ETLLogRepository{
		"sql":    openTestWarehouse(t),
		"memory": NewMemoryETLLogRepository(),
	}
}

func TestETLLogRepositoryLifecycle(t *testing.T) {
	for name, repo := range runLogRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

			last, err := repo.GetLastSuccessfulRun(ctx)
			if err != nil || last != nil {
				t.Fatalf("empty log: got %v, %v", last, err)
			}

			ok := &ETLRunLog{ID: uuid.NewString(), StartTime: start, SourceFile: "ledger.csv"}
			if err := repo.CreateLogEntry(ctx, ok); err != nil {
				t.Fatalf("create: %v", err)
			}
			ok.EndTime = start.Add(90 * time.Second)
			ok.RowsRead = 10
			ok.RowsDropped = 2
			ok.TransactionsProcessed = 8
			ok.CustomersProcessed = 3
			if err := repo.UpdateLogEntrySuccess(ctx, ok); err != nil {
				t.Fatalf("success: %v", err)
			}

			failed := &ETLRunLog{ID: uuid.NewString(), StartTime: start.Add(time.Hour), SourceFile: "ledger.csv"}
			if err := repo.CreateLogEntry(ctx, failed); err != nil {
				t.Fatalf("create failed run: %v", err)
			}
			if err := repo.UpdateLogEntryFailure(ctx, failed.ID, failed.StartTime.Add(5*time.Second), "boom"); err != nil {
				t.Fatalf("failure: %v", err)
			}

			last, err = repo.GetLastSuccessfulRun(ctx)
			if err != nil {
				t.Fatalf("last run: %v", err)
			}
			if last == nil || last.ID != ok.ID {
				t.Fatalf("last successful run = %+v, want %s", last, ok.ID)
			}
			if last.ExecutionTimeSeconds != 90 || last.TransactionsProcessed != 8 || last.RowsDropped != 2 {
				t.Fatalf("last run fields = %+v", last)
			}

			runs, err := repo.GetETLRunStats(ctx, 10)
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if len(runs) != 2 {
				t.Fatalf("runs = %d, want 2", len(runs))
			}
			if runs[0].ID != failed.ID || runs[0].Status != RunStatusFailed || runs[0].ErrorMessage != "boom" {
				t.Fatalf("newest run = %+v", runs[0])
			}
			if runs[0].ExecutionTimeSeconds != 5 {
				t.Fatalf("failed run execution time = %v, want 5", runs[0].ExecutionTimeSeconds)
			}

			limited, _ := repo.GetETLRunStats(ctx, 1)
			if len(limited) != 1 {
				t.Fatalf("limit 1 returned %d runs", len(limited))
			}
		})
	}
}

func TestBuildStateMonitor(t *testing.T) {
	now := time.Now()
	runs := []ETLRunLog{
		{ID: "3", Status: RunStatusInProgress, StartTime: now},
		{ID: "2", Status: RunStatusSuccess, ExecutionTimeSeconds: 4, TransactionsProcessed: 10},
		{ID: "1", Status: RunStatusFailed},
		{ID: "0", Status: RunStatusSuccess, ExecutionTimeSeconds: 2, TransactionsProcessed: 5},
	}

	m := BuildStateMonitor(runs)
	if m.CurrentRun == nil || m.CurrentRun.ID != "3" {
		t.Fatalf("current run = %+v", m.CurrentRun)
	}
	if m.LastSuccessfulRun == nil || m.LastSuccessfulRun.ID != "2" {
		t.Fatalf("last successful = %+v", m.LastSuccessfulRun)
	}
	if m.TotalSuccessfulRuns != 2 || m.TotalFailedRuns != 1 {
		t.Fatalf("totals = %d/%d", m.TotalSuccessfulRuns, m.TotalFailedRuns)
	}
	if m.AvgExecutionTimeSeconds != 3 || m.TotalItemsProcessed != 15 {
		t.Fatalf("avg=%v items=%d", m.AvgExecutionTimeSeconds, m.TotalItemsProcessed)
	}
}
