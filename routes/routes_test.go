package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/ledger_analytics/ETL/extractors"
	"github.com/LilVoxy/ledger_analytics/ETL/load"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/pipeline"
	"github.com/LilVoxy/ledger_analytics/ETL/transform"
)

type fakeService struct {
	snapshots *load.MemorySnapshotStore
	runs      []models.ETLRunLog
	runErr    error
	lastLimit int
	executed  int
}

func newFakeService() *fakeService {
	return &fakeService{snapshots: load.NewMemorySnapshotStore()}
}

func (f *fakeService) ExecuteETL(ctx context.Context) (*pipeline.RunResult, error) {
	f.executed++
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &pipeline.RunResult{Run: models.ETLRunLog{ID: "run-1", Status: models.RunStatusSuccess}}, nil
}

func (f *fakeService) Runs(ctx context.Context, limit int) ([]models.ETLRunLog, error) {
	f.lastLimit = limit
	return f.runs, nil
}

func (f *fakeService) State(ctx context.Context) (*models.ETLStateMonitor, error) {
	return models.BuildStateMonitor(f.runs), nil
}

func (f *fakeService) Snapshots() load.SnapshotStore { return f.snapshots }

func newTestRouter(service Service) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router, service, nil)
	return router
}

func serve(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReportsEndpoints(t *testing.T) {
	service := newFakeService()
	ctx := context.Background()
	report := map[string]any{"cohort": "2024-01", "users": 3}
	if _, err := service.snapshots.Save(ctx, "cohorts", "run-1", report); err != nil {
		t.Fatalf("Save: %v", err)
	}
	router := newTestRouter(service)

	rec := serve(t, router, "GET", "/api/reports")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/reports: статус %d", rec.Code)
	}
	var list ReportsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("неверный JSON: %v", err)
	}
	if len(list.Reports) != 1 || list.Reports[0].Name != "cohorts" || list.Reports[0].RunID != "run-1" {
		t.Errorf("список отчетов: %+v", list.Reports)
	}

	rec = serve(t, router, "GET", "/api/reports/cohorts")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/reports/cohorts: статус %d", rec.Code)
	}
	if got := rec.Header().Get("X-Report-Run-Id"); got != "run-1" {
		t.Errorf("X-Report-Run-Id = %q", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("неверный JSON отчета: %v", err)
	}
	if payload["cohort"] != "2024-01" || payload["users"] != float64(3) {
		t.Errorf("содержимое отчета: %v", payload)
	}

	rec = serve(t, router, "GET", "/api/reports/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("отсутствующий отчет: статус %d, ожидался 404", rec.Code)
	}
}

func TestEmptyReportsList(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeService()), "GET", "/api/reports")
	if !strings.Contains(rec.Body.String(), `"reports":[]`) {
		t.Errorf("пустой список должен кодироваться как [], получено %s", rec.Body.String())
	}
}

func TestRunsEndpoints(t *testing.T) {
	service := newFakeService()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	service.runs = []models.ETLRunLog{
		{ID: "b", StartTime: now, Status: models.RunStatusFailed, ErrorMessage: "boom"},
		{ID: "a", StartTime: now.Add(-time.Hour), Status: models.RunStatusSuccess, TransactionsProcessed: 5, ExecutionTimeSeconds: 2},
	}
	router := newTestRouter(service)

	rec := serve(t, router, "GET", "/api/runs?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/runs: статус %d", rec.Code)
	}
	if service.lastLimit != 5 {
		t.Errorf("limit = %d, ожидалось 5", service.lastLimit)
	}
	var body struct {
		Runs []models.ETLRunLog `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("неверный JSON: %v", err)
	}
	if len(body.Runs) != 2 || body.Runs[0].ID != "b" {
		t.Errorf("запуски: %+v", body.Runs)
	}

	serve(t, router, "GET", "/api/runs")
	if service.lastLimit != 20 {
		t.Errorf("limit по умолчанию = %d, ожидалось 20", service.lastLimit)
	}

	if rec := serve(t, router, "GET", "/api/runs?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=abc: статус %d, ожидался 400", rec.Code)
	}

	rec = serve(t, router, "GET", "/api/runs/state")
	var state models.ETLStateMonitor
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("неверный JSON состояния: %v", err)
	}
	if state.TotalSuccessfulRuns != 1 || state.TotalFailedRuns != 1 || state.TotalItemsProcessed != 5 {
		t.Errorf("состояние: %+v", state)
	}
}

func TestTriggerRun(t *testing.T) {
	service := newFakeService()
	router := newTestRouter(service)

	rec := serve(t, router, "POST", "/api/runs")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/runs: статус %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"run-1"`) {
		t.Errorf("ответ не содержит идентификатор запуска: %s", rec.Body.String())
	}

	service.runErr = transform.ErrNoTransactions
	if rec := serve(t, router, "POST", "/api/runs"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("ошибка данных: статус %d, ожидался 422", rec.Code)
	}

	service.runErr = fmt.Errorf("ошибка в фазе Extract: %w",
		&extractors.MissingColumnsError{Source: "ledger.csv", Columns: []string{"paying_at"}})
	if rec := serve(t, router, "POST", "/api/runs"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("нет колонок: статус %d, ожидался 422", rec.Code)
	}

	service.runErr = errors.New("диск заполнен")
	rec = serve(t, router, "POST", "/api/runs")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("ошибка окружения: статус %d, ожидался 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "диск заполнен") {
		t.Errorf("тело ошибки: %s", rec.Body.String())
	}
	if service.executed != 4 {
		t.Errorf("ExecuteETL вызван %d раз", service.executed)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeService()), "OPTIONS", "/api/reports")
	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS: статус %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("отсутствует заголовок Access-Control-Allow-Origin")
	}
}

func TestRunnerSatisfiesService(t *testing.T) {
	var _ Service = (*pipeline.Runner)(nil)
}
