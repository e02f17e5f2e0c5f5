// routes/api_routes.go
package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/ledger_analytics/ETL/load"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/pipeline"
	"github.com/LilVoxy/ledger_analytics/websocket"
)

// Service операции ETL, доступные через API
type Service interface {
	ExecuteETL(ctx context.Context) (*pipeline.RunResult, error)
	Runs(ctx context.Context, limit int) ([]models.ETLRunLog, error)
	State(ctx context.Context) (*models.ETLStateMonitor, error)
	Snapshots() load.SnapshotStore
}

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, service Service, wsManager *websocket.Manager) {
	// Применяем CORS middleware
	router.Use(CORSMiddleware)

	// WebSocket соединения
	if wsManager != nil {
		router.HandleFunc("/ws", wsManager.HandleConnections)
	}

	// API отчетов
	router.HandleFunc("/api/reports", ListReportsHandler(service)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/reports/{name}", GetReportHandler(service)).Methods("GET", "OPTIONS")

	// API запусков ETL
	router.HandleFunc("/api/runs", ListRunsHandler(service)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs", TriggerRunHandler(service)).Methods("POST")
	router.HandleFunc("/api/runs/state", StateHandler(service)).Methods("GET", "OPTIONS")

	// Проверка доступности
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
}

// CORSMiddleware разрешает запросы панелей мониторинга с любого источника
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
