// routes/handlers.go
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/ledger_analytics/ETL/load"
	"github.com/LilVoxy/ledger_analytics/ETL/transform"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// ReportsResponse структура ответа API для списка отчетов
type ReportsResponse struct {
	Reports []load.SnapshotInfo `json:"reports"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Ошибка при кодировании ответа: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ListReportsHandler возвращает метаданные сохраненных отчетов
func ListReportsHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := service.Snapshots().List(r.Context())
		if err != nil {
			log.Printf("Ошибка при получении списка отчетов: %v", err)
			writeError(w, http.StatusInternalServerError, "Ошибка при получении списка отчетов")
			return
		}
		if infos == nil {
			infos = []load.SnapshotInfo{}
		}
		writeJSON(w, http.StatusOK, ReportsResponse{Reports: infos})
	}
}

// GetReportHandler возвращает JSON отчета по имени
func GetReportHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		info, payload, err := service.Snapshots().Get(r.Context(), name)
		if err != nil {
			if errors.Is(err, load.ErrSnapshotNotFound) {
				writeError(w, http.StatusNotFound, "Отчет не найден: "+name)
				return
			}
			log.Printf("Ошибка при получении отчета %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "Ошибка при получении отчета")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Report-Run-Id", info.RunID)
		w.Header().Set("Last-Modified", info.CreatedAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}
}

// ListRunsHandler возвращает последние запуски ETL (?limit=N, по умолчанию 20)
func ListRunsHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "Неверный формат параметра limit")
				return
			}
			limit = parsed
		}

		runs, err := service.Runs(r.Context(), limit)
		if err != nil {
			log.Printf("Ошибка при получении запусков ETL: %v", err)
			writeError(w, http.StatusInternalServerError, "Ошибка при получении запусков ETL")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

// StateHandler возвращает сводное состояние ETL
func StateHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := service.State(r.Context())
		if err != nil {
			log.Printf("Ошибка при получении состояния ETL: %v", err)
			writeError(w, http.StatusInternalServerError, "Ошибка при получении состояния ETL")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// TriggerRunHandler запускает ETL и возвращает итог запуска.
// Запуск не прерывается, если клиент разорвал соединение.
func TriggerRunHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := service.ExecuteETL(context.WithoutCancel(r.Context()))
		if err != nil {
			status := http.StatusInternalServerError
			if transform.IsDataError(err) {
				status = http.StatusUnprocessableEntity
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}
