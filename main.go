// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/ledger_analytics/ETL/config"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/pipeline"
	"github.com/LilVoxy/ledger_analytics/routes"
	"github.com/LilVoxy/ledger_analytics/websocket"
)

func main() {
	log.Println("Запуск сервера аналитики реестра...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}

	runner, err := pipeline.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Не удалось создать ETL Runner: %v", err)
	}
	defer runner.Close()

	// Создаем и запускаем менеджер WebSocket
	wsManager := websocket.NewManager()
	go wsManager.Run(ctx)

	// Уведомляем панели о результатах запусков
	runner.OnRunComplete(func(result pipeline.RunResult) {
		names := make([]string, 0, len(result.Snapshots))
		for _, s := range result.Snapshots {
			names = append(names, s.Name)
		}
		if err := wsManager.PublishRunCompleted(result.Run, names, result.Warnings); err != nil {
			log.Printf("⚠️ Не удалось отправить уведомление о запуске %s: %v", result.Run.ID, err)
		}
	})
	runner.OnRunFailed(func(run models.ETLRunLog) {
		if err := wsManager.PublishRunFailed(run); err != nil {
			log.Printf("⚠️ Не удалось отправить уведомление о запуске %s: %v", run.ID, err)
		}
	})

	// Планировщик запусков ETL
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := runner.StartScheduler(ctx); err != nil {
			log.Printf("❌ Ошибка планировщика: %v", err)
		}
	}()

	// Маршруты API
	router := mux.NewRouter()
	routes.SetupRoutes(router, runner, wsManager)

	// Графики и экспортированные отчеты
	router.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.OutputDir))))

	// Настраиваем сервер. Запуск ETL через POST /api/runs может идти дольше обычного запроса
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Printf("✅ Сервер запущен на %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("❌ Ошибка запуска сервера: %v", err)
			stop()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	log.Println("⚠️ Получен сигнал завершения, закрываем соединения...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Ошибка остановки сервера: %v", err)
	}
	<-schedulerDone

	log.Println("👋 Сервер остановлен")
}
