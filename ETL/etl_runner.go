package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LilVoxy/ledger_analytics/ETL/config"
	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/pipeline"
)

// newRunner загружает конфигурацию и создает ETL Runner
func newRunner(ctx context.Context) *pipeline.Runner {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	runner, err := pipeline.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Ошибка при создании ETL Runner: %v", err)
	}
	return runner
}

// RunOnce запускает ETL процесс один раз
func RunOnce(ctx context.Context) {
	runner := newRunner(ctx)
	defer runner.Close()

	if _, err := runner.ExecuteETL(ctx); err != nil {
		log.Fatalf("Ошибка при выполнении ETL: %v", err)
	}
}

// RunScheduled запускает ETL процесс по расписанию до сигнала завершения
func RunScheduled(ctx context.Context) {
	runner := newRunner(ctx)
	defer runner.Close()

	// Запускаем планировщик
	if err := runner.StartScheduler(ctx); err != nil {
		log.Fatalf("Ошибка планировщика: %v", err)
	}
}

// RunClean выполняет только очистку реестра
func RunClean(ctx context.Context) {
	runner := newRunner(ctx)
	defer runner.Close()

	report, err := runner.Clean(ctx)
	if err != nil {
		log.Fatalf("Ошибка при очистке реестра: %v", err)
	}
	log.Printf("Очистка завершена: прочитано %d, сохранено %d, отброшено %d", report.RowsRead, report.RowsKept, report.Dropped())
}

// RunLinearRegression запускает только линейную регрессию с пользовательскими параметрами
func RunLinearRegression(ctx context.Context, forecast int, confidence, minR2 float64) {
	log.Println("Запуск утилиты линейной регрессии")

	runner := newRunner(ctx)
	defer runner.Close()

	cfg := linear_regression.DefaultConfig()
	cfg.ForecastMonths = forecast
	cfg.ConfidenceLevel = confidence
	cfg.MinR2Threshold = minR2

	if _, err := runner.RunForecasts(ctx, cfg); err != nil {
		log.Fatalf("Ошибка при выполнении линейной регрессии: %v", err)
	}

	log.Println("Линейная регрессия успешно завершена")
}

func main() {
	// Параметры командной строки
	modePtr := flag.String("mode", "once", "Режим работы: once, scheduled, clean или lr")
	forecastPtr := flag.Int("forecast", 3, "Количество месяцев для прогноза (только для режима lr)")
	confidencePtr := flag.Float64("confidence", 0.95, "Уровень доверия: 0.90, 0.95 или 0.99 (только для режима lr)")
	minR2Ptr := flag.Float64("min-r2", 0.30, "Минимальный порог для R² (только для режима lr)")

	flag.Parse()

	// Контекст отменяется при получении сигнала завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Запуск ETL Runner в режиме:", *modePtr)

	switch *modePtr {
	case "once":
		RunOnce(ctx)
	case "scheduled":
		RunScheduled(ctx)
	case "clean":
		RunClean(ctx)
	case "lr":
		RunLinearRegression(ctx, *forecastPtr, *confidencePtr, *minR2Ptr)
	default:
		log.Println("Неизвестный режим работы:", *modePtr)
		log.Println("Доступные режимы: once, scheduled, clean, lr")
		os.Exit(1)
	}

	log.Println("ETL Runner завершил работу")
}
