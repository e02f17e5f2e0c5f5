package pipeline

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

// StartScheduler запускает ETL сразу и затем с интервалом RunInterval до отмены ctx
func (r *Runner) StartScheduler(ctx context.Context) error {
	scheduler := gocron.NewScheduler(time.UTC)
	// Пропускаем запуск, если предыдущий еще выполняется
	scheduler.SingletonModeAll()

	r.logger.Info("Запуск планировщика ETL с интервалом %v", r.config.RunInterval)

	_, err := scheduler.Every(r.config.RunInterval).Do(func() {
		r.logger.Info("Запланированный запуск ETL процесса")
		if _, err := r.ExecuteETL(ctx); err != nil {
			r.logger.Error("Ошибка при выполнении запланированного ETL: %v", err)
		}
	})
	if err != nil {
		r.logger.Error("Ошибка при настройке планировщика: %v", err)
		return err
	}

	// Запускаем планировщик
	scheduler.StartAsync()

	// Ожидаем сигнал остановки из контекста
	<-ctx.Done()

	// Останавливаем планировщик
	scheduler.Stop()
	r.logger.Info("Планировщик ETL остановлен")
	return nil
}

func newRunSuffix() string {
	return uuid.NewString()[:8]
}
