package load

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
)

// LoadManager отвечает за управление процессом загрузки данных в хранилище и сохранением отчетов
type LoadManager struct {
	logger    *utils.ETLLogger
	loader    Loader // nil, если хранилище отключено
	snapshots SnapshotStore
}

// NewLoadManager создает новый экземпляр LoadManager.
// loader может быть nil: тогда фаза Load пропускается, а отчеты сохраняются только в snapshots.
func NewLoadManager(loader Loader, snapshots SnapshotStore, logger *utils.ETLLogger) *LoadManager {
	if snapshots == nil {
		snapshots = NewMemorySnapshotStore()
	}
	return &LoadManager{
		logger:    logger,
		loader:    loader,
		snapshots: snapshots,
	}
}

// Snapshots возвращает хранилище отчетов
func (m *LoadManager) Snapshots() SnapshotStore {
	return m.snapshots
}

// Load выполняет фазу загрузки данных ETL-процесса.
// Принимает обработанные данные из фазы Transform.
func (m *LoadManager) Load(ctx context.Context, runID string, transformedData *models.TransformedData) error {
	if m.loader == nil {
		m.logger.Info("Хранилище отключено, фаза Load пропущена")
		return nil
	}

	startTime := time.Now()
	m.logger.Info("Начало фазы Load (Загрузка данных)")

	// 1. Месячные показатели
	m.logger.Info("Загрузка месячных показателей...")
	if err := m.loader.LoadMonthlyFacts(ctx, runID, transformedData.Monthly); err != nil {
		m.logger.Error("Ошибка при загрузке месячных показателей: %v", err)
		return fmt.Errorf("ошибка при загрузке месячных показателей: %w", err)
	}

	// 2. Доли банков
	m.logger.Info("Загрузка долей банков...")
	if err := m.loader.LoadMarketShareFacts(ctx, runID, transformedData.MarketShare); err != nil {
		m.logger.Error("Ошибка при загрузке долей банков: %v", err)
		return fmt.Errorf("ошибка при загрузке долей банков: %w", err)
	}

	// 3. Когортная матрица
	m.logger.Info("Загрузка когортной матрицы...")
	if err := m.loader.LoadCohortCells(ctx, runID, transformedData.Cohorts); err != nil {
		m.logger.Error("Ошибка при загрузке когортной матрицы: %v", err)
		return fmt.Errorf("ошибка при загрузке когортной матрицы: %w", err)
	}

	// 4. Клиенты (только если сегментация посчитана)
	if transformedData.Segmentation != nil {
		m.logger.Info("Загрузка агрегатов по клиентам...")
		if err := m.loader.LoadCustomerValues(ctx, runID, transformedData.Segmentation.Customers); err != nil {
			m.logger.Error("Ошибка при загрузке агрегатов по клиентам: %v", err)
			return fmt.Errorf("ошибка при загрузке агрегатов по клиентам: %w", err)
		}
	}

	duration := time.Since(startTime)
	m.logger.Info("Фаза Load завершена. Длительность: %v", duration)

	return nil
}

// SaveSnapshots сохраняет отчеты запуска. Отчеты со значением nil пропускаются.
func (m *LoadManager) SaveSnapshots(ctx context.Context, runID string, reports map[string]any) ([]SnapshotInfo, error) {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := make([]SnapshotInfo, 0, len(names))
	for _, name := range names {
		if isNil(reports[name]) {
			m.logger.Debug("Отчет %s пуст, сохранение пропущено", name)
			continue
		}
		info, err := m.snapshots.Save(ctx, name, runID, reports[name])
		if err != nil {
			return saved, fmt.Errorf("ошибка при сохранении отчета %s: %w", name, err)
		}
		m.logger.Debug("Отчет %s сохранен: %s байт JSON, %s байт сжато",
			name, utils.FormatInt(int64(info.SizeBytes)), utils.FormatInt(int64(info.CompressedSize)))
		saved = append(saved, info)
	}

	m.logger.Info("Сохранено отчетов: %d", len(saved))
	return saved, nil
}

// isNil сообщает, что отчет отсутствует (включая типизированный nil-указатель)
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
