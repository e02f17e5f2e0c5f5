package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/LilVoxy/ledger_analytics/database"
)

// Loader интерфейс для загрузки аналитических фактов в хранилище
type Loader interface {
	// LoadCohortCells загружает ячейки когортной матрицы
	LoadCohortCells(ctx context.Context, runID string, matrix *models.CohortMatrix) error

	// LoadMonthlyFacts загружает месячные показатели
	LoadMonthlyFacts(ctx context.Context, runID string, facts []models.MonthlyFact) error

	// LoadMarketShareFacts загружает доли банков
	LoadMarketShareFacts(ctx context.Context, runID string, facts []models.MarketShareFact) error

	// LoadCustomerValues загружает агрегаты по клиентам
	LoadCustomerValues(ctx context.Context, runID string, customers []models.CustomerValue) error
}

// WarehouseLoader реализация Loader для хранилища (MySQL, SQLite, PostgreSQL)
type WarehouseLoader struct {
	db        *sql.DB
	dialect   database.Dialect
	logger    *utils.ETLLogger
	batchSize int

	// Загрузчики для отдельных типов данных
	cohortLoader   *CohortLoader
	factsLoader    *FactsLoader
	customerLoader *CustomerLoader
}

// NewWarehouseLoader создает новый экземпляр WarehouseLoader
func NewWarehouseLoader(db *sql.DB, dialect database.Dialect, logger *utils.ETLLogger) *WarehouseLoader {
	loader := &WarehouseLoader{
		db:        db,
		dialect:   dialect,
		logger:    logger,
		batchSize: 500,
	}

	// Инициализация загрузчиков для отдельных типов данных
	loader.cohortLoader = &CohortLoader{w: loader}
	loader.factsLoader = &FactsLoader{w: loader}
	loader.customerLoader = &CustomerLoader{w: loader}

	return loader
}

// LoadCohortCells загружает ячейки когортной матрицы
func (l *WarehouseLoader) LoadCohortCells(ctx context.Context, runID string, matrix *models.CohortMatrix) error {
	return l.cohortLoader.Load(ctx, runID, matrix)
}

// LoadMonthlyFacts загружает месячные показатели
func (l *WarehouseLoader) LoadMonthlyFacts(ctx context.Context, runID string, facts []models.MonthlyFact) error {
	return l.factsLoader.LoadMonthly(ctx, runID, facts)
}

// LoadMarketShareFacts загружает доли банков
func (l *WarehouseLoader) LoadMarketShareFacts(ctx context.Context, runID string, facts []models.MarketShareFact) error {
	return l.factsLoader.LoadMarketShare(ctx, runID, facts)
}

// LoadCustomerValues загружает агрегаты по клиентам
func (l *WarehouseLoader) LoadCustomerValues(ctx context.Context, runID string, customers []models.CustomerValue) error {
	return l.customerLoader.Load(ctx, runID, customers)
}

// table описание таблицы фактов: ключевые колонки и остальные колонки.
// Последней колонкой всегда идет run_id.
type table struct {
	name    string
	keys    []string
	columns []string
}

// upsert вставляет/обновляет строки пакетами по batchSize, фиксируя транзакцию после каждого пакета,
// затем удаляет строки предыдущих запусков, чтобы таблица отражала только текущий запуск.
// Каждая строка содержит значения ключей и колонок без run_id.
func (l *WarehouseLoader) upsert(ctx context.Context, t table, runID string, rows [][]any) (int, error) {
	startTime := time.Now()
	l.logger.Info("Начало загрузки %s (всего: %d)", t.name, len(rows))

	query := l.dialect.UpsertQuery(t.name, t.keys, append(append([]string{}, t.columns...), "run_id"))

	processed := 0
	for start := 0; start < len(rows); start += l.batchSize {
		end := start + l.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		if err := l.execBatch(ctx, query, runID, rows[start:end]); err != nil {
			return processed, fmt.Errorf("ошибка при загрузке %s: %w", t.name, err)
		}
		processed = end

		// Логируем прогресс
		l.logger.Debug("Загружено %d из %d строк %s...", processed, len(rows), t.name)
	}

	// Удаляем строки, оставшиеся от прошлых запусков
	res, err := l.db.ExecContext(ctx, l.dialect.Rebind("DELETE FROM "+t.name+" WHERE run_id <> ?"), runID)
	if err != nil {
		return processed, fmt.Errorf("ошибка при удалении устаревших строк %s: %w", t.name, err)
	}
	if stale, _ := res.RowsAffected(); stale > 0 {
		l.logger.Debug("Удалено %d устаревших строк %s", stale, t.name)
	}

	l.logger.Info("Загрузка %s завершена. Загружено: %d, длительность: %v", t.name, processed, time.Since(startTime))
	return processed, nil
}

func (l *WarehouseLoader) execBatch(ctx context.Context, query, runID string, rows [][]any) error {
	// Начинаем транзакцию
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := append(append(make([]any, 0, len(row)+1), row...), runID)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке строки %v: %w", row[0], err)
		}
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}
