package load

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LilVoxy/ledger_analytics/database"
	"github.com/LilVoxy/ledger_analytics/processor"
)

// ErrSnapshotNotFound отчет с таким именем еще не сохранялся
var ErrSnapshotNotFound = errors.New("отчет не найден")

// SnapshotInfo метаданные сохраненного отчета
type SnapshotInfo struct {
	Name           string    `json:"name"`
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	SizeBytes      int       `json:"size_bytes"`       // размер JSON до сжатия
	CompressedSize int       `json:"compressed_bytes"` // размер хранимого payload (сжатого и, при шифровании, с nonce)
}

// SnapshotStore хранилище последних версий отчетов (JSON, сжатый snappy)
type SnapshotStore interface {
	// Save сохраняет отчет, заменяя предыдущую версию с тем же именем
	Save(ctx context.Context, name, runID string, report any) (SnapshotInfo, error)

	// Get возвращает метаданные и JSON отчета
	Get(ctx context.Context, name string) (SnapshotInfo, json.RawMessage, error)

	// List возвращает метаданные всех отчетов, отсортированные по имени
	List(ctx context.Context) ([]SnapshotInfo, error)
}

// SQLSnapshotStore хранит отчеты в таблице report_snapshots
type SQLSnapshotStore struct {
	db      *sql.DB
	dialect database.Dialect
	sealer  *processor.Sealer // nil, если шифрование отключено
	now     func() time.Time
}

// NewSQLSnapshotStore создает хранилище отчетов в базе данных
func NewSQLSnapshotStore(db *sql.DB, dialect database.Dialect) *SQLSnapshotStore {
	return &SQLSnapshotStore{db: db, dialect: dialect, now: time.Now}
}

// WithSealer включает шифрование payload в базе данных.
// Отчеты, сохраненные без шифрования, после включения не читаются.
func (s *SQLSnapshotStore) WithSealer(sealer *processor.Sealer) *SQLSnapshotStore {
	s.sealer = sealer
	return s
}

// Save сохраняет отчет
func (s *SQLSnapshotStore) Save(ctx context.Context, name, runID string, report any) (SnapshotInfo, error) {
	payload, rawSize, err := processor.EncodeSnapshot(report)
	if err != nil {
		return SnapshotInfo{}, err
	}
	if s.sealer != nil {
		if payload, err = s.sealer.Seal(payload); err != nil {
			return SnapshotInfo{}, fmt.Errorf("ошибка шифрования отчета %s: %w", name, err)
		}
	}

	info := SnapshotInfo{
		Name:           name,
		RunID:          runID,
		CreatedAt:      s.now().UTC().Truncate(time.Millisecond),
		SizeBytes:      rawSize,
		CompressedSize: len(payload),
	}

	query := s.dialect.UpsertQuery("report_snapshots", []string{"name"}, []string{"run_id", "created_at", "payload_size", "payload"})
	if _, err := s.db.ExecContext(ctx, query, name, runID, info.CreatedAt.UnixMilli(), rawSize, payload); err != nil {
		return SnapshotInfo{}, fmt.Errorf("ошибка при сохранении отчета %s: %w", name, err)
	}
	return info, nil
}

// Get возвращает отчет по имени
func (s *SQLSnapshotStore) Get(ctx context.Context, name string) (SnapshotInfo, json.RawMessage, error) {
	query := s.dialect.Rebind(`
	SELECT name, run_id, created_at, payload_size, payload
	FROM report_snapshots
	WHERE name = ?`)

	var (
		info      SnapshotInfo
		createdAt int64
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx, query, name).Scan(&info.Name, &info.RunID, &createdAt, &info.SizeBytes, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SnapshotInfo{}, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return SnapshotInfo{}, nil, fmt.Errorf("ошибка при получении отчета %s: %w", name, err)
	}
	info.CreatedAt = time.UnixMilli(createdAt).UTC()
	info.CompressedSize = len(payload)

	if s.sealer != nil {
		if payload, err = s.sealer.Open(payload); err != nil {
			return SnapshotInfo{}, nil, fmt.Errorf("отчет %s: %w", name, err)
		}
	}
	data, err := processor.DecodeSnapshot(payload)
	if err != nil {
		return SnapshotInfo{}, nil, fmt.Errorf("отчет %s: %w", name, err)
	}
	return info, data, nil
}

// List возвращает метаданные всех отчетов
func (s *SQLSnapshotStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT name, run_id, created_at, payload_size, LENGTH(payload)
	FROM report_snapshots
	ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка отчетов: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var (
			info      SnapshotInfo
			createdAt int64
		)
		if err := rows.Scan(&info.Name, &info.RunID, &createdAt, &info.SizeBytes, &info.CompressedSize); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании отчета: %w", err)
		}
		info.CreatedAt = time.UnixMilli(createdAt).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// MemorySnapshotStore хранит отчеты в памяти, когда хранилище отключено
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot
	now       func() time.Time
}

type memorySnapshot struct {
	info    SnapshotInfo
	payload []byte
}

// NewMemorySnapshotStore создает пустое хранилище отчетов в памяти
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]memorySnapshot),
		now:       time.Now,
	}
}

// Save сохраняет отчет
func (s *MemorySnapshotStore) Save(_ context.Context, name, runID string, report any) (SnapshotInfo, error) {
	payload, rawSize, err := processor.EncodeSnapshot(report)
	if err != nil {
		return SnapshotInfo{}, err
	}

	info := SnapshotInfo{
		Name:           name,
		RunID:          runID,
		CreatedAt:      s.now().UTC(),
		SizeBytes:      rawSize,
		CompressedSize: len(payload),
	}

	s.mu.Lock()
	s.snapshots[name] = memorySnapshot{info: info, payload: payload}
	s.mu.Unlock()
	return info, nil
}

// Get возвращает отчет по имени
func (s *MemorySnapshotStore) Get(_ context.Context, name string) (SnapshotInfo, json.RawMessage, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[name]
	s.mu.RUnlock()
	if !ok {
		return SnapshotInfo{}, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}

	data, err := processor.DecodeSnapshot(snap.payload)
	if err != nil {
		return SnapshotInfo{}, nil, err
	}
	return snap.info, data, nil
}

// List возвращает метаданные всех отчетов
func (s *MemorySnapshotStore) List(_ context.Context) ([]SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SnapshotInfo, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		infos = append(infos, snap.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
