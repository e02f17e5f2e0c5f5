package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ExportJSON записывает данные в JSON-файл с отступами
func ExportJSON(filename string, data any) error {
	// Убеждаемся, что каталог существует
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("не удалось создать каталог: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("не удалось создать файл: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("не удалось записать JSON: %w", err)
	}
	return nil
}

// TimestampedFilename возвращает путь вида <dir>/<name>_20240131_150405.json
func TimestampedFilename(baseDir, name string, at time.Time) string {
	return filepath.Join(baseDir, fmt.Sprintf("%s_%s.json", name, at.Format("20060102_150405")))
}

// ExportAll записывает все отчеты запуска в JSON-файлы каталога dir
func ExportAll(dir string, b Bundle, at time.Time) ([]string, error) {
	reports := Snapshots(b)
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]string, 0, len(names))
	for _, name := range names {
		filename := TimestampedFilename(dir, name, at)
		if err := ExportJSON(filename, reports[name]); err != nil {
			return files, fmt.Errorf("экспорт отчета %s: %w", name, err)
		}
		files = append(files, filename)
	}
	return files, nil
}
