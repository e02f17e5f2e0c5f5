package extractors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Колонки исходного реестра транзакций
var RawColumns = []string{
	"id",
	"customer_id",
	"net_amount",
	"fee_internal_amount",
	"fee_external_amount",
	"category",
	"paying_at",
	"created_at",
}

// Колонки очищенного CSV в порядке записи
var CleanColumns = []string{
	"id",
	"customer_id",
	"net_amount",
	"fee_internal_amount",
	"fee_external_amount",
	"category",
	"transaction_date",
	"year_month",
	"cohort_month",
	"created_at",
}

// Обязательные колонки при чтении очищенного CSV
var RequiredCleanColumns = []string{
	"id",
	"customer_id",
	"net_amount",
	"fee_internal_amount",
	"category",
	"transaction_date",
	"year_month",
}

// MissingColumnsError сообщает обо всех отсутствующих обязательных колонках сразу
type MissingColumnsError struct {
	Source  string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("в %s отсутствуют обязательные колонки: %s", e.Source, strings.Join(e.Columns, ", "))
}

// csvTable прочитанная таблица: индекс колонок по имени и строки данных
type csvTable struct {
	columns map[string]int
	rows    [][]string
}

// value возвращает значение колонки в строке или пустую строку, если колонки нет
func (t *csvTable) value(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *csvTable) has(column string) bool {
	_, ok := t.columns[column]
	return ok
}

// readCSV читает CSV с заголовком и проверяет наличие обязательных колонок до чтения данных
func readCSV(r io.Reader, source string, required []string) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MissingColumnsError{Source: source, Columns: required}
		}
		return nil, fmt.Errorf("ошибка чтения заголовка %s: %w", source, err)
	}

	table := &csvTable{columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := table.columns[name]; !dup {
			table.columns[name] = i
		}
	}

	var missing []string
	for _, column := range required {
		if !table.has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Source: source, Columns: missing}
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения %s: %w", source, err)
		}
		table.rows = append(table.rows, row)
	}

	return table, nil
}
