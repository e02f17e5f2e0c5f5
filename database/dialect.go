// database/dialect.go
package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Поддерживаемые драйверы хранилища
const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Dialect описывает различия SQL между поддерживаемыми базами данных
type Dialect struct {
	Driver string
}

// DialectFor возвращает диалект для имени драйвера
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMySQL:
		return Dialect{Driver: DriverMySQL}, nil
	case DriverSQLite, "sqlite3":
		return Dialect{Driver: DriverSQLite}, nil
	case DriverPostgres, "postgres", "postgresql":
		return Dialect{Driver: DriverPostgres}, nil
	default:
		return Dialect{}, fmt.Errorf("неподдерживаемый драйвер хранилища: %q", driver)
	}
}

// Rebind заменяет плейсхолдеры "?" на "$1, $2, ..." для PostgreSQL
func (d Dialect) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BlobType возвращает тип колонки для бинарных данных
func (d Dialect) BlobType() string {
	switch d.Driver {
	case DriverMySQL:
		return "LONGBLOB"
	case DriverPostgres:
		return "BYTEA"
	default:
		return "BLOB"
	}
}

// UpsertQuery строит INSERT с обновлением существующей строки по ключу.
// keys должны образовывать первичный ключ таблицы.
func (d Dialect) UpsertQuery(table string, keys, columns []string) string {
	all := append(append([]string{}, keys...), columns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), placeholders)

	updates := make([]string, 0, len(columns))
	switch d.Driver {
	case DriverMySQL:
		for _, c := range columns {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		fmt.Fprintf(&b, " ON DUPLICATE KEY UPDATE %s", strings.Join(updates, ", "))
	default:
		for _, c := range columns {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(updates, ", "))
	}

	return d.Rebind(b.String())
}
