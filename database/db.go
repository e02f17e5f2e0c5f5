// database/db.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open открывает соединение с аналитическим хранилищем и проверяет его доступность
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("ошибка подключения к хранилищу (%s): %w", driver, err)
	}

	// Настройка пула соединений
	if dialect.Driver == DriverSQLite {
		// SQLite допускает одного писателя, а база в памяти живет только внутри одного соединения
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("не удалось установить соединение с хранилищем (%s): %w", driver, err)
	}

	log.Printf("✅ Успешное подключение к хранилищу (%s)", driver)
	return db, dialect, nil
}
