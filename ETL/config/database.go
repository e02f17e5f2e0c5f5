package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/LilVoxy/ledger_analytics/database"
	"github.com/go-sql-driver/mysql"
)

// Warehouse содержит подключение к аналитическому хранилищу
type Warehouse struct {
	DB      *sql.DB
	Dialect database.Dialect
}

// DataSourceName строит строку подключения для выбранного драйвера
func (c DatabaseConfig) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	dialect, err := database.DialectFor(c.Driver)
	if err != nil {
		return "", err
	}

	switch dialect.Driver {
	case database.DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		cfg.DBName = c.DBName
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil

	case database.DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.DBName,
		}
		q := u.Query()
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
		return u.String(), nil

	default:
		if strings.TrimSpace(c.Path) == "" {
			return "", fmt.Errorf("не задан файл базы sqlite (LEDGER_WAREHOUSE_PATH)")
		}
		return c.Path, nil
	}
}

// ConnectWarehouse устанавливает подключение к хранилищу и создает таблицы
func ConnectWarehouse(ctx context.Context, config DatabaseConfig) (*Warehouse, error) {
	dsn, err := config.DataSourceName()
	if err != nil {
		return nil, err
	}

	db, dialect, err := database.Open(ctx, config.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	if err := database.CreateTablesIfNotExist(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &Warehouse{DB: db, Dialect: dialect}, nil
}

// CloseWarehouse закрывает подключение к хранилищу
func CloseWarehouse(w *Warehouse) {
	if w == nil || w.DB == nil {
		return
	}
	if err := w.DB.Close(); err != nil {
		log.Printf("Ошибка при закрытии соединения с хранилищем: %v", err)
		return
	}
	log.Println("Соединение с хранилищем закрыто")
}
