package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ForecastMonths != 3 || cfg.ConfidenceLevel != 0.95 || cfg.MinR2Threshold != 0.30 {
		t.Fatalf("forecast defaults = %d/%v/%v", cfg.ForecastMonths, cfg.ConfidenceLevel, cfg.MinR2Threshold)
	}
	if cfg.RecencyThresholds.Active != 7 || cfg.RecencyThresholds.AtRisk != 30 {
		t.Fatalf("recency defaults = %+v", cfg.RecencyThresholds)
	}
	if cfg.RunInterval != time.Hour || cfg.HTTPAddr != ":8080" {
		t.Fatalf("interval=%v addr=%s", cfg.RunInterval, cfg.HTTPAddr)
	}
	if cfg.ExcludeZeroFee || cfg.EnableWarehouse {
		t.Fatal("zero-fee filter and warehouse must be off by default")
	}
	if cfg.Warehouse.Driver != "sqlite" {
		t.Fatalf("warehouse driver = %s", cfg.Warehouse.Driver)
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"LEDGER_FORECAST_MONTHS=6",
		"LEDGER_EXCLUDE_ZERO_FEE=true",
		"LEDGER_WAREHOUSE_ENABLED=true",
		"LEDGER_WAREHOUSE_DRIVER=sqlite",
		"LEDGER_WAREHOUSE_PATH=" + filepath.Join(dir, "w.db"),
	}, "\n")
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// godotenv не перезаписывает уже заданные переменные
	t.Setenv("LEDGER_FORECAST_MONTHS", "4")
	// переменные из файла останутся в окружении процесса, очищаем их после теста
	for _, key := range []string{"LEDGER_EXCLUDE_ZERO_FEE", "LEDGER_WAREHOUSE_ENABLED", "LEDGER_WAREHOUSE_DRIVER", "LEDGER_WAREHOUSE_PATH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig(envFile)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ForecastMonths != 4 {
		t.Fatalf("ForecastMonths = %d, want 4 from environment", cfg.ForecastMonths)
	}
	if !cfg.ExcludeZeroFee || !cfg.EnableWarehouse {
		t.Fatalf("values from .env not applied: %+v", cfg)
	}
	if cfg.Warehouse.Path != filepath.Join(dir, "w.db") {
		t.Fatalf("warehouse path = %s", cfg.Warehouse.Path)
	}
}

func TestValidate(t *testing.T) {
	base, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cases := map[string]func(c *ETLConfig){
		"forecast":   func(c *ETLConfig) { c.ForecastMonths = 0 },
		"confidence": func(c *ETLConfig) { c.ConfidenceLevel = 0.5 },
		"r2":         func(c *ETLConfig) { c.MinR2Threshold = 2 },
		"recency":    func(c *ETLConfig) { c.RecencyThresholds.AtRisk = c.RecencyThresholds.Active },
		"input":      func(c *ETLConfig) { c.InputPath = " " },
		"key":        func(c *ETLConfig) { c.SnapshotKey = "c2hvcnQ=" },
		"warehouse": func(c *ETLConfig) {
			c.EnableWarehouse = true
			c.Warehouse.Driver = "oracle"
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDataSourceName(t *testing.T) {
	mysqlCfg := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "etl", Password: "secret", DBName: "analytics"}
	dsn, err := mysqlCfg.DataSourceName()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dsn, "etl:secret@tcp(db:3306)/analytics") || !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("mysql dsn = %s", dsn)
	}

	pgCfg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "etl", Password: "secret", DBName: "analytics", SSLMode: "disable"}
	dsn, err = pgCfg.DataSourceName()
	if err != nil {
		t.Fatal(err)
	}
	if dsn != "postgres://etl:secret@db:5432/analytics?sslmode=disable" {
		t.Fatalf("postgres dsn = %s", dsn)
	}

	override := DatabaseConfig{Driver: "mysql", DSN: "custom"}
	if dsn, _ := override.DataSourceName(); dsn != "custom" {
		t.Fatalf("override dsn = %s", dsn)
	}
}

func TestConnectWarehouseSQLite(t *testing.T) {
	cfg := DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "warehouse.db")}
	w, err := ConnectWarehouse(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ConnectWarehouse: %v", err)
	}
	defer CloseWarehouse(w)

	var n int
	if err := w.DB.QueryRow("SELECT COUNT(*) FROM monthly_facts").Scan(&n); err != nil {
		t.Fatalf("monthly_facts not created: %v", err)
	}
}
