package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/LilVoxy/ledger_analytics/processor"
)

// DefaultEnvFile файл с переменными окружения, читаемый перед разбором конфигурации
const DefaultEnvFile = ".env"

// ETLConfig содержит конфигурацию для ETL-процесса
type ETLConfig struct {
	// Исходный реестр транзакций и очищенный CSV
	InputPath string `json:"input_path" env:"LEDGER_INPUT_PATH" envDefault:"data/ledger.csv"`
	CleanPath string `json:"clean_path" env:"LEDGER_CLEAN_PATH" envDefault:"data/ledger_clean.csv"`

	// Каталоги для графиков/JSON и логов
	OutputDir string `json:"output_dir" env:"LEDGER_OUTPUT_DIR" envDefault:"output"`
	LogDir    string `json:"log_dir" env:"LEDGER_LOG_DIR" envDefault:"logs"`

	// Конфигурация для подключения к аналитическому хранилищу
	EnableWarehouse bool           `json:"enable_warehouse" env:"LEDGER_WAREHOUSE_ENABLED" envDefault:"false"`
	Warehouse       DatabaseConfig `json:"warehouse" envPrefix:"LEDGER_WAREHOUSE_"`

	// Интервал запуска ETL
	RunInterval time.Duration `json:"run_interval" env:"LEDGER_RUN_INTERVAL" envDefault:"1h"`

	// Прогнозирование
	ForecastMonths  int     `json:"forecast_months" env:"LEDGER_FORECAST_MONTHS" envDefault:"3"`
	ConfidenceLevel float64 `json:"confidence_level" env:"LEDGER_CONFIDENCE_LEVEL" envDefault:"0.95"`
	MinR2Threshold  float64 `json:"min_r2_threshold" env:"LEDGER_MIN_R2" envDefault:"0.30"`

	// Пороговые значения давности для сегментов вовлеченности (в днях)
	RecencyThresholds struct {
		Active int `json:"active" env:"LEDGER_RECENCY_ACTIVE_DAYS" envDefault:"7"`
		AtRisk int `json:"at_risk" env:"LEDGER_RECENCY_AT_RISK_DAYS" envDefault:"30"`
	} `json:"recency_thresholds"`

	// Исключать транзакции с нулевой комиссией из когортного анализа ценности
	ExcludeZeroFee bool `json:"exclude_zero_fee" env:"LEDGER_EXCLUDE_ZERO_FEE" envDefault:"false"`

	// Количество клиентов в топе по наблюдаемой ценности
	TopCustomers int `json:"top_customers" env:"LEDGER_TOP_CUSTOMERS" envDefault:"10"`

	// Отчеты
	EnableConsoleReport bool `json:"enable_console_report" env:"LEDGER_CONSOLE_REPORT" envDefault:"true"`
	EnableCharts        bool `json:"enable_charts" env:"LEDGER_CHARTS" envDefault:"true"`
	EnableJSONExport    bool `json:"enable_json_export" env:"LEDGER_JSON_EXPORT" envDefault:"false"`

	// HTTP API
	HTTPAddr string `json:"http_addr" env:"LEDGER_HTTP_ADDR" envDefault:":8080"`

	// Ключ AES-256 в base64 для шифрования отчетов в хранилище; пусто — без шифрования
	SnapshotKey string `json:"-" env:"LEDGER_SNAPSHOT_KEY"`

	// Включение/отключение логирования
	EnableDetailedLogging bool `json:"enable_detailed_logging" env:"LEDGER_DETAILED_LOGGING" envDefault:"false"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver   string `json:"driver" env:"DRIVER" envDefault:"sqlite"`
	Host     string `json:"host" env:"HOST" envDefault:"localhost"`
	Port     int    `json:"port" env:"PORT" envDefault:"3306"`
	User     string `json:"user" env:"USER" envDefault:"root"`
	Password string `json:"-" env:"PASSWORD"`
	DBName   string `json:"dbname" env:"DBNAME" envDefault:"ledger_analytics"`
	// Path файл базы для sqlite
	Path    string `json:"path" env:"PATH" envDefault:"ledger_analytics.db"`
	SSLMode string `json:"sslmode" env:"SSLMODE" envDefault:"disable"`
	// DSN, если задан, используется как есть
	DSN string `json:"-" env:"DSN"`
}

// GetConfig возвращает конфигурацию ETL из .env и переменных окружения
func GetConfig() (ETLConfig, error) {
	return LoadConfig(DefaultEnvFile)
}

// LoadConfig читает envFile (его отсутствие не ошибка), затем переменные LEDGER_*
func LoadConfig(envFile string) (ETLConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ETLConfig{}, fmt.Errorf("ошибка чтения %s: %w", envFile, err)
		}
	}

	var config ETLConfig
	if err := env.Parse(&config); err != nil {
		return ETLConfig{}, fmt.Errorf("ошибка разбора переменных окружения: %w", err)
	}

	if err := config.Validate(); err != nil {
		return ETLConfig{}, err
	}
	return config, nil
}

// Validate проверяет согласованность настроек
func (c ETLConfig) Validate() error {
	var problems []string

	if strings.TrimSpace(c.InputPath) == "" {
		problems = append(problems, "не задан путь к исходному CSV (LEDGER_INPUT_PATH)")
	}
	if strings.TrimSpace(c.CleanPath) == "" {
		problems = append(problems, "не задан путь к очищенному CSV (LEDGER_CLEAN_PATH)")
	}
	if c.ForecastMonths < 1 {
		problems = append(problems, fmt.Sprintf("горизонт прогноза должен быть >= 1, получено %d", c.ForecastMonths))
	}
	switch c.ConfidenceLevel {
	case 0.90, 0.95, 0.99:
	default:
		problems = append(problems, fmt.Sprintf("уровень доверия должен быть 0.90, 0.95 или 0.99, получено %v", c.ConfidenceLevel))
	}
	if c.MinR2Threshold < 0 || c.MinR2Threshold > 1 {
		problems = append(problems, fmt.Sprintf("порог R² должен быть в [0, 1], получено %v", c.MinR2Threshold))
	}
	if c.RecencyThresholds.Active < 0 || c.RecencyThresholds.AtRisk <= c.RecencyThresholds.Active {
		problems = append(problems, fmt.Sprintf("пороги давности должны удовлетворять 0 <= active < at_risk, получено %d/%d",
			c.RecencyThresholds.Active, c.RecencyThresholds.AtRisk))
	}
	if c.RunInterval <= 0 {
		problems = append(problems, "интервал запуска должен быть положительным")
	}
	if c.TopCustomers < 1 {
		problems = append(problems, "размер топа клиентов должен быть >= 1")
	}
	if c.EnableWarehouse {
		if _, err := c.Warehouse.DataSourceName(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.SnapshotKey != "" {
		if _, err := processor.ParseKey(c.SnapshotKey); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("некорректная конфигурация: %s", strings.Join(problems, "; "))
	}
	return nil
}
