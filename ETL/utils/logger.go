package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ETLLogger представляет логгер для ETL-процесса
type ETLLogger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	console     *log.Logger
	isVerbose   bool
	file        *os.File
}

// NewETLLogger создает новый экземпляр логгера для ETL.
// Лог пишется в файл etl_log_YYYY-MM-DD.log в каталоге logDir и дублируется в stdout.
func NewETLLogger(logDir string, verbose bool) (*ETLLogger, error) {
	if logDir == "" {
		logDir = "."
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог логов %s: %w", logDir, err)
	}

	// Создаем или открываем лог-файл для записи
	currentTime := time.Now().Format("2006-01-02")
	logFileName := filepath.Join(logDir, fmt.Sprintf("etl_log_%s.log", currentTime))

	file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть или создать файл лога: %w", err)
	}

	logger := NewETLLoggerWithWriters(file, os.Stdout, verbose)
	logger.file = file
	return logger, nil
}

// NewETLLoggerWithWriters создает логгер поверх произвольных приемников (используется в тестах).
// console может быть nil, тогда сообщения пишутся только в out.
func NewETLLoggerWithWriters(out io.Writer, console io.Writer, verbose bool) *ETLLogger {
	flags := log.Ldate | log.Ltime | log.Lshortfile

	// Инициализируем логгеры для разных уровней
	l := &ETLLogger{
		infoLogger:  log.New(out, "INFO: ", flags),
		warnLogger:  log.New(out, "WARN: ", flags),
		errorLogger: log.New(out, "ERROR: ", flags),
		debugLogger: log.New(out, "DEBUG: ", flags),
		isVerbose:   verbose,
	}
	if console != nil {
		l.console = log.New(console, "", log.LstdFlags)
	}
	return l
}

// NewDiscardLogger возвращает логгер, который ничего не пишет
func NewDiscardLogger() *ETLLogger {
	return NewETLLoggerWithWriters(io.Discard, nil, false)
}

// Close закрывает файл лога
func (l *ETLLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *ETLLogger) write(target *log.Logger, level string, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	target.Output(3, msg)

	// Также выводим в стандартный вывод
	if l.console != nil {
		l.console.Println(level+":", msg)
	}
}

// Info логирует информационное сообщение
func (l *ETLLogger) Info(format string, v ...interface{}) {
	l.write(l.infoLogger, "INFO", format, v...)
}

// Warn логирует предупреждение (данные отброшены, показатель не посчитан и т.п.)
func (l *ETLLogger) Warn(format string, v ...interface{}) {
	l.write(l.warnLogger, "WARN", format, v...)
}

// Error логирует сообщение об ошибке
func (l *ETLLogger) Error(format string, v ...interface{}) {
	l.write(l.errorLogger, "ERROR", format, v...)
}

// Debug логирует отладочное сообщение (только если включен verbose режим)
func (l *ETLLogger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}
	l.write(l.debugLogger, "DEBUG", format, v...)
}

// LogETLStart логирует начало ETL-процесса
func (l *ETLLogger) LogETLStart(runID string) {
	l.Info("Начало выполнения ETL-процесса (запуск %s)", runID)
}

// LogETLComplete логирует завершение ETL-процесса
func (l *ETLLogger) LogETLComplete(startTime time.Time, totalTransactions int, totalCustomers int, totalMonths int) {
	duration := time.Since(startTime)
	l.Info("ETL-процесс завершён. Длительность: %v", duration)
	l.Info("Обработано: %s транзакций, %s клиентов, %d месяцев",
		FormatInt(int64(totalTransactions)), FormatInt(int64(totalCustomers)), totalMonths)
}

// LogExtractStart логирует начало фазы извлечения данных
func (l *ETLLogger) LogExtractStart(path string) {
	l.Info("Начало фазы Extract (Извлечение данных) из %s", path)
}

// LogExtractComplete логирует завершение фазы извлечения данных
func (l *ETLLogger) LogExtractComplete(rows int, skipped int, duration time.Duration) {
	l.Info("Фаза Extract завершена. Длительность: %v", duration)
	l.Info("Прочитано строк: %s, пропущено: %d", FormatInt(int64(rows)), skipped)
}

// LogPhase логирует завершение произвольной фазы
func (l *ETLLogger) LogPhase(phase string, startTime time.Time) {
	l.Info("Фаза %s завершена. Длительность: %v", phase, time.Since(startTime))
}
