package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatters(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{FormatInt(1234567), "1,234,567"},
		{FormatInt(-42), "-42"},
		{FormatNumber(1234.5, 2), "1,234.50"},
		{FormatPercent(12.345), "12.35%"},
		{FormatCompact(950), "950"},
		{FormatCompact(1500), "1.5K"},
		{FormatCompact(2_000_000), "2M"},
		{FormatCompact(-3_400_000_000), "-3.4B"},
	}

	for i, c := range cases {
		if c.got != c.want {
			t.Errorf("case %d: got %q, want %q", i, c.got, c.want)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	var out bytes.Buffer
	l := NewETLLoggerWithWriters(&out, nil, false)

	l.Info("строк %d", 3)
	l.Warn("отброшено %d", 1)
	l.Error("сбой")
	l.Debug("скрыто")

	text := out.String()
	for _, want := range []string{"INFO: ", "строк 3", "WARN: ", "отброшено 1", "ERROR: ", "сбой"} {
		if !strings.Contains(text, want) {
			t.Fatalf("log output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "скрыто") {
		t.Fatal("debug message written without verbose mode")
	}

	out.Reset()
	verbose := NewETLLoggerWithWriters(&out, nil, true)
	verbose.Debug("видно")
	if !strings.Contains(out.String(), "DEBUG: ") {
		t.Fatalf("debug message missing in verbose mode: %s", out.String())
	}
}

func TestNewETLLoggerCreatesDatedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewETLLogger(dir, false)
	if err != nil {
		t.Fatalf("NewETLLogger: %v", err)
	}
	l.console = nil
	l.Info("hello")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	name := filepath.Join(dir, "etl_log_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log file content: %s", data)
	}
}
