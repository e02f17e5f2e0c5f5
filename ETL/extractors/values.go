package extractors

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Поддерживаемые форматы временных меток
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp разбирает временную метку; ok=false, если ни один формат не подошел
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "nat") || strings.EqualFold(s, "null") {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDecimal разбирает денежное значение; пустое или нечисловое значение возвращается как Valid=false
func ParseDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// NormalizeCustomerID приводит идентификатор клиента к единому виду: "1234.0" -> "1234"
func NormalizeCustomerID(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	if trimmed, ok := strings.CutSuffix(s, ".0"); ok && trimmed != "" {
		return trimmed
	}
	return s
}
