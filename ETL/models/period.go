package models

import (
	"fmt"
	"strings"
	"time"
)

// YearMonth календарный месяц в виде порядкового номера (год*12 + месяц-1).
// Разница двух значений дает количество полных месяцев между ними.
// Нулевое значение считается невалидным.
type YearMonth int

const yearMonthLayout = "2006-01"

// NewYearMonth создает YearMonth из года и месяца
func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth(year*12 + int(month) - 1)
}

// YearMonthOf возвращает месяц, к которому относится момент времени
func YearMonthOf(t time.Time) YearMonth {
	return NewYearMonth(t.Year(), t.Month())
}

// ParseYearMonth разбирает строку вида "2024-01".
// Допускаются и полные даты ("2024-01-15", "2024-01-15 10:00:00"), от них берется месяц.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(yearMonthLayout) {
		return 0, fmt.Errorf("неверный формат месяца: %q", s)
	}

	t, err := time.Parse(yearMonthLayout, s[:len(yearMonthLayout)])
	if err != nil {
		return 0, fmt.Errorf("неверный формат месяца %q: %w", s, err)
	}
	if len(s) > len(yearMonthLayout) && s[len(yearMonthLayout)] != '-' {
		return 0, fmt.Errorf("неверный формат месяца: %q", s)
	}

	return YearMonthOf(t), nil
}

// Year возвращает год
func (ym YearMonth) Year() int {
	return int(ym) / 12
}

// Month возвращает месяц
func (ym YearMonth) Month() time.Month {
	return time.Month(int(ym)%12 + 1)
}

// Valid сообщает, что значение было задано
func (ym YearMonth) Valid() bool {
	return ym > 0
}

// Start возвращает первый день месяца (UTC)
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year(), ym.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths сдвигает месяц на n месяцев
func (ym YearMonth) AddMonths(n int) YearMonth {
	return ym + YearMonth(n)
}

// MonthsSince возвращает количество полных месяцев от other до ym
func (ym YearMonth) MonthsSince(other YearMonth) int {
	return int(ym - other)
}

func (ym YearMonth) String() string {
	if !ym.Valid() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year(), int(ym.Month()))
}

// MarshalText реализует encoding.TextMarshaler (JSON-ключи и значения вида "2024-01")
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (ym *YearMonth) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*ym = 0
		return nil
	}
	parsed, err := ParseYearMonth(string(text))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// MonthRange возвращает все месяцы от first до last включительно
func MonthRange(first, last YearMonth) []YearMonth {
	if last < first {
		return nil
	}
	months := make([]YearMonth, 0, int(last-first)+1)
	for m := first; m <= last; m++ {
		months = append(months, m)
	}
	return months
}
