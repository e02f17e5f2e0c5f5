package utils

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatInt форматирует целое число с разделителями разрядов (1,234,567)
func FormatInt(v int64) string {
	return printer.Sprintf("%d", v)
}

// FormatNumber форматирует число с разделителями разрядов и заданной точностью
func FormatNumber(v float64, precision int) string {
	return printer.Sprintf("%.*f", precision, v)
}

// FormatPercent форматирует долю или процент: 12.345 -> "12.35%"
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatCompact сокращает большие значения для подписей осей: 1500 -> "1.5K", 2300000 -> "2.3M"
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return trimCompact(v/1e9) + "B"
	case abs >= 1e6:
		return trimCompact(v/1e6) + "M"
	case abs >= 1e3:
		return trimCompact(v/1e3) + "K"
	default:
		return trimCompact(v)
	}
}

func trimCompact(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
