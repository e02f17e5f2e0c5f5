package transform

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quantile считает квантиль q по отсортированной выборке с линейной интерполяцией
// между соседними порядковыми статистиками: позиция (n-1)*q.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// median медиана отсортированной выборки
func median(sorted []float64) float64 {
	return quantile(sorted, 0.5)
}

// mean среднее значение выборки
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// sortedCopy возвращает отсортированную по возрастанию копию
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
