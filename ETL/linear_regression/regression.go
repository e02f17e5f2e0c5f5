package linear_regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData возвращается, когда точек меньше двух
var ErrInsufficientData = errors.New("для расчета линейной регрессии требуется минимум 2 точки")

// RoundToThousandth округляет число до тысячных (3 знака после запятой)
func RoundToThousandth(value float64) float64 {
	return math.Round(value*1000) / 1000
}

// LinearRegression выполняет расчет линейной регрессии методом наименьших квадратов
// и возвращает результат с коэффициентами
func LinearRegression(metric Metric, points []DataPoint) (*RegressionResult, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w, получено: %d", ErrInsufficientData, len(points))
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	minMonth, maxMonth := points[0].Month, points[0].Month
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
		if p.Month < minMonth {
			minMonth = p.Month
		}
		if p.Month > maxMonth {
			maxMonth = p.Month
		}
	}

	if stat.Variance(xs, nil) < 1e-10 {
		return nil, fmt.Errorf("все X одинаковы, невозможно вычислить наклон")
	}

	// y = b + a*x
	b, a := stat.LinearRegression(xs, ys, nil, false)

	// Коэффициент корреляции Пирсона (r); для постоянного ряда корреляции нет
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		r = 0
	}

	// Округляем все результаты до тысячных (3 знака после запятой)
	return &RegressionResult{
		Metric:      metric,
		A:           RoundToThousandth(a),
		B:           RoundToThousandth(b),
		R:           RoundToThousandth(r),
		R2:          RoundToThousandth(r * r),
		PeriodStart: minMonth,
		PeriodEnd:   maxMonth,
		DataPoints:  points,
	}, nil
}

// Predict прогнозирует значение Y для заданного X на основе модели линейной регрессии
func Predict(result *RegressionResult, x float64) float64 {
	return RoundToThousandth(result.A*x + result.B)
}

// tStatistic приближение квантиля распределения Стьюдента для уровня доверия
func tStatistic(confidenceLevel float64) float64 {
	switch confidenceLevel {
	case 0.99:
		return 2.58
	case 0.90:
		return 1.64
	default:
		return 2.0
	}
}

// CalculateConfidenceInterval вычисляет интервал прогноза в точке x.
// При двух точках остаточная дисперсия не определена, интервал вырождается в точку.
func CalculateConfidenceInterval(result *RegressionResult, x float64, confidenceLevel float64) (float64, float64) {
	yPred := Predict(result, x)

	n := float64(len(result.DataPoints))
	if n <= 2 {
		return yPred, yPred
	}

	xs := make([]float64, len(result.DataPoints))
	for i, p := range result.DataPoints {
		xs[i] = p.X
	}
	meanX := stat.Mean(xs, nil)

	// Сумма квадратов отклонений
	sumSqDevX := 0.0
	sumSqResiduals := 0.0
	for _, p := range result.DataPoints {
		predY := Predict(result, p.X)
		sumSqDevX += (p.X - meanX) * (p.X - meanX)
		sumSqResiduals += (p.Y - predY) * (p.Y - predY)
	}

	// Стандартная ошибка оценки
	standardError := math.Sqrt(sumSqResiduals / (n - 2))

	// Стандартная ошибка прогноза включает ошибку регрессии и ошибку предсказания
	predictionStdError := standardError * math.Sqrt(1+1/n+(x-meanX)*(x-meanX)/sumSqDevX)

	margin := tStatistic(confidenceLevel) * predictionStdError
	return RoundToThousandth(yPred - margin), RoundToThousandth(yPred + margin)
}

// GenerateForecasts генерирует прогнозы на указанное количество месяцев вперед
// от последнего месяца ряда
func GenerateForecasts(result *RegressionResult, monthsAhead int, confidenceLevel float64) []ForecastPoint {
	if monthsAhead <= 0 {
		return nil
	}
	forecasts := make([]ForecastPoint, monthsAhead)

	// Максимальный X в наборе данных
	maxX := result.DataPoints[0].X
	for _, p := range result.DataPoints {
		if p.X > maxX {
			maxX = p.X
		}
	}

	for i := 0; i < monthsAhead; i++ {
		x := maxX + float64(i+1)
		lower, upper := CalculateConfidenceInterval(result, x, confidenceLevel)
		month := result.PeriodEnd.AddMonths(i + 1)

		forecasts[i] = ForecastPoint{
			Month:         month,
			Date:          month.Start(),
			ForecastValue: Predict(result, x),
			CILower:       lower,
			CIUpper:       upper,
		}
	}

	return forecasts
}
