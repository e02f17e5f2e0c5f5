package report

import (
	"fmt"

	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
)

// PrintForecasts печатает модели и прогнозы показателей
func (r *ConsoleReporter) PrintForecasts(forecasts []linear_regression.MetricForecast) {
	r.title("12. Прогноз линейного тренда")
	table := r.newTable("Показатель", "Месяц", "Прогноз", "Нижняя граница", "Верхняя граница", "R²")
	for _, f := range forecasts {
		quality := fmt.Sprintf("%.3f", f.Result.R2)
		if f.LowR2 {
			quality += " (низкое)"
		}
		for _, p := range f.Forecasts {
			table.Append([]string{
				string(f.Result.Metric),
				p.Month.String(),
				utils.FormatNumber(p.ForecastValue, 3),
				utils.FormatNumber(p.CILower, 3),
				utils.FormatNumber(p.CIUpper, 3),
				quality,
			})
		}
	}
	table.Render()
}
