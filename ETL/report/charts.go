package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/LilVoxy/ledger_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
)

// errNoChartData данных для графика нет, график пропускается
var errNoChartData = errors.New("нет данных для графика")

// ChartRenderer строит PNG-графики отчетов
type ChartRenderer struct {
	dir    string
	logger *utils.ETLLogger
	width  vg.Length
	height vg.Length
}

// NewChartRenderer создает новый экземпляр ChartRenderer, графики сохраняются в dir
func NewChartRenderer(dir string, logger *utils.ETLLogger) *ChartRenderer {
	return &ChartRenderer{
		dir:    dir,
		logger: logger,
		width:  12 * vg.Inch,
		height: 6 * vg.Inch,
	}
}

type chart struct {
	file  string
	build func() (*plot.Plot, error)
}

// RenderAll строит все графики, для которых есть данные, и возвращает пути сохраненных файлов.
// Ошибка построения отдельного графика логируется; ошибка записи файла прерывает работу.
func (c *ChartRenderer) RenderAll(b Bundle) ([]string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог графиков: %w", err)
	}

	data := b.Data
	charts := []chart{
		{"01_monthly_volume.png", func() (*plot.Plot, error) { return volumeChart(data.Monthly) }},
		{"02_monthly_revenue.png", func() (*plot.Plot, error) { return revenueChart(data.Monthly) }},
		{"02b_mom_growth.png", func() (*plot.Plot, error) { return growthChart(data.Monthly) }},
		{"03_revenue_vs_volume.png", func() (*plot.Plot, error) { return revenueVolumeChart(data.Monthly) }},
		{"04_acquisition_vs_retention.png", func() (*plot.Plot, error) { return acquisitionChart(data.Monthly) }},
		{"05_cohort_retention.png", func() (*plot.Plot, error) { return retentionHeatmap(data.Cohorts) }},
		{"06_customer_segments.png", func() (*plot.Plot, error) { return segmentationChart(data.Segmentation) }},
		{"07_revenue_concentration.png", func() (*plot.Plot, error) { return paretoChart(data.Concentration) }},
		{"08_observed_customer_value.png", func() (*plot.Plot, error) { return observedValueChart(data.ObservedValue) }},
		{"09_cohort_value.png", func() (*plot.Plot, error) { return cohortValueChart(data.Cohorts) }},
		{"10_bank_market_share.png", func() (*plot.Plot, error) { return marketShareChart(data.MarketShare) }},
		{"11_engagement_health.png", func() (*plot.Plot, error) { return engagementChart(data.Engagement) }},
	}
	for _, f := range b.Forecasts {
		forecast := f
		charts = append(charts, chart{
			file:  fmt.Sprintf("12_forecast_%s.png", forecast.Result.Metric),
			build: func() (*plot.Plot, error) { return forecastChart(data.Monthly, forecast) },
		})
	}

	var files []string
	for _, ch := range charts {
		p, err := ch.build()
		if err != nil {
			if errors.Is(err, errNoChartData) {
				c.logger.Debug("График %s пропущен: %v", ch.file, err)
			} else {
				c.logger.Warn("Не удалось построить график %s: %v", ch.file, err)
			}
			continue
		}

		path := filepath.Join(c.dir, ch.file)
		if err := p.Save(c.width, c.height, path); err != nil {
			return files, fmt.Errorf("не удалось сохранить график %s: %w", ch.file, err)
		}
		files = append(files, path)
	}

	c.logger.Info("Сохранено графиков: %d в %s", len(files), c.dir)
	return files, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func monthsOf(facts []models.MonthlyFact) []models.YearMonth {
	months := make([]models.YearMonth, len(facts))
	for i, f := range facts {
		months[i] = f.Month
	}
	return months
}

func barWidth(n int) vg.Length {
	w := vg.Points(600 / float64(n+1))
	if w > vg.Points(40) {
		return vg.Points(40)
	}
	if w < vg.Points(3) {
		return vg.Points(3)
	}
	return w
}

// monthlyBars столбчатая диаграмма месячного ряда
func monthlyBars(title, yLabel string, facts []models.MonthlyFact, value func(models.MonthlyFact) float64) (*plot.Plot, error) {
	if len(facts) == 0 {
		return nil, errNoChartData
	}

	values := make(plotter.Values, len(facts))
	for i, f := range facts {
		values[i] = value(f)
	}

	p := newPlot(title, "Месяц", yLabel)
	bars, err := plotter.NewBarChart(values, barWidth(len(values)))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.X.Tick.Marker = monthTicks(monthsOf(facts))
	p.Y.Tick.Marker = compactTicks{}
	return p, nil
}

func volumeChart(facts []models.MonthlyFact) (*plot.Plot, error) {
	return monthlyBars("01 – Monthly Platform Usage Volume", "Объем", facts, func(f models.MonthlyFact) float64 {
		return f.Volume.InexactFloat64()
	})
}

func revenueChart(facts []models.MonthlyFact) (*plot.Plot, error) {
	return monthlyBars("02 – Monthly Revenue", "Выручка", facts, func(f models.MonthlyFact) float64 {
		return f.Revenue.InexactFloat64()
	})
}

// growthChart рост выручки к прошлому месяцу; неопределенный рост рисуется нулем
func growthChart(facts []models.MonthlyFact) (*plot.Plot, error) {
	p, err := monthlyBars("02 – Month-over-Month Revenue Growth (%)", "Рост, %", facts, func(f models.MonthlyFact) float64 {
		if f.MoMGrowthPct == nil {
			return 0
		}
		return *f.MoMGrowthPct
	})
	if err != nil {
		return nil, err
	}
	p.Y.Tick.Marker = plot.DefaultTicks{}
	return p, nil
}

func revenueVolumeChart(facts []models.MonthlyFact) (*plot.Plot, error) {
	if len(facts) == 0 {
		return nil, errNoChartData
	}

	points := make(plotter.XYs, len(facts))
	labels := make([]string, len(facts))
	for i, f := range facts {
		points[i].X = f.Volume.InexactFloat64()
		points[i].Y = f.Revenue.InexactFloat64()
		labels[i] = f.Month.String()
	}

	p := newPlot("03 – Revenue vs Transaction Volume", "Объем", "Выручка")
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle.Color = plotutil.Color(1)
	scatter.GlyphStyle.Radius = vg.Points(4)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)

	monthLabels, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: labels})
	if err != nil {
		return nil, err
	}
	p.Add(monthLabels)
	p.X.Tick.Marker = compactTicks{}
	p.Y.Tick.Marker = compactTicks{}
	return p, nil
}

// acquisitionChart новые и вернувшиеся клиенты по месяцам (столбцы друг на друге)
func acquisitionChart(facts []models.MonthlyFact) (*plot.Plot, error) {
	if len(facts) == 0 {
		return nil, errNoChartData
	}

	newValues := make(plotter.Values, len(facts))
	returning := make(plotter.Values, len(facts))
	for i, f := range facts {
		newValues[i] = float64(f.NewCustomers)
		returning[i] = float64(f.ReturningCustomers)
	}

	p := newPlot("04 – Growth Quality: Acquisition vs Retention", "Месяц", "Клиенты")
	width := barWidth(len(facts))
	newBars, err := plotter.NewBarChart(newValues, width)
	if err != nil {
		return nil, err
	}
	newBars.Color = plotutil.Color(0)
	newBars.LineStyle.Width = vg.Length(0)

	returningBars, err := plotter.NewBarChart(returning, width)
	if err != nil {
		return nil, err
	}
	returningBars.Color = plotutil.Color(2)
	returningBars.LineStyle.Width = vg.Length(0)
	returningBars.StackOn(newBars)

	p.Add(newBars, returningBars)
	p.Legend.Add("Новые", newBars)
	p.Legend.Add("Вернувшиеся", returningBars)
	p.Legend.Top = true
	p.X.Tick.Marker = monthTicks(monthsOf(facts))
	p.Y.Tick.Marker = compactTicks{}
	return p, nil
}

// retentionGrid матрица удержания для тепловой карты: X - возраст, Y - когорта.
// Ячейки за горизонтом когорты - NaN.
type retentionGrid struct {
	m      *models.CohortMatrix
	maxAge int
}

func (g retentionGrid) Dims() (c, r int) { return g.maxAge + 1, len(g.m.Rows) }
func (g retentionGrid) X(c int) float64  { return float64(c) }
func (g retentionGrid) Y(r int) float64  { return float64(r) }
func (g retentionGrid) Min() float64     { return 0 }
func (g retentionGrid) Max() float64     { return 100 }

func (g retentionGrid) Z(c, r int) float64 {
	cells := g.m.Rows[r].Cells
	if c >= len(cells) {
		return math.NaN()
	}
	return cells[c].RetentionPct
}

func retentionHeatmap(m *models.CohortMatrix) (*plot.Plot, error) {
	if m == nil || len(m.Rows) == 0 {
		return nil, errNoChartData
	}

	grid := retentionGrid{m: m, maxAge: m.MaxAge()}
	heatmap := plotter.NewHeatMap(grid, palette.Heat(20, 1))
	heatmap.Min, heatmap.Max = 0, 100
	heatmap.NaN = color.White

	cohorts := make([]models.YearMonth, len(m.Rows))
	for i, row := range m.Rows {
		cohorts[i] = row.Cohort
	}

	p := newPlot("05 – Customer Retention by Acquisition Period (%)", "Возраст когорты, мес.", "Когорта")
	p.Add(heatmap)
	p.Y.Tick.Marker = monthTicks(cohorts)
	return p, nil
}

func segmentationChart(s *models.SegmentationSummary) (*plot.Plot, error) {
	if s == nil {
		return nil, errNoChartData
	}

	values := make(plotter.Values, len(models.CustomerSegments))
	names := make([]string, len(models.CustomerSegments))
	for i, segment := range models.CustomerSegments {
		values[i] = float64(s.Counts[segment])
		names[i] = string(segment)
	}

	p := newPlot("06 – Customer Value and Usage Segmentation", "Сегмент", "Клиенты")
	bars, err := plotter.NewBarChart(values, vg.Points(60))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(3)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func paretoChart(c *models.ConcentrationSummary) (*plot.Plot, error) {
	if c == nil || len(c.Curve) == 0 {
		return nil, errNoChartData
	}

	points := make(plotter.XYs, 0, len(c.Curve)+1)
	points = append(points, plotter.XY{})
	for _, pt := range c.Curve {
		points = append(points, plotter.XY{X: pt.CustomerPct, Y: pt.CumulativeShare})
	}

	p := newPlot("07 – Revenue Concentration (Pareto Curve)", "Клиенты, %", "Накопленная выручка, %")
	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, err
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(2)

	threshold := plotter.NewFunction(func(float64) float64 { return 80 })
	threshold.Color = plotutil.Color(1)
	threshold.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(line, threshold)
	p.Legend.Add("Pareto", line)
	p.Legend.Add(fmt.Sprintf("80%% выручки: %d клиентов (%.1f%%)", c.Top80Rank, c.Top80CustomerPct), threshold)
	p.Legend.Top = true
	p.Legend.Left = true
	p.X.Min, p.X.Max = 0, 100
	p.Y.Min, p.Y.Max = 0, 100
	return p, nil
}

func observedValueChart(v *models.ObservedValueSummary) (*plot.Plot, error) {
	if v == nil || len(v.Values) == 0 {
		return nil, errNoChartData
	}

	p := newPlot("08 – Observed Customer Value (Observed LTV Distribution)", "Ценность клиента", "Клиенты")
	hist, err := plotter.NewHist(plotter.Values(v.Values), 30)
	if err != nil {
		return nil, err
	}
	hist.FillColor = plotutil.Color(2)
	p.Add(hist)
	p.X.Tick.Marker = compactTicks{}
	return p, nil
}

// cohortValueChart накопленная ценность на клиента по возрасту для каждой когорты
func cohortValueChart(m *models.CohortMatrix) (*plot.Plot, error) {
	if m == nil || len(m.Rows) == 0 {
		return nil, errNoChartData
	}

	p := newPlot("09 – Customer Value Quality by Acquisition Period", "Возраст когорты, мес.", "Накопленная ценность на клиента")
	for i, row := range m.Rows {
		points := make(plotter.XYs, len(row.Cells))
		for age, cell := range row.Cells {
			points[age] = plotter.XY{X: float64(age), Y: cell.CumulativeValuePerCustomer}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(row.Cohort.String(), line)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Y.Tick.Marker = compactTicks{}
	return p, nil
}

// marketShareChart доля каждого банка по месяцам, %
func marketShareChart(facts []models.MarketShareFact) (*plot.Plot, error) {
	if len(facts) == 0 {
		return nil, errNoChartData
	}

	var (
		months []models.YearMonth
		banks  []string
	)
	monthIndex := make(map[models.YearMonth]int)
	series := make(map[string]plotter.XYs)
	for _, f := range facts {
		idx, ok := monthIndex[f.Month]
		if !ok {
			idx = len(months)
			monthIndex[f.Month] = idx
			months = append(months, f.Month)
		}
		if _, ok := series[f.Bank]; !ok {
			banks = append(banks, f.Bank)
		}
		series[f.Bank] = append(series[f.Bank], plotter.XY{X: float64(idx), Y: f.Share * 100})
	}

	p := newPlot("10 – Bank Market Share Dynamics (Monthly Volume Share)", "Месяц", "Доля, %")
	for i, bank := range banks {
		line, err := plotter.NewLine(series[bank])
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(bank, line)
	}
	p.Legend.Top = true
	p.X.Tick.Marker = monthTicks(months)
	p.Y.Min, p.Y.Max = 0, 100
	return p, nil
}

func engagementChart(e *models.EngagementSummary) (*plot.Plot, error) {
	if e == nil || len(e.Segments) == 0 {
		return nil, errNoChartData
	}

	values := make(plotter.Values, len(e.Segments))
	names := make([]string, len(e.Segments))
	for i, s := range e.Segments {
		values[i] = s.Share * 100
		names[i] = s.Label
	}

	title := fmt.Sprintf("11 – Current Customer Engagement Health (As of %s)", e.SnapshotMonth)
	p := newPlot(title, "Сегмент", "Клиенты, %")
	bars, err := plotter.NewBarChart(values, vg.Points(60))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(4)
	p.Add(bars)
	p.NominalX(names...)
	p.Y.Min, p.Y.Max = 0, 100
	return p, nil
}

// forecastChart фактический ряд, линия тренда с прогнозом и доверительный интервал
func forecastChart(facts []models.MonthlyFact, f linear_regression.MetricForecast) (*plot.Plot, error) {
	actual, err := linear_regression.SeriesFromMonthlyFacts(facts, f.Result.Metric)
	if err != nil {
		return nil, err
	}
	if len(actual) == 0 || len(f.Forecasts) == 0 {
		return nil, errNoChartData
	}

	months := monthsOf(facts)
	actualXY := make(plotter.XYs, len(actual))
	for i, pt := range actual {
		actualXY[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}

	n := len(actual)
	forecastXY := make(plotter.XYs, 0, len(f.Forecasts)+1)
	lowerXY := make(plotter.XYs, 0, len(f.Forecasts))
	upperXY := make(plotter.XYs, 0, len(f.Forecasts))
	// Прогноз продолжает последнюю фактическую точку
	forecastXY = append(forecastXY, actualXY[n-1])
	for i, fp := range f.Forecasts {
		x := float64(n + i)
		forecastXY = append(forecastXY, plotter.XY{X: x, Y: fp.ForecastValue})
		lowerXY = append(lowerXY, plotter.XY{X: x, Y: fp.CILower})
		upperXY = append(upperXY, plotter.XY{X: x, Y: fp.CIUpper})
		months = append(months, fp.Month)
	}

	title := fmt.Sprintf("12 – Monthly Forecasting for %s (R² = %.3f)", f.Result.Metric, f.Result.R2)
	p := newPlot(title, "Месяц", string(f.Result.Metric))

	actualLine, actualPoints, err := plotter.NewLinePoints(actualXY)
	if err != nil {
		return nil, err
	}
	actualLine.Color = plotutil.Color(0)
	actualPoints.Color = plotutil.Color(0)

	forecastLine, err := plotter.NewLine(forecastXY)
	if err != nil {
		return nil, err
	}
	forecastLine.Color = plotutil.Color(1)
	forecastLine.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}

	lowerLine, err := plotter.NewLine(lowerXY)
	if err != nil {
		return nil, err
	}
	upperLine, err := plotter.NewLine(upperXY)
	if err != nil {
		return nil, err
	}
	for _, l := range []*plotter.Line{lowerLine, upperLine} {
		l.Color = color.Gray{Y: 150}
		l.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	}

	p.Add(actualLine, actualPoints, forecastLine, lowerLine, upperLine)
	p.Legend.Add("Факт", actualLine, actualPoints)
	p.Legend.Add("Прогноз", forecastLine)
	p.Legend.Add("Доверительный интервал", lowerLine)
	p.Legend.Top = true
	p.Legend.Left = true
	p.X.Tick.Marker = monthTicks(months)
	if f.Result.Metric != linear_regression.MetricActiveCustomers {
		p.Y.Tick.Marker = compactTicks{}
	}
	return p, nil
}
