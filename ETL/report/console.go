package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
	"github.com/olekukonko/tablewriter"
)

// ConsoleReporter печатает отчеты запуска в виде таблиц
type ConsoleReporter struct {
	w io.Writer
}

// NewConsoleReporter создает новый экземпляр ConsoleReporter
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

// Render печатает все доступные таблицы
func (r *ConsoleReporter) Render(b Bundle) {
	r.printSummary(BuildSummary(b))
	r.printMonthly(b.Data.Monthly)
	if b.Data.Cohorts != nil {
		r.printRetention(b.Data.Cohorts)
	}
	r.printCohortValue(b.Data.CohortValue)
	r.printMarketShare(b.Data.MarketShare)
	if b.Data.Segmentation != nil {
		r.printSegmentation(b.Data.Segmentation)
	}
	if b.Data.Concentration != nil {
		r.printConcentration(b.Data.Concentration)
	}
	if b.Data.ObservedValue != nil {
		r.printObservedValue(b.Data.ObservedValue)
	}
	if b.Data.Engagement != nil {
		r.printEngagement(b.Data.Engagement)
	}
	if len(b.Forecasts) > 0 {
		r.PrintForecasts(b.Forecasts)
	}
	for _, w := range b.Data.Metadata.Warnings {
		fmt.Fprintf(r.w, "⚠️  %s\n", w)
	}
}

func (r *ConsoleReporter) title(text string) {
	fmt.Fprintf(r.w, "\n%s\n", text)
}

func (r *ConsoleReporter) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(r.w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	return table
}

func (r *ConsoleReporter) printSummary(s Summary) {
	r.title("Сводка запуска " + s.RunID)
	table := r.newTable("Показатель", "Значение")
	table.Append([]string{"Период", fmt.Sprintf("%s … %s", s.FirstMonth, s.LastMonth)})
	table.Append([]string{"Транзакций", utils.FormatInt(int64(s.TransactionsProcessed))})
	table.Append([]string{"Клиентов", utils.FormatInt(int64(s.CustomersProcessed))})
	table.Append([]string{"Объем", utils.FormatNumber(s.TotalVolume, 0)})
	table.Append([]string{"Выручка", utils.FormatNumber(s.TotalRevenue, 0)})
	table.Append([]string{"Когорт", strconv.Itoa(s.Cohorts)})
	table.Append([]string{"Банков", strconv.Itoa(s.Banks)})
	if s.Cleaning != nil {
		table.Append([]string{"Строк прочитано", utils.FormatInt(int64(s.Cleaning.RowsRead))})
		table.Append([]string{"Строк отброшено", utils.FormatInt(int64(s.Cleaning.Dropped()))})
	}
	table.Render()
}

func (r *ConsoleReporter) printMonthly(facts []models.MonthlyFact) {
	r.title("01–04. Месячные показатели")
	table := r.newTable("Месяц", "Объем", "Выручка", "Транзакции", "Активные", "Новые", "Вернувшиеся", "Рост MoM")
	for _, f := range facts {
		growth := "n/a"
		if f.MoMGrowthPct != nil {
			growth = utils.FormatPercent(*f.MoMGrowthPct)
		}
		table.Append([]string{
			f.Month.String(),
			utils.FormatNumber(f.Volume.InexactFloat64(), 0),
			utils.FormatNumber(f.Revenue.InexactFloat64(), 0),
			utils.FormatInt(int64(f.Transactions)),
			utils.FormatInt(int64(f.ActiveCustomers)),
			utils.FormatInt(int64(f.NewCustomers)),
			utils.FormatInt(int64(f.ReturningCustomers)),
			growth,
		})
	}
	table.Render()
}

// printRetention печатает матрицу удержания; ячейки за горизонтом когорты пустые
func (r *ConsoleReporter) printRetention(m *models.CohortMatrix) {
	r.title("05. Удержание по когортам (%)")
	maxAge := m.MaxAge()
	header := []string{"Когорта", "Размер"}
	for age := 0; age <= maxAge; age++ {
		header = append(header, "M"+strconv.Itoa(age))
	}
	table := r.newTable(header...)
	for _, row := range m.Rows {
		line := []string{row.Cohort.String(), strconv.Itoa(row.Size)}
		for age := 0; age <= maxAge; age++ {
			if age < len(row.Cells) {
				line = append(line, fmt.Sprintf("%.1f", row.Cells[age].RetentionPct))
			} else {
				line = append(line, "")
			}
		}
		table.Append(line)
	}
	table.Render()
}

func (r *ConsoleReporter) printCohortValue(snapshots []models.CohortValueSnapshot) {
	if len(snapshots) == 0 {
		return
	}
	r.title("09. Ценность клиента по когортам")
	table := r.newTable("Когорта", "Размер", "Месяцев", "Ценность на клиента")
	for _, s := range snapshots {
		table.Append([]string{
			s.Cohort.String(),
			strconv.Itoa(s.CohortSize),
			strconv.Itoa(s.MonthsObserved),
			utils.FormatNumber(s.ValuePerCustomer, 2),
		})
	}
	table.Render()
}

// printMarketShare печатает доли банков за последний месяц
func (r *ConsoleReporter) printMarketShare(facts []models.MarketShareFact) {
	if len(facts) == 0 {
		return
	}
	last := facts[0].Month
	for _, f := range facts {
		if f.Month > last {
			last = f.Month
		}
	}

	r.title("10. Доли банков за " + last.String())
	table := r.newTable("Банк", "Объем", "Доля")
	for _, f := range facts {
		if f.Month != last {
			continue
		}
		table.Append([]string{f.Bank, utils.FormatNumber(f.Volume.InexactFloat64(), 0), utils.FormatPercent(f.Share * 100)})
	}
	table.Render()
}

func (r *ConsoleReporter) printSegmentation(s *models.SegmentationSummary) {
	r.title(fmt.Sprintf("06. Сегменты клиентов (P20=%s, P80=%s, P95=%s)",
		utils.FormatNumber(s.P20, 0), utils.FormatNumber(s.P80, 0), utils.FormatNumber(s.P95, 0)))
	table := r.newTable("Сегмент", "Клиентов")
	for _, segment := range models.CustomerSegments {
		table.Append([]string{string(segment), utils.FormatInt(int64(s.Counts[segment]))})
	}
	table.Render()
}

func (r *ConsoleReporter) printConcentration(c *models.ConcentrationSummary) {
	r.title("07. Концентрация выручки")
	table := r.newTable("Показатель", "Значение")
	table.Append([]string{"Клиентов с выручкой", utils.FormatInt(int64(c.Customers))})
	table.Append([]string{"Клиентов на 80% выручки", fmt.Sprintf("%d (%s)", c.Top80Rank, utils.FormatPercent(c.Top80CustomerPct))})
	table.Append([]string{"Доля топ-5% клиентов", utils.FormatPercent(c.Top5Share)})
	table.Append([]string{"Доля топ-1% клиентов", utils.FormatPercent(c.Top1Share)})
	table.Render()
}

func (r *ConsoleReporter) printObservedValue(v *models.ObservedValueSummary) {
	r.title("08. Наблюдаемая ценность клиентов")
	table := r.newTable("Среднее", "Медиана", "P90", "P95", "P99")
	table.Append([]string{
		utils.FormatNumber(v.Mean, 2),
		utils.FormatNumber(v.Median, 2),
		utils.FormatNumber(v.P90, 2),
		utils.FormatNumber(v.P95, 2),
		utils.FormatNumber(v.P99, 2),
	})
	table.Render()

	if len(v.Top) == 0 {
		return
	}
	top := r.newTable("#", "Клиент", "Ценность", "Транзакций")
	for i, c := range v.Top {
		top.Append([]string{
			strconv.Itoa(i + 1),
			c.CustomerID,
			utils.FormatNumber(c.ObservedLTV.InexactFloat64(), 2),
			strconv.Itoa(c.TransactionCount),
		})
	}
	top.Render()
}

func (r *ConsoleReporter) printEngagement(e *models.EngagementSummary) {
	r.title(fmt.Sprintf("11. Вовлеченность клиентов на %s", e.SnapshotDate.Format("2006-01-02")))
	table := r.newTable("Сегмент", "Клиентов", "Доля")
	for _, s := range e.Segments {
		table.Append([]string{s.Label, utils.FormatInt(int64(s.Customers)), utils.FormatPercent(s.Share * 100)})
	}
	table.SetFooter([]string{"Активны за 7/30 дней",
		utils.FormatPercent(e.Active7dRate * 100), utils.FormatPercent(e.Active30dRate * 100)})
	table.Render()
}
