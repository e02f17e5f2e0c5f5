package report

import (
	"gonum.org/v1/plot"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
	"github.com/LilVoxy/ledger_analytics/ETL/utils"
)

// compactTicks подписывает ось значениями вида 1.5K, 2M
type compactTicks struct{}

func (compactTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = utils.FormatCompact(ticks[i].Value)
		}
	}
	return ticks
}

// monthTicks подписывает ось с порядковыми номерами месяцев (0, 1, ...) метками "2024-01".
// Подписей не больше 12, остальные деления без текста.
type monthTicks []models.YearMonth

func (m monthTicks) Ticks(_, _ float64) []plot.Tick {
	step := 1
	if len(m) > 12 {
		step = (len(m) + 11) / 12
	}

	ticks := make([]plot.Tick, 0, len(m))
	for i, month := range m {
		tick := plot.Tick{Value: float64(i)}
		if i%step == 0 {
			tick.Label = month.String()
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
