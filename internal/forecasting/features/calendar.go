package features

import (
	"math"
	"time"

	"leadgen_backend/internal/forecasting/domain"
)

// applyCalendar sets the per-day calendar and cyclical encodings.
func applyCalendar(row *domain.FeatureRow, day time.Time) {
	dow := float64((int(day.Weekday()) + 6) % 7)
	month := float64(day.Month())

	row.DayOfWeek = dow
	row.DayOfWeekSin = math.Sin(2 * math.Pi * dow / 7)
	row.DayOfWeekCos = math.Cos(2 * math.Pi * dow / 7)
	row.DayOfMonth = float64(day.Day())
	row.Month = month
	row.MonthSin = math.Sin(2 * math.Pi * month / 12)
	row.MonthCos = math.Cos(2 * math.Pi * month / 12)
	row.Quarter = float64((int(day.Month())-1)/3 + 1)
}
