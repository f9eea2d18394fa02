// Package features builds daily feature rows from permit activity and contextual signals.
package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/platform/logger"
)

// Engineer builds FeatureRows for a region.
type Engineer struct {
	activity ports.ActivitySource
	signals  ports.ContextSource
	store    ports.FeatureStore
	log      *logger.Logger
}

// New creates an Engineer. contextSource and store are optional.
func New(activity ports.ActivitySource, contextSource ports.ContextSource, store ports.FeatureStore, log *logger.Logger) *Engineer {
	if log == nil {
		log = logger.Nop()
	}
	return &Engineer{activity: activity, signals: contextSource, store: store, log: log}
}

// BuildFeatures returns one row per day in [start, end]. Weekly permit features
// are computed over the whole weeks touching the range plus historyWeeks of
// lead-in, then broadcast to each day. Only rows inside the range are stored.
func (e *Engineer) BuildFeatures(ctx context.Context, regionID string, start, end time.Time) ([]domain.FeatureRow, error) {
	first, last := domain.DateOnly(start), domain.DateOnly(end)
	if start.IsZero() || end.IsZero() || last.Before(first) {
		return []domain.FeatureRow{}, nil
	}

	weekFrom := domain.WeekStart(first).AddDate(0, 0, -7*historyWeeks)
	weekTo := domain.WeekStart(last).AddDate(0, 0, 6)
	daily, err := e.activity.GetDailyCounts(ctx, regionID, weekFrom, weekTo)
	if err != nil {
		return nil, fmt.Errorf("load daily activity for %s: %w", regionID, err)
	}

	weeks, counts := weeklyTotals(daily, weekFrom, weekTo)
	stats := deriveWeekly(counts)

	rows := make([]domain.FeatureRow, 0, int(last.Sub(first).Hours()/24)+1)
	weekIdx := make(map[time.Time]int, len(weeks))
	for i, ws := range weeks {
		weekIdx[ws] = i
	}
	weekSignals := make(map[time.Time]ports.ContextSignals, len(weeks))

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		row := domain.NewFeatureRow(regionID, day)
		i := weekIdx[row.WeekStart]
		applyWeekly(&row, stats[i])
		applyCalendar(&row, day)

		sig, ok := weekSignals[row.WeekStart]
		if !ok {
			sig, err = e.contextSignals(ctx, regionID, row.WeekStart)
			if err != nil {
				return nil, err
			}
			weekSignals[row.WeekStart] = sig
		}
		applyContext(&row, sig)

		row.Sanitize()
		rows = append(rows, row)
	}

	if e.store != nil && len(rows) > 0 {
		if err := e.store.UpsertFeatures(ctx, regionID, rows); err != nil {
			return nil, fmt.Errorf("upsert features for %s: %w", regionID, err)
		}
	}

	e.log.Info("features built", "regionId", regionID, "rows", len(rows), "weeks", len(weeks))
	return rows, nil
}

func (e *Engineer) contextSignals(ctx context.Context, regionID string, weekStart time.Time) (ports.ContextSignals, error) {
	if e.signals == nil {
		return nil, nil
	}
	sig, err := e.signals.GetContextSignals(ctx, regionID, weekStart)
	if errors.Is(err, domain.ErrContextUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load context signals for %s: %w", regionID, err)
	}
	return sig, nil
}

// weeklyTotals sums daily counts into Monday-aligned weeks between from and to.
// Days missing from daily count as zero.
func weeklyTotals(daily []domain.DailyCount, from, to time.Time) ([]time.Time, []float64) {
	var weeks []time.Time
	for ws := from; !ws.After(to); ws = ws.AddDate(0, 0, 7) {
		weeks = append(weeks, ws)
	}
	counts := make([]float64, len(weeks))
	for _, d := range daily {
		day := domain.DateOnly(d.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		counts[int(day.Sub(from).Hours()/24)/7] += float64(d.Count)
	}
	return weeks, counts
}

func applyWeekly(row *domain.FeatureRow, s weeklyStats) {
	row.PermitsLag1w = s.lags[1]
	row.PermitsLag2w = s.lags[2]
	row.PermitsLag4w = s.lags[4]
	row.PermitsLag8w = s.lags[8]
	row.PermitsLag12w = s.lags[12]
	row.PermitsMA4w = s.means[4]
	row.PermitsMA12w = s.means[12]
	row.PermitsMA26w = s.means[26]
	row.PermitsTrend4w = s.trends[4]
	row.PermitsTrend12w = s.trends[12]
	row.PermitsSeasonalIndex = s.seasonal
}

// contextColumns are the columns a ContextSource may supply.
var contextColumns = []string{
	"active_contractors", "new_contractors_30d", "contractor_density", "avg_project_value",
	"inspection_backlog_days", "population_density", "business_count", "housing_units",
	"median_household_income", "construction_employment_pct", "economic_index",
	"weather_severe_days", "weather_freeze_week",
}

// applyContext copies known signals onto the row. Columns without a signal keep
// the fill value NewFeatureRow assigned them.
func applyContext(row *domain.FeatureRow, sig ports.ContextSignals) {
	for _, name := range contextColumns {
		v, ok := sig[name]
		if !ok {
			continue
		}
		if col, found := domain.LookupColumn(name); found {
			col.Set(row, v)
		}
	}
}
