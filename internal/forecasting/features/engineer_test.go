package features

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
)

type fakeActivity struct {
	perDay func(day time.Time) int
}

func (f fakeActivity) GetDailyCounts(_ context.Context, _ string, start, end time.Time) ([]domain.DailyCount, error) {
	var out []domain.DailyCount
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		c := 0
		if f.perDay != nil {
			c = f.perDay(d)
		}
		out = append(out, domain.DailyCount{Date: d, Count: c})
	}
	return out, nil
}

func (fakeActivity) GetWeeklyCounts(context.Context, string, time.Time, time.Time) ([]domain.WeeklyCounts, error) {
	return nil, nil
}

type fakeContext struct {
	signals ports.ContextSignals
	err     error
}

func (f fakeContext) GetContextSignals(context.Context, string, time.Time) (ports.ContextSignals, error) {
	return f.signals, f.err
}

type fakeFeatureStore struct {
	rows []domain.FeatureRow
}

func (s *fakeFeatureStore) UpsertFeatures(_ context.Context, _ string, rows []domain.FeatureRow) error {
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *fakeFeatureStore) GetLatestFeatures(context.Context, string, time.Time, int) (*domain.FeatureRow, error) {
	return nil, nil
}

var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func TestBuildFeaturesZeroActivityIsComplete(t *testing.T) {
	store := &fakeFeatureStore{}
	eng := New(fakeActivity{}, nil, store, nil)

	rows, err := eng.BuildFeatures(context.Background(), "tx-harris", monday, monday.AddDate(0, 0, 59))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 60 {
		t.Fatalf("expected 60 daily rows, got %d", len(rows))
	}
	if len(store.rows) != 60 {
		t.Fatalf("expected 60 upserted rows, got %d", len(store.rows))
	}

	cols := domain.ModelFeatureColumns()
	for _, row := range rows {
		if v, ok := row.Value("permits_lag_1w"); !ok || v != 0 {
			t.Fatalf("expected permits_lag_1w present and 0, got %v (present=%v)", v, ok)
		}
		if row.PermitsSeasonalIndex != 1.0 {
			t.Fatalf("expected seasonal index 1.0 without history, got %v", row.PermitsSeasonalIndex)
		}
		vec, err := row.Vector(cols)
		if err != nil {
			t.Fatalf("vector failed: %v", err)
		}
		for i, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("column %s is not finite on %s", cols[i], row.FeatureDate.Format(time.DateOnly))
			}
		}
	}
}

func TestBuildFeaturesWeeklyValuesBroadcastToDays(t *testing.T) {
	// Week n has n+1 permits on its Monday only; nothing before the first week.
	eng := New(fakeActivity{perDay: func(d time.Time) int {
		if d.Before(monday) || d.Weekday() != time.Monday {
			return 0
		}
		return int(d.Sub(monday).Hours()/24)/7 + 1
	}}, nil, nil, nil)

	rows, err := eng.BuildFeatures(context.Background(), "tx-harris", monday, monday.AddDate(0, 0, 7*6-1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Week index 5 (counts 1..6): lag 1 = 5, lag 4 = 2, lag 8 before history = 0.
	week5 := rows[35:42]
	for _, row := range week5 {
		if row.PermitsLag1w != 5 || row.PermitsLag4w != 2 || row.PermitsLag8w != 0 {
			t.Fatalf("unexpected lags on %s: %v %v %v", row.FeatureDate.Format(time.DateOnly), row.PermitsLag1w, row.PermitsLag4w, row.PermitsLag8w)
		}
		if row.PermitsMA4w != 4.5 {
			t.Fatalf("expected 4-week mean 4.5, got %v", row.PermitsMA4w)
		}
		if math.Abs(row.PermitsTrend4w-1) > 1e-9 {
			t.Fatalf("expected 4-week trend slope 1, got %v", row.PermitsTrend4w)
		}
		// 12-week window spans six empty lead-in weeks then 1..6.
		if row.PermitsMA12w != 1.75 {
			t.Fatalf("expected 12-week mean 1.75 over zero-filled history, got %v", row.PermitsMA12w)
		}
		if math.Abs(row.PermitsTrend12w-80.5/143) > 1e-9 {
			t.Fatalf("expected 12-week trend %v, got %v", 80.5/143, row.PermitsTrend12w)
		}
	}
	if rows[35].DayOfWeek != 0 || rows[41].DayOfWeek != 6 {
		t.Fatalf("expected Monday=0 .. Sunday=6, got %v and %v", rows[35].DayOfWeek, rows[41].DayOfWeek)
	}
	if rows[0].Quarter != 1 || rows[0].Month != 1 {
		t.Fatalf("expected January in quarter 1, got month %v quarter %v", rows[0].Month, rows[0].Quarter)
	}
}

func TestBuildFeaturesUsesHistoryBeforeRange(t *testing.T) {
	// Three permits every Monday, including the weeks before the range.
	store := &fakeFeatureStore{}
	eng := New(fakeActivity{perDay: func(d time.Time) int {
		if d.Weekday() != time.Monday {
			return 0
		}
		return 3
	}}, nil, store, nil)

	rows, err := eng.BuildFeatures(context.Background(), "tx-harris", monday, monday.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 7 || len(store.rows) != 7 {
		t.Fatalf("expected 7 rows built and stored, got %d and %d", len(rows), len(store.rows))
	}
	first := rows[0]
	if !first.FeatureDate.Equal(monday) {
		t.Fatalf("expected first row on %s, got %s", monday, first.FeatureDate)
	}
	if first.PermitsLag12w != 3 || first.PermitsMA26w != 3 {
		t.Fatalf("expected lag 12 and 26-week mean from history, got %v and %v", first.PermitsLag12w, first.PermitsMA26w)
	}
	if first.PermitsTrend12w != 0 {
		t.Fatalf("expected flat history to have zero trend, got %v", first.PermitsTrend12w)
	}
}

func TestBuildFeaturesSeasonalIndexWithFullYear(t *testing.T) {
	eng := New(fakeActivity{perDay: func(time.Time) int { return 2 }}, nil, nil, nil)

	rows, err := eng.BuildFeatures(context.Background(), "tx-harris", monday, monday.AddDate(0, 0, 7*60-1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Week 30 has 26 weeks on either side; flat activity gives an index of 1.
	mid := rows[30*7]
	if math.Abs(mid.PermitsSeasonalIndex-1) > 1e-9 {
		t.Fatalf("expected seasonal index 1 for flat activity, got %v", mid.PermitsSeasonalIndex)
	}
	if rows[30*7].PermitsMA26w != 14 {
		t.Fatalf("expected 26-week mean 14, got %v", rows[30*7].PermitsMA26w)
	}
}

func TestBuildFeaturesContextFillPolicy(t *testing.T) {
	src := fakeContext{signals: ports.ContextSignals{
		"active_contractors":  42,
		"weather_freeze_week": 1,
	}}
	eng := New(fakeActivity{}, src, nil, nil)

	rows, err := eng.BuildFeatures(context.Background(), "tx-harris", monday, monday.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := rows[0]
	if row.ActiveContractors != 42 || !row.WeatherFreezeWeek {
		t.Fatalf("expected supplied signals on row, got %+v", row)
	}
	if row.EconomicIndex != 1.0 || row.InspectionBacklogDays != 0 {
		t.Fatalf("expected fill values for missing signals, got economic=%v backlog=%v", row.EconomicIndex, row.InspectionBacklogDays)
	}

	unavailable := New(fakeActivity{}, fakeContext{err: domain.ErrContextUnavailable}, nil, nil)
	rows, err = unavailable.BuildFeatures(context.Background(), "tx-harris", monday, monday)
	if err != nil {
		t.Fatalf("unavailable context must not fail, got %v", err)
	}
	if rows[0].EconomicIndex != 1.0 || rows[0].WeatherFreezeWeek {
		t.Fatalf("expected fill values when context is unavailable")
	}

	broken := New(fakeActivity{}, fakeContext{err: errors.New("timeout")}, nil, nil)
	if _, err := broken.BuildFeatures(context.Background(), "tx-harris", monday, monday); err == nil {
		t.Fatalf("expected context failure to propagate")
	}
}

func TestBuildFeaturesInvalidRange(t *testing.T) {
	eng := New(fakeActivity{}, nil, nil, nil)
	rows, err := eng.BuildFeatures(context.Background(), "tx-harris", monday, monday.AddDate(0, 0, -1))
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty result, got %d rows err=%v", len(rows), err)
	}
}
