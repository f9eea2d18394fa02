package service

import (
	"context"
	"testing"
	"time"

	"leadgen_backend/internal/demographics/client"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/internal/regions"
)

type fakeSource struct {
	calls   int
	profile *client.CountyProfile
}

func (f *fakeSource) GetCountyProfile(context.Context, string) (*client.CountyProfile, error) {
	f.calls++
	return f.profile, nil
}

type memSignals map[string]ports.ContextSignals

func key(region string, week time.Time) string {
	return region + "/" + domain.WeekStart(week).Format(time.DateOnly)
}

func (m memSignals) GetContextSignals(_ context.Context, regionID string, week time.Time) (ports.ContextSignals, error) {
	sig, ok := m[key(regionID, week)]
	if !ok {
		return nil, domain.ErrContextUnavailable
	}
	return sig, nil
}

func (m memSignals) UpsertContextSignals(_ context.Context, regionID string, week time.Time, sig ports.ContextSignals) error {
	m[key(regionID, week)] = sig
	return nil
}

func f64(v float64) *float64 { return &v }

func newService(t *testing.T, src ProfileSource, store SignalStore) *Service {
	t.Helper()
	reg, err := regions.New([]regions.Region{
		{ID: "tx-harris", CountyFIPS: "48201", LandAreaSqMi: 1000},
		{ID: "ca-la"},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := New(src, store, reg, nil)
	s.now = func() time.Time { return time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestRefreshRegionMergesIntoExistingWeeks(t *testing.T) {
	src := &fakeSource{profile: &client.CountyProfile{
		Population:            f64(500000),
		HousingUnits:          f64(200000),
		MedianHouseholdIncome: f64(70000),
	}}
	store := memSignals{}
	thisWeek := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	store[key("tx-harris", thisWeek)] = ports.ContextSignals{"active_contractors": 42}

	s := newService(t, src, store)
	res, err := s.RefreshRegion(context.Background(), "tx-harris", 3)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if res.Weeks != 3 || len(store) != 3 {
		t.Fatalf("expected 3 weeks written, got %d (%d stored)", res.Weeks, len(store))
	}
	got := store[key("tx-harris", thisWeek)]
	if got["active_contractors"] != 42 {
		t.Fatalf("existing signals must be kept, got %v", got)
	}
	if got["population_density"] != 500 || got["housing_units"] != 200000 {
		t.Fatalf("unexpected demographic signals %v", got)
	}
	if _, ok := got["construction_employment_pct"]; ok {
		t.Fatalf("missing estimates must not be written")
	}

	if _, err := s.RefreshRegion(context.Background(), "tx-harris", 1); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("expected cached profile, got %d source calls", src.calls)
	}
}

func TestRefreshRegionRequiresFIPS(t *testing.T) {
	s := newService(t, &fakeSource{}, memSignals{})
	if _, err := s.RefreshRegion(context.Background(), "ca-la", 1); err == nil {
		t.Fatalf("expected error for region without county_fips")
	}
	if _, err := s.RefreshRegion(context.Background(), "nowhere", 1); err == nil {
		t.Fatalf("expected error for unknown region")
	}
}

func TestSignalsSkipDensityWithoutArea(t *testing.T) {
	sig := Signals(&client.CountyProfile{Population: f64(1000)}, 0)
	if _, ok := sig["population_density"]; ok {
		t.Fatalf("density requires land area")
	}
}
