package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
)

type countingStore struct {
	latest map[string]domain.ForecastPrediction
	reads  int
}

func (s *countingStore) UpsertLatest(_ context.Context, p domain.ForecastPrediction) error {
	cur, ok := s.latest[p.RegionID]
	if !ok || !p.TargetWeekStart.Before(cur.TargetWeekStart) {
		s.latest[p.RegionID] = p
	}
	return nil
}

func (s *countingStore) GetLatest(_ context.Context, regionID string) (*domain.ForecastPrediction, error) {
	s.reads++
	p, ok := s.latest[regionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *countingStore) GetByWeek(context.Context, string, time.Time) (*domain.ForecastPrediction, error) {
	return nil, nil
}

func newCache(t *testing.T) (*ForecastCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := &countingStore{latest: map[string]domain.ForecastPrediction{}}
	return New(store, rdb, time.Hour, nil), store, mr
}

func forecast(region string, week time.Time, p float64) domain.ForecastPrediction {
	return domain.ForecastPrediction{RegionID: region, TargetWeekStart: week, TargetWeekEnd: week.AddDate(0, 0, 6), PSurge: p}
}

func TestGetLatestReadThrough(t *testing.T) {
	c, store, mr := newCache(t)
	ctx := context.Background()
	week := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	store.latest["tx-harris"] = forecast("tx-harris", week, 0.42)

	first, err := c.GetLatest(ctx, "tx-harris")
	if err != nil || first == nil || first.PSurge != 0.42 {
		t.Fatalf("expected 0.42 from store, got %+v, %v", first, err)
	}
	if !mr.Exists(keyPrefix + "tx-harris") {
		t.Fatalf("expected forecast cached after miss")
	}

	second, err := c.GetLatest(ctx, "tx-harris")
	if err != nil || second.PSurge != 0.42 {
		t.Fatalf("expected cached 0.42, got %+v, %v", second, err)
	}
	if store.reads != 1 {
		t.Fatalf("expected one store read, got %d", store.reads)
	}
	if ttl := mr.TTL(keyPrefix + "tx-harris"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}
}

func TestGetLatestMissingRegion(t *testing.T) {
	c, _, _ := newCache(t)
	p, err := c.GetLatest(context.Background(), "nowhere")
	if err != nil || p != nil {
		t.Fatalf("expected nil forecast, got %+v, %v", p, err)
	}
}

func TestUpsertKeepsNewestWeekCached(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()
	newer := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	if err := c.UpsertLatest(ctx, forecast("tx-harris", newer, 0.7)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := c.UpsertLatest(ctx, forecast("tx-harris", newer.AddDate(0, 0, -7), 0.1)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	p, _ := c.GetLatest(ctx, "tx-harris")
	if p.PSurge != 0.7 {
		t.Fatalf("expected newest week 0.7 to stay cached, got %v", p.PSurge)
	}
}

func TestForecastGeneratedRefreshesCache(t *testing.T) {
	c, store, mr := newCache(t)
	bus := events.NewInMemoryBus(nil)
	c.Subscribe(bus)

	week := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	store.latest["ca-la"] = forecast("ca-la", week, 0.9)
	bus.Publish(context.Background(), events.ForecastGenerated{BaseEvent: events.NewBaseEvent(), RegionID: "ca-la", TargetWeekStart: week})
	bus.Wait()

	if !mr.Exists(keyPrefix + "ca-la") {
		t.Fatalf("expected cache refreshed by event")
	}
}
