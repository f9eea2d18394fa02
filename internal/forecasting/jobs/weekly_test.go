package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/forecaster"
	"leadgen_backend/internal/forecasting/report"
)

var runNow = time.Date(2026, 10, 12, 4, 0, 0, 0, time.UTC)

type fakePredictor struct {
	mu    sync.Mutex
	p     map[string]float64
	block map[string]bool
	calls []string
}

func (f *fakePredictor) Predict(ctx context.Context, regionID string, targetDate time.Time, _ string) (*domain.ForecastPrediction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, regionID)
	f.mu.Unlock()
	if f.block[regionID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p, ok := f.p[regionID]
	if !ok {
		return nil, domain.ErrNoFeatures
	}
	week := domain.WeekStart(targetDate)
	return &domain.ForecastPrediction{RegionID: regionID, TargetWeekStart: week, TargetWeekEnd: week.AddDate(0, 0, 6), PSurge: p}, nil
}

type fakeTrainer struct {
	mu      sync.Mutex
	regions []string
}

func (f *fakeTrainer) Train(_ context.Context, regionID string, _ time.Time) (*forecaster.TrainingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions = append(f.regions, regionID)
	return &forecaster.TrainingResult{RegionID: regionID}, nil
}

type fakeFeatures struct {
	mu     sync.Mutex
	starts map[string]time.Time
}

func (f *fakeFeatures) BuildFeatures(_ context.Context, regionID string, start, _ time.Time) ([]domain.FeatureRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts[regionID] = start
	return nil, nil
}

type priorForecasts struct {
	byRegion map[string]float64
}

func (s priorForecasts) UpsertLatest(context.Context, domain.ForecastPrediction) error { return nil }

func (s priorForecasts) GetLatest(context.Context, string) (*domain.ForecastPrediction, error) {
	return nil, nil
}

func (s priorForecasts) GetByWeek(_ context.Context, regionID string, week time.Time) (*domain.ForecastPrediction, error) {
	p, ok := s.byRegion[regionID]
	if !ok {
		return nil, nil
	}
	return &domain.ForecastPrediction{RegionID: regionID, TargetWeekStart: week, PSurge: p}, nil
}

type memReports struct {
	saved map[string][]byte
}

func (m *memReports) SaveReport(_ context.Context, name string, payload []byte) error {
	m.saved[name] = payload
	return nil
}

func regions(ids ...string) func() []string { return func() []string { return ids } }

func TestRunCollectsFailuresAndBuildsReport(t *testing.T) {
	predictor := &fakePredictor{p: map[string]float64{"ca-la": 0.8, "tx-harris": 0.3}}
	reports := &memReports{saved: map[string][]byte{}}
	job := NewWeeklyInferenceJob(Deps{
		Regions:   regions("tx-harris", "fl-dade", "ca-la"),
		Predictor: predictor,
		Features:  &fakeFeatures{starts: map[string]time.Time{}},
		Forecasts: priorForecasts{byRegion: map[string]float64{"ca-la": 0.4, "tx-harris": 0.5}},
		Reports:   reports,
		Now:       func() time.Time { return runNow },
	}, Settings{Concurrency: 2})

	res, err := job.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.Join(res.Successful, ",") != "ca-la,tx-harris" {
		t.Fatalf("unexpected successful regions %v", res.Successful)
	}
	if len(res.Failed) != 1 || res.Failed[0].RegionID != "fl-dade" {
		t.Fatalf("expected fl-dade to fail, got %+v", res.Failed)
	}
	if res.Partial {
		t.Fatalf("expected complete run")
	}
	if want := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC); !res.TargetWeekStart.Equal(want) {
		t.Fatalf("expected target week %s, got %s", want, res.TargetWeekStart)
	}

	if res.Report == nil || res.Report.Summary.Regions != 2 {
		t.Fatalf("expected report over 2 regions, got %+v", res.Report)
	}
	if res.Report.Summary.Increased != 1 || res.Report.Summary.Decreased != 1 {
		t.Fatalf("unexpected summary %+v", res.Report.Summary)
	}

	raw, ok := reports.saved["2026-10-19"]
	if !ok {
		t.Fatalf("expected report saved under target week, got %v", reports.saved)
	}
	var decoded report.ComparisonReport
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("saved report is not JSON: %v", err)
	}
	if decoded.Narrative == "" {
		t.Fatalf("expected narrative in saved report")
	}
}

func TestRunRetrainsOrRefreshesFeatures(t *testing.T) {
	predictor := &fakePredictor{p: map[string]float64{"tx-harris": 0.5}}
	trainer := &fakeTrainer{}
	features := &fakeFeatures{starts: map[string]time.Time{}}
	job := NewWeeklyInferenceJob(Deps{
		Regions:   regions("tx-harris"),
		Trainer:   trainer,
		Predictor: predictor,
		Features:  features,
		Forecasts: priorForecasts{},
		Now:       func() time.Time { return runNow },
	}, Settings{})

	if _, err := job.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(trainer.regions) != 0 {
		t.Fatalf("expected no training without retrain, got %v", trainer.regions)
	}
	wantStart := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -7*featureRefreshWeeks)
	if got := features.starts["tx-harris"]; !got.Equal(wantStart) {
		t.Fatalf("expected feature refresh from %s, got %s", wantStart, got)
	}

	if _, err := job.Run(context.Background(), Options{Retrain: true}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(trainer.regions) != 1 {
		t.Fatalf("expected one training run, got %v", trainer.regions)
	}
}

func TestRunBudgetExhaustionIsPartial(t *testing.T) {
	predictor := &fakePredictor{
		p:     map[string]float64{"a": 0.5, "c": 0.5},
		block: map[string]bool{"b": true},
	}
	job := NewWeeklyInferenceJob(Deps{
		Regions:   regions("a", "b", "c"),
		Predictor: predictor,
		Forecasts: priorForecasts{},
		Now:       func() time.Time { return runNow },
	}, Settings{Concurrency: 1, Budget: 50 * time.Millisecond})

	res, err := job.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.Partial {
		t.Fatalf("expected partial result")
	}
	if strings.Join(res.Successful, ",") != "a" {
		t.Fatalf("expected only a to succeed, got %v", res.Successful)
	}
	if len(res.Failed) != 2 {
		t.Fatalf("expected b and c to fail, got %+v", res.Failed)
	}
	for _, f := range res.Failed {
		if !strings.Contains(f.Error, errBudgetExhausted.Error()) {
			t.Fatalf("expected %s to be cut off by the budget, got %q", f.RegionID, f.Error)
		}
	}
	for _, called := range predictor.calls {
		if called == "c" {
			t.Fatalf("region c should not have been attempted")
		}
	}
}

func TestRunBudgetExpiringDuringLastRegionIsPartial(t *testing.T) {
	predictor := &fakePredictor{
		p:     map[string]float64{"a": 0.5},
		block: map[string]bool{"b": true},
	}
	job := NewWeeklyInferenceJob(Deps{
		Regions:   regions("a", "b"),
		Predictor: predictor,
		Forecasts: priorForecasts{},
		Now:       func() time.Time { return runNow },
	}, Settings{Concurrency: 1, Budget: 50 * time.Millisecond})

	res, err := job.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.Partial {
		t.Fatalf("expected partial result when the budget expires mid-region, got %+v", res)
	}
	if len(res.Failed) != 1 || res.Failed[0].RegionID != "b" {
		t.Fatalf("expected b to fail, got %+v", res.Failed)
	}
	if !strings.Contains(res.Failed[0].Error, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected the underlying deadline error to be kept, got %q", res.Failed[0].Error)
	}
}

func TestRunOpTimeoutFailsRegion(t *testing.T) {
	predictor := &fakePredictor{p: map[string]float64{}, block: map[string]bool{"slow": true}}
	job := NewWeeklyInferenceJob(Deps{
		Regions:   regions("slow"),
		Predictor: predictor,
		Forecasts: priorForecasts{},
		Now:       func() time.Time { return runNow },
	}, Settings{OpTimeout: 10 * time.Millisecond})

	res, _ := job.Run(context.Background(), Options{})
	if res.Partial || len(res.Failed) != 1 {
		t.Fatalf("expected one non-partial failure, got %+v", res)
	}
	if !strings.Contains(res.Failed[0].Error, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected deadline error, got %q", res.Failed[0].Error)
	}
}

func TestRunPublishesCompletion(t *testing.T) {
	bus := events.NewInMemoryBus(nil)
	got := make(chan events.WeeklyInferenceCompleted, 1)
	bus.Subscribe(events.WeeklyInferenceCompleted{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		done, ok := e.(events.WeeklyInferenceCompleted)
		if !ok {
			return errors.New("unexpected event")
		}
		got <- done
		return nil
	}))

	job := NewWeeklyInferenceJob(Deps{
		Regions:   regions("tx-harris"),
		Predictor: &fakePredictor{p: map[string]float64{"tx-harris": 0.2}},
		Forecasts: priorForecasts{},
		Bus:       bus,
		Now:       func() time.Time { return runNow },
	}, Settings{})

	if _, err := job.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	bus.Wait()
	select {
	case e := <-got:
		if e.Successful != 1 || e.Failed != 0 || e.Partial {
			t.Fatalf("unexpected completion event %+v", e)
		}
	default:
		t.Fatalf("expected completion event")
	}
}
