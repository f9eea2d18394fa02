package forecaster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/features"
	"leadgen_backend/internal/forecasting/labeling"
	"leadgen_backend/internal/forecasting/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday

// spikyActivity has 2 permits a day, tripled every tenth week.
type spikyActivity struct{}

func (spikyActivity) perDay(d time.Time) int {
	week := int(domain.DateOnly(d).Sub(epoch).Hours()/24) / 7
	if week%10 == 0 {
		return 6
	}
	return 2
}

func (a spikyActivity) GetDailyCounts(_ context.Context, _ string, start, end time.Time) ([]domain.DailyCount, error) {
	var out []domain.DailyCount
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, domain.DailyCount{Date: d, Count: a.perDay(d)})
	}
	return out, nil
}

func (a spikyActivity) GetWeeklyCounts(_ context.Context, _ string, start, end time.Time) ([]domain.WeeklyCounts, error) {
	var out []domain.WeeklyCounts
	for ws := domain.WeekStart(start); !ws.After(end); ws = ws.AddDate(0, 0, 7) {
		total := 0
		for d := 0; d < 7; d++ {
			total += a.perDay(ws.AddDate(0, 0, d))
		}
		out = append(out, domain.WeeklyCounts{WeekStart: ws, PermitCount: total})
	}
	return out, nil
}

type memFeatures struct {
	mu   sync.Mutex
	rows map[string][]domain.FeatureRow
}

func (s *memFeatures) UpsertFeatures(_ context.Context, regionID string, rows []domain.FeatureRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == nil {
		s.rows = map[string][]domain.FeatureRow{}
	}
	s.rows[regionID] = append(s.rows[regionID], rows...)
	return nil
}

func (s *memFeatures) GetLatestFeatures(_ context.Context, regionID string, asOf time.Time, lookbackDays int) (*domain.FeatureRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	floor := asOf.AddDate(0, 0, -lookbackDays)
	var latest *domain.FeatureRow
	for i := range s.rows[regionID] {
		r := s.rows[regionID][i]
		if r.FeatureDate.After(asOf) || !r.FeatureDate.After(floor) {
			continue
		}
		if latest == nil || r.FeatureDate.After(latest.FeatureDate) {
			latest = &r
		}
	}
	return latest, nil
}

type storedModel struct {
	meta     domain.TrainedModel
	artifact []byte
}

type memModels struct {
	mu       sync.Mutex
	models   map[string]storedModel
	order    []string
	failSave map[domain.Algorithm]bool
}

func (s *memModels) Save(_ context.Context, m domain.TrainedModel, artifact []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[m.Algorithm] {
		return errors.New("blob store unavailable")
	}
	if s.models == nil {
		s.models = map[string]storedModel{}
	}
	if _, exists := s.models[m.ModelVersion]; exists {
		return fmt.Errorf("model %s already exists", m.ModelVersion)
	}
	s.models[m.ModelVersion] = storedModel{meta: m, artifact: append([]byte(nil), artifact...)}
	s.order = append(s.order, m.ModelVersion)
	return nil
}

func (s *memModels) Load(_ context.Context, version string) (domain.TrainedModel, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[version]
	if !ok {
		return domain.TrainedModel{}, nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, version)
	}
	return m.meta, m.artifact, nil
}

func (s *memModels) ListVersions(_ context.Context, regionID string) ([]domain.TrainedModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrainedModel
	for _, v := range s.order {
		if m := s.models[v]; m.meta.RegionID == regionID {
			out = append(out, m.meta)
		}
	}
	return out, nil
}

type memForecasts struct {
	mu   sync.Mutex
	rows map[string]domain.ForecastPrediction
}

func forecastKey(regionID string, week time.Time) string {
	return regionID + "|" + week.Format(time.DateOnly)
}

func (s *memForecasts) UpsertLatest(_ context.Context, p domain.ForecastPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == nil {
		s.rows = map[string]domain.ForecastPrediction{}
	}
	s.rows[forecastKey(p.RegionID, p.TargetWeekStart)] = p
	return nil
}

func (s *memForecasts) GetLatest(_ context.Context, regionID string) (*domain.ForecastPrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, p := range s.rows {
		if p.RegionID == regionID {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)
	p := s.rows[keys[len(keys)-1]]
	return &p, nil
}

func (s *memForecasts) GetByWeek(_ context.Context, regionID string, week time.Time) (*domain.ForecastPrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[forecastKey(regionID, week)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type harness struct {
	forecaster *Forecaster
	features   *memFeatures
	models     *memModels
	forecasts  *memForecasts
	now        time.Time
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		features:  &memFeatures{},
		models:    &memModels{},
		forecasts: &memForecasts{},
		now:       time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC),
	}
	activity := spikyActivity{}
	h.forecaster = New(Deps{
		Labeler:   labeling.New(activity, nil, nil, nil),
		Features:  features.New(activity, nil, h.features, nil),
		Latest:    h.features,
		Models:    h.models,
		Forecasts: h.forecasts,
		Now:       func() time.Time { return h.now },
	}, settings)
	return h
}

func TestTrainBelowMinimumSamplesPersistsNothing(t *testing.T) {
	h := newHarness(t, Settings{LookbackWeeks: 30})

	_, err := h.forecaster.Train(context.Background(), "tx-harris", h.now)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if len(h.models.order) != 0 {
		t.Fatalf("expected no models persisted, got %v", h.models.order)
	}
}

func TestTrainPersistsOneVersionPerAlgorithm(t *testing.T) {
	h := newHarness(t, Settings{LookbackWeeks: 104})

	res, err := h.forecaster.Train(context.Background(), "tx-harris", h.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Samples < DefaultMinSamples {
		t.Fatalf("expected at least %d samples, got %d", DefaultMinSamples, res.Samples)
	}
	if len(res.Models) != len(domain.Algorithms) {
		t.Fatalf("expected %d models, got %d", len(domain.Algorithms), len(res.Models))
	}
	for i, m := range res.Models {
		want := fmt.Sprintf("%s_tx-harris_20261014T040000Z", domain.Algorithms[i])
		if m.ModelVersion != want {
			t.Fatalf("expected version %s, got %s", want, m.ModelVersion)
		}
		if m.Metrics.PositiveSamples == 0 {
			t.Fatalf("expected positive samples in %s", m.ModelVersion)
		}
	}

	// A later run adds versions instead of replacing them.
	h.now = h.now.Add(24 * time.Hour)
	if _, err := h.forecaster.Train(context.Background(), "tx-harris", h.now); err != nil {
		t.Fatalf("unexpected error on retrain: %v", err)
	}
	if len(h.models.order) != 2*len(domain.Algorithms) {
		t.Fatalf("expected prior versions kept, got %d versions", len(h.models.order))
	}
}

func TestTrainKeepsAlgorithmsThatSucceed(t *testing.T) {
	h := newHarness(t, Settings{LookbackWeeks: 104})
	h.models.failSave = map[domain.Algorithm]bool{domain.AlgorithmLightGBM: true}

	res, err := h.forecaster.Train(context.Background(), "tx-harris", h.now)
	if err != nil {
		t.Fatalf("expected partial training to succeed, got %v", err)
	}
	if len(res.Models) != len(domain.Algorithms)-1 || len(h.models.order) != len(domain.Algorithms)-1 {
		t.Fatalf("expected %d persisted models, got %d (%v)", len(domain.Algorithms)-1, len(res.Models), h.models.order)
	}
	if len(res.Failures) != 1 || res.Failures[0].Algorithm != domain.AlgorithmLightGBM {
		t.Fatalf("expected lightgbm failure recorded, got %+v", res.Failures)
	}
}

func TestTrainErrorsWhenNothingPersists(t *testing.T) {
	h := newHarness(t, Settings{LookbackWeeks: 104})
	h.models.failSave = map[domain.Algorithm]bool{}
	for _, algo := range domain.Algorithms {
		h.models.failSave[algo] = true
	}

	if _, err := h.forecaster.Train(context.Background(), "tx-harris", h.now); err == nil {
		t.Fatalf("expected error when every algorithm fails")
	}
	if len(h.models.order) != 0 {
		t.Fatalf("expected nothing persisted, got %v", h.models.order)
	}
}

func TestPredictUsesMostRecentModelAndPersists(t *testing.T) {
	h := newHarness(t, Settings{LookbackWeeks: 104})
	ctx := context.Background()
	if _, err := h.forecaster.Train(ctx, "tx-harris", h.now); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	pred, err := h.forecaster.Predict(ctx, "tx-harris", time.Time{}, "")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if pred.ModelVersion != "gradient_boost_tx-harris_20261014T040000Z" {
		t.Fatalf("unexpected model version %s", pred.ModelVersion)
	}
	wantWeek := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if !pred.TargetWeekStart.Equal(wantWeek) || !pred.TargetWeekEnd.Equal(wantWeek.AddDate(0, 0, 6)) {
		t.Fatalf("unexpected target week %s - %s", pred.TargetWeekStart, pred.TargetWeekEnd)
	}
	if pred.P80Lower > pred.PSurge || pred.PSurge > pred.P80Upper || pred.P20Lower > pred.PSurge || pred.PSurge > pred.P20Upper {
		t.Fatalf("bounds do not contain p_surge: %+v", pred)
	}
	if pred.PriorYearPSurge != nil || pred.SurgeRiskChangePct != nil {
		t.Fatalf("expected no prior-year comparison without history")
	}
	stored, _ := h.forecasts.GetByWeek(ctx, "tx-harris", wantWeek)
	if stored == nil || stored.PSurge != pred.PSurge {
		t.Fatalf("expected forecast to be persisted, got %+v", stored)
	}

	// The stored artifact alone reproduces the forecast.
	_, data, err := h.models.Load(ctx, pred.ModelVersion)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	artifact, err := model.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	row, _ := h.features.GetLatestFeatures(ctx, "tx-harris", wantWeek.AddDate(0, 0, 2), DefaultFeatureLookbackDays)
	p, err := artifact.PredictRow(row)
	if err != nil {
		t.Fatalf("predict row failed: %v", err)
	}
	if math.Abs(p-pred.PSurge) > 1e-12 {
		t.Fatalf("expected reloaded artifact to give %v, got %v", pred.PSurge, p)
	}

	explicit, err := h.forecaster.Predict(ctx, "tx-harris", time.Time{}, "xgboost_tx-harris_20261014T040000Z")
	if err != nil {
		t.Fatalf("explicit predict failed: %v", err)
	}
	if explicit.ModelVersion != "xgboost_tx-harris_20261014T040000Z" {
		t.Fatalf("expected explicit version to be used, got %s", explicit.ModelVersion)
	}
}

func TestPredictComparesWithPriorYear(t *testing.T) {
	h := newHarness(t, Settings{LookbackWeeks: 104})
	ctx := context.Background()
	if _, err := h.forecaster.Train(ctx, "tx-harris", h.now); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	week := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	prior := domain.ForecastPrediction{RegionID: "tx-harris", TargetWeekStart: PriorYearWeek(week), PSurge: 0.25}
	if err := h.forecasts.UpsertLatest(ctx, prior); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	pred, err := h.forecaster.Predict(ctx, "tx-harris", time.Time{}, "")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if pred.PriorYearPSurge == nil || *pred.PriorYearPSurge != 0.25 {
		t.Fatalf("expected prior-year p 0.25, got %v", pred.PriorYearPSurge)
	}
	want := (pred.PSurge - 0.25) / 0.25 * 100
	if pred.SurgeRiskChangePct == nil || math.Abs(*pred.SurgeRiskChangePct-want) > 1e-9 {
		t.Fatalf("expected change pct %v, got %v", want, pred.SurgeRiskChangePct)
	}
}

func TestPredictWithoutModelsIsModelNotFound(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	row := domain.NewFeatureRow("tx-harris", h.now)
	_ = h.features.UpsertFeatures(ctx, "tx-harris", []domain.FeatureRow{row})

	_, err := h.forecaster.Predict(ctx, "tx-harris", time.Time{}, "")
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if len(h.forecasts.rows) != 0 {
		t.Fatalf("expected no forecast persisted, got %d", len(h.forecasts.rows))
	}

	_, err = h.forecaster.Predict(ctx, "tx-harris", time.Time{}, "lightgbm_tx-harris_20250101T000000Z")
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound for unknown version, got %v", err)
	}
}

func TestPredictErrorsAreTyped(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	if _, err := h.forecaster.Predict(ctx, "tx-harris", time.Time{}, ""); !errors.Is(err, domain.ErrNoFeatures) {
		t.Fatalf("expected ErrNoFeatures, got %v", err)
	}

	_ = h.features.UpsertFeatures(ctx, "tx-harris", []domain.FeatureRow{domain.NewFeatureRow("tx-harris", h.now)})
	if _, err := h.forecaster.Predict(ctx, "tx-harris", time.Time{}, "randomforest_tx-harris_20261014T040000Z"); !errors.Is(err, domain.ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}

	// A feature row older than the lookback window does not count.
	stale := newHarness(t, Settings{})
	_ = stale.features.UpsertFeatures(ctx, "tx-harris", []domain.FeatureRow{domain.NewFeatureRow("tx-harris", stale.now.AddDate(0, 0, -60))})
	if _, err := stale.forecaster.Predict(ctx, "tx-harris", time.Time{}, ""); !errors.Is(err, domain.ErrNoFeatures) {
		t.Fatalf("expected ErrNoFeatures for stale features, got %v", err)
	}
}

func TestBoundsContainProbability(t *testing.T) {
	for i := 0; i <= 100; i++ {
		p := float64(i) / 100
		lo80, hi80 := Bounds(p, 0.2)
		lo20, hi20 := Bounds(p, 0.1)
		if lo80 > p || p > hi80 || lo20 > p || p > hi20 {
			t.Fatalf("bounds do not contain %v", p)
		}
		if lo80 < 0 || hi80 > 1 || lo20 < 0 || hi20 > 1 {
			t.Fatalf("bounds escape [0,1] for %v", p)
		}
	}
	lo, hi := Bounds(0.5, 0.2)
	if math.Abs(lo-0.3) > 1e-12 || math.Abs(hi-0.7) > 1e-12 {
		t.Fatalf("expected [0.3, 0.7], got [%v, %v]", lo, hi)
	}
}

func TestChangePctWithZeroPriorIsNil(t *testing.T) {
	if ChangePct(0.4, 0) != nil {
		t.Fatalf("expected nil change for zero prior")
	}
	if got := ChangePct(0.3, 0.2); got == nil || math.Abs(*got-50) > 1e-9 {
		t.Fatalf("expected 50%%, got %v", got)
	}
}

func TestSelectionPolicies(t *testing.T) {
	older := time.Date(2026, 9, 1, 4, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 10, 1, 4, 0, 0, 0, time.UTC)
	models := []domain.TrainedModel{
		{ModelVersion: domain.FormatVersion(domain.AlgorithmXGBoost, "tx-harris", newer), Algorithm: domain.AlgorithmXGBoost, Metrics: domain.ModelMetrics{CVAUCMean: 0.7}},
		{ModelVersion: domain.FormatVersion(domain.AlgorithmLightGBM, "tx-harris", newer), Algorithm: domain.AlgorithmLightGBM, Metrics: domain.ModelMetrics{CVAUCMean: 0.6}},
		{ModelVersion: domain.FormatVersion(domain.AlgorithmGradientBoost, "tx-harris", older), Algorithm: domain.AlgorithmGradientBoost, Metrics: domain.ModelMetrics{CVAUCMean: 0.9}},
	}

	got, ok := MostRecentPolicy{}.Select(models)
	if !ok || got.Algorithm != domain.AlgorithmLightGBM {
		t.Fatalf("expected newest lightgbm to win the tie, got %+v", got)
	}
	got, ok = BestCVAUCPolicy{}.Select(models)
	if !ok || got.Algorithm != domain.AlgorithmGradientBoost {
		t.Fatalf("expected best cv auc model, got %+v", got)
	}
	if _, ok := (MostRecentPolicy{}).Select(nil); ok {
		t.Fatalf("expected no selection from an empty list")
	}
	if _, err := PolicyByName("first_found"); err == nil {
		t.Fatalf("expected unknown policy to be rejected")
	}
}
