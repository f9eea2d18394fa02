// Package jobs runs the surge pipeline across every configured region.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/forecaster"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/internal/forecasting/report"
	"leadgen_backend/platform/logger"
)

const (
	jobName = "weekly_inference"

	// featureRefreshWeeks covers the longest rolling window plus the current week.
	featureRefreshWeeks = 27
	horizonDays         = 7
)

var errBudgetExhausted = errors.New("batch budget exhausted")

// Trainer fits and persists models for a region.
type Trainer interface {
	Train(ctx context.Context, regionID string, endDate time.Time) (*forecaster.TrainingResult, error)
}

// Predictor forecasts and persists the surge probability for a region.
type Predictor interface {
	Predict(ctx context.Context, regionID string, targetDate time.Time, modelVersion string) (*domain.ForecastPrediction, error)
}

// FeatureBuilder recomputes and stores feature rows.
type FeatureBuilder interface {
	BuildFeatures(ctx context.Context, regionID string, start, end time.Time) ([]domain.FeatureRow, error)
}

// Settings tune the batch. Zero values mean: one region at a time, no rate
// limit, no per-operation timeout and no overall budget.
type Settings struct {
	Concurrency int
	RegionRate  float64
	OpTimeout   time.Duration
	Budget      time.Duration
}

// Options select what a single run does.
type Options struct {
	Retrain bool
	// Regions overrides the registry when non-empty.
	Regions []string
}

// RegionFailure records why a region produced no forecast.
type RegionFailure struct {
	RegionID string `json:"regionId"`
	Error    string `json:"error"`
}

// WeeklyResult summarizes one batch run.
type WeeklyResult struct {
	RunID           uuid.UUID                `json:"runId"`
	TargetWeekStart time.Time                `json:"targetWeekStart"`
	Successful      []string                 `json:"successful"`
	Failed          []RegionFailure          `json:"failed"`
	Partial         bool                     `json:"partial"`
	Report          *report.ComparisonReport `json:"report,omitempty"`
}

// WeeklyInferenceJob forecasts next week for every region and writes the impact report.
type WeeklyInferenceJob struct {
	regions   func() []string
	trainer   Trainer
	predictor Predictor
	features  FeatureBuilder
	forecasts ports.ForecastStore
	reports   ports.ReportStore
	bus       events.Bus
	log       *logger.Logger
	settings  Settings
	now       func() time.Time
}

// Deps are the collaborators of WeeklyInferenceJob. Reports and Bus may be nil.
type Deps struct {
	Regions   func() []string
	Trainer   Trainer
	Predictor Predictor
	Features  FeatureBuilder
	Forecasts ports.ForecastStore
	Reports   ports.ReportStore
	Bus       events.Bus
	Log       *logger.Logger
	Now       func() time.Time
}

func NewWeeklyInferenceJob(deps Deps, settings Settings) *WeeklyInferenceJob {
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	j := &WeeklyInferenceJob{
		regions:   deps.Regions,
		trainer:   deps.Trainer,
		predictor: deps.Predictor,
		features:  deps.Features,
		forecasts: deps.Forecasts,
		reports:   deps.Reports,
		bus:       deps.Bus,
		log:       deps.Log,
		settings:  settings,
		now:       deps.Now,
	}
	if j.log == nil {
		j.log = logger.Nop()
	}
	if j.now == nil {
		j.now = time.Now
	}
	if j.regions == nil {
		j.regions = func() []string { return nil }
	}
	return j
}

// Run processes every region. Per-region failures are collected, never returned;
// the error is reserved for failures of the run itself.
func (j *WeeklyInferenceJob) Run(ctx context.Context, opts Options) (*WeeklyResult, error) {
	regionIDs := opts.Regions
	if len(regionIDs) == 0 {
		regionIDs = j.regions()
	}

	now := j.now().UTC()
	targetDate := domain.DateOnly(now).AddDate(0, 0, horizonDays)
	result := &WeeklyResult{
		RunID:           uuid.New(),
		TargetWeekStart: domain.WeekStart(targetDate),
		Successful:      []string{},
		Failed:          []RegionFailure{},
	}

	ctx = context.WithValue(ctx, logger.JobRunIDKey, result.RunID.String())
	batchCtx := ctx
	if j.settings.Budget > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, j.settings.Budget)
		defer cancel()
	}

	var limiter *rate.Limiter
	if j.settings.RegionRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(j.settings.RegionRate), 1)
	}

	log := j.log.WithContext(ctx)
	log.Info("weekly inference started", "regions", len(regionIDs), "retrain", opts.Retrain)

	var (
		mu       sync.Mutex
		current  = make(map[string]domain.ForecastPrediction, len(regionIDs))
		failures = make(map[string]error)
	)
	record := func(regionID string, p *domain.ForecastPrediction, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures[regionID] = err
			return
		}
		current[regionID] = *p
	}

	var g errgroup.Group
	g.SetLimit(j.settings.Concurrency)
	for _, regionID := range regionIDs {
		if batchCtx.Err() != nil {
			record(regionID, nil, errBudgetExhausted)
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(batchCtx); err != nil {
				record(regionID, nil, errBudgetExhausted)
				continue
			}
		}
		g.Go(func() error {
			if batchCtx.Err() != nil {
				record(regionID, nil, errBudgetExhausted)
				return nil
			}
			p, err := j.processRegion(batchCtx, regionID, now, targetDate, opts.Retrain)
			if err != nil && batchCtx.Err() != nil {
				// cut off mid-region by the budget, not by its own op timeout
				err = fmt.Errorf("%w: %w", errBudgetExhausted, err)
			}
			log.JobEvent(jobName, regionID, status(err), err)
			record(regionID, p, err)
			return nil
		})
	}
	_ = g.Wait()

	for _, regionID := range regionIDs {
		if err, failed := failures[regionID]; failed {
			if errors.Is(err, errBudgetExhausted) {
				result.Partial = true
			}
			result.Failed = append(result.Failed, RegionFailure{RegionID: regionID, Error: err.Error()})
			continue
		}
		if _, ok := current[regionID]; ok {
			result.Successful = append(result.Successful, regionID)
		}
	}
	sort.Strings(result.Successful)
	sort.Slice(result.Failed, func(a, b int) bool { return result.Failed[a].RegionID < result.Failed[b].RegionID })

	rep, err := j.buildReport(ctx, result, current)
	if err != nil {
		log.Warn("impact report failed", "error", err)
	} else {
		result.Report = rep
		log.Info("impact report", "narrative", rep.Narrative)
	}

	log.Info("weekly inference finished",
		"successful", len(result.Successful),
		"failed", len(result.Failed),
		"partial", result.Partial,
	)
	if j.bus != nil {
		j.bus.Publish(ctx, completedEvent(result))
	}
	return result, nil
}

func (j *WeeklyInferenceJob) processRegion(ctx context.Context, regionID string, now, targetDate time.Time, retrain bool) (*domain.ForecastPrediction, error) {
	if retrain {
		if err := j.withTimeout(ctx, func(ctx context.Context) error {
			_, err := j.trainer.Train(ctx, regionID, now)
			return err
		}); err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
	} else if j.features != nil {
		end := domain.DateOnly(now)
		if err := j.withTimeout(ctx, func(ctx context.Context) error {
			_, err := j.features.BuildFeatures(ctx, regionID, end.AddDate(0, 0, -7*featureRefreshWeeks), end)
			return err
		}); err != nil {
			return nil, fmt.Errorf("refresh features: %w", err)
		}
	}

	var prediction *domain.ForecastPrediction
	err := j.withTimeout(ctx, func(ctx context.Context) error {
		p, err := j.predictor.Predict(ctx, regionID, targetDate, "")
		prediction = p
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return prediction, nil
}

func (j *WeeklyInferenceJob) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if j.settings.OpTimeout <= 0 {
		return fn(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, j.settings.OpTimeout)
	defer cancel()
	return fn(opCtx)
}

// buildReport compares this run's forecasts with the same week a year earlier
// and persists the report under the target week's date.
func (j *WeeklyInferenceJob) buildReport(ctx context.Context, result *WeeklyResult, current map[string]domain.ForecastPrediction) (*report.ComparisonReport, error) {
	currentList := make([]domain.ForecastPrediction, 0, len(result.Successful))
	priorList := make([]domain.ForecastPrediction, 0, len(result.Successful))
	for _, regionID := range result.Successful {
		p := current[regionID]
		currentList = append(currentList, p)
		prior, err := j.forecasts.GetByWeek(ctx, regionID, forecaster.PriorYearWeek(p.TargetWeekStart))
		if err != nil {
			return nil, fmt.Errorf("load prior-year forecast for %s: %w", regionID, err)
		}
		if prior != nil {
			priorList = append(priorList, *prior)
		}
	}

	rep := report.Compare(currentList, priorList)
	if j.reports == nil {
		return &rep, nil
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return nil, err
	}
	if err := j.reports.SaveReport(ctx, result.TargetWeekStart.Format(time.DateOnly), payload); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return &rep, nil
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}

func completedEvent(result *WeeklyResult) events.WeeklyInferenceCompleted {
	evt := events.WeeklyInferenceCompleted{
		BaseEvent:       events.NewBaseEvent(),
		RunID:           result.RunID,
		TargetWeekStart: result.TargetWeekStart,
		Successful:      len(result.Successful),
		Failed:          len(result.Failed),
		Partial:         result.Partial,
	}
	for _, f := range result.Failed {
		evt.FailedRegions = append(evt.FailedRegions, f.RegionID)
	}
	if result.Report != nil {
		evt.Narrative = result.Report.Narrative
		for _, r := range result.Report.Regions {
			if r.CurrentRisk == report.RiskHigh {
				evt.HighRiskRegions = append(evt.HighRiskRegions, r.RegionID)
			}
		}
	}
	return evt
}
