package forecaster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/model"
)

// Predict forecasts the surge probability for the week containing targetDate
// (today + 7 days when zero) using modelVersion, or the policy's choice when
// modelVersion is empty. The forecast is persisted before it is returned.
func (f *Forecaster) Predict(ctx context.Context, regionID string, targetDate time.Time, modelVersion string) (*domain.ForecastPrediction, error) {
	now := f.now().UTC()
	if targetDate.IsZero() {
		targetDate = now.AddDate(0, 0, forecastHorizonDays)
	}
	asOf := domain.DateOnly(targetDate)
	targetWeek := domain.WeekStart(asOf)

	row, err := f.latest.GetLatestFeatures(ctx, regionID, asOf, f.settings.FeatureLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("load latest features for %s: %w", regionID, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s has no feature row within %d days of %s", domain.ErrNoFeatures, regionID, f.settings.FeatureLookbackDays, asOf.Format(time.DateOnly))
	}

	meta, artifact, err := f.resolveModel(ctx, regionID, modelVersion)
	if err != nil {
		return nil, err
	}

	p, err := artifact.PredictRow(row)
	if err != nil {
		return nil, fmt.Errorf("predict with %s: %w", meta.ModelVersion, err)
	}
	p = clamp01(p)

	prediction := &domain.ForecastPrediction{
		RegionID:        regionID,
		ForecastDate:    domain.DateOnly(now),
		TargetWeekStart: targetWeek,
		TargetWeekEnd:   targetWeek.AddDate(0, 0, 6),
		ModelVersion:    meta.ModelVersion,
		PSurge:          p,
		ConfidenceScore: confidence(p, meta.Metrics.CVAUCMean),
	}
	prediction.P80Lower, prediction.P80Upper = Bounds(p, 0.2)
	prediction.P20Lower, prediction.P20Upper = Bounds(p, 0.1)

	prior, err := f.forecasts.GetByWeek(ctx, regionID, PriorYearWeek(targetWeek))
	if err != nil {
		return nil, fmt.Errorf("load prior-year forecast for %s: %w", regionID, err)
	}
	if prior != nil {
		priorP := prior.PSurge
		prediction.PriorYearPSurge = &priorP
		prediction.SurgeRiskChangePct = ChangePct(p, priorP)
	}

	if err := f.forecasts.UpsertLatest(ctx, *prediction); err != nil {
		return nil, fmt.Errorf("persist forecast for %s: %w", regionID, err)
	}

	f.log.WithRegion(regionID).Info("forecast generated",
		"modelVersion", meta.ModelVersion,
		"targetWeekStart", targetWeek.Format(time.DateOnly),
		"pSurge", p,
	)
	f.publish(ctx, events.ForecastGenerated{
		BaseEvent:       events.NewBaseEvent(),
		RegionID:        regionID,
		TargetWeekStart: targetWeek,
		ModelVersion:    meta.ModelVersion,
		PSurge:          p,
	})
	return prediction, nil
}

func (f *Forecaster) resolveModel(ctx context.Context, regionID, version string) (domain.TrainedModel, *model.Artifact, error) {
	if version == "" {
		versions, err := f.models.ListVersions(ctx, regionID)
		if err != nil {
			return domain.TrainedModel{}, nil, fmt.Errorf("list models for %s: %w", regionID, err)
		}
		selected, ok := f.policy.Select(versions)
		if !ok {
			return domain.TrainedModel{}, nil, fmt.Errorf("%w: no trained model for %s", domain.ErrModelNotFound, regionID)
		}
		version = selected.ModelVersion
	}

	info, err := domain.ParseVersion(version)
	if err != nil {
		return domain.TrainedModel{}, nil, err
	}
	if info.RegionID != regionID {
		return domain.TrainedModel{}, nil, fmt.Errorf("%w: %s belongs to region %s", domain.ErrModelNotFound, version, info.RegionID)
	}

	meta, data, err := f.models.Load(ctx, version)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotFound) {
			return domain.TrainedModel{}, nil, err
		}
		return domain.TrainedModel{}, nil, fmt.Errorf("load model %s: %w", version, err)
	}
	artifact, err := model.Decode(data)
	if err != nil {
		return domain.TrainedModel{}, nil, err
	}
	return meta, artifact, nil
}

// Bounds returns [p-width, p+width] clipped to [0, 1].
func Bounds(p, width float64) (lower, upper float64) {
	return math.Max(0, p-width), math.Min(1, p+width)
}

// ChangePct is (current-prior)/prior*100, or nil when prior is zero.
func ChangePct(current, prior float64) *float64 {
	if prior == 0 {
		return nil
	}
	v := (current - prior) / prior * 100
	return &v
}

// PriorYearWeek is the Monday 52 weeks before weekStart.
func PriorYearWeek(weekStart time.Time) time.Time {
	return domain.WeekStart(weekStart).AddDate(0, 0, -364)
}

// confidence blends how decisive p is with how well the model validated.
func confidence(p, cvAUC float64) float64 {
	return 0.5*math.Abs(2*p-1) + 0.5*clamp01(cvAUC)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
