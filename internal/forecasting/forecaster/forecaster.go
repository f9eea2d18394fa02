// Package forecaster trains per-region surge classifiers and turns them into
// calibrated weekly forecasts.
package forecaster

import (
	"context"
	"time"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/platform/logger"
)

// Labeler produces labeled activity weeks for a window.
type Labeler interface {
	Label(ctx context.Context, regionID string, start, end time.Time, threshold float64) ([]domain.ActivityWeek, error)
}

// FeatureBuilder produces daily feature rows for a window.
type FeatureBuilder interface {
	BuildFeatures(ctx context.Context, regionID string, start, end time.Time) ([]domain.FeatureRow, error)
}

// Settings tune training and prediction. Zero values take the defaults below.
type Settings struct {
	LookbackWeeks       int
	PercentileThreshold float64
	MinSamples          int
	CVSplits            int
	FeatureLookbackDays int
}

const (
	DefaultLookbackWeeks       = 156
	DefaultPercentileThreshold = 90.0
	DefaultMinSamples          = 50
	DefaultFeatureLookbackDays = 30
	forecastHorizonDays        = 7
)

func (s Settings) withDefaults() Settings {
	if s.LookbackWeeks <= 0 {
		s.LookbackWeeks = DefaultLookbackWeeks
	}
	if s.PercentileThreshold == 0 {
		s.PercentileThreshold = DefaultPercentileThreshold
	}
	if s.MinSamples <= 0 {
		s.MinSamples = DefaultMinSamples
	}
	if s.FeatureLookbackDays <= 0 {
		s.FeatureLookbackDays = DefaultFeatureLookbackDays
	}
	return s
}

// Deps are the collaborators a Forecaster needs.
type Deps struct {
	Labeler   Labeler
	Features  FeatureBuilder
	Latest    ports.FeatureStore
	Models    ports.ModelStore
	Forecasts ports.ForecastStore
	Policy    SelectionPolicy
	Bus       events.Bus
	Log       *logger.Logger
	Now       func() time.Time
}

// Forecaster is the demand-surge trainer and predictor for every region.
type Forecaster struct {
	labeler   Labeler
	features  FeatureBuilder
	latest    ports.FeatureStore
	models    ports.ModelStore
	forecasts ports.ForecastStore
	policy    SelectionPolicy
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
	settings  Settings
}

// New wires a Forecaster.
func New(deps Deps, settings Settings) *Forecaster {
	f := &Forecaster{
		labeler:   deps.Labeler,
		features:  deps.Features,
		latest:    deps.Latest,
		models:    deps.Models,
		forecasts: deps.Forecasts,
		policy:    deps.Policy,
		bus:       deps.Bus,
		log:       deps.Log,
		now:       deps.Now,
		settings:  settings.withDefaults(),
	}
	if f.policy == nil {
		f.policy = MostRecentPolicy{}
	}
	if f.log == nil {
		f.log = logger.Nop()
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

func (f *Forecaster) publish(ctx context.Context, event events.Event) {
	if f.bus != nil {
		f.bus.Publish(ctx, event)
	}
}
