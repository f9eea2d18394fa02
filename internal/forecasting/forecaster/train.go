package forecaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/model"
)

// TrainingResult lists the model versions one training run persisted.
type TrainingResult struct {
	RegionID  string                `json:"regionId"`
	StartDate time.Time             `json:"startDate"`
	EndDate   time.Time             `json:"endDate"`
	Samples   int                   `json:"samples"`
	Models    []domain.TrainedModel `json:"models"`
	Failures  []AlgorithmFailure    `json:"failures,omitempty"`
}

// AlgorithmFailure records an algorithm that did not produce a persisted version.
type AlgorithmFailure struct {
	Algorithm domain.Algorithm `json:"algorithm"`
	Error     string           `json:"error"`
}

// sample is one joined training week.
type sample struct {
	weekStart time.Time
	x         []float64
	y         float64
}

// Train labels and featurizes the lookback window ending at endDate, then fits
// and persists one model per algorithm. Algorithms fail independently; the run
// errors only when no version was persisted. Prior versions are left in place.
func (f *Forecaster) Train(ctx context.Context, regionID string, endDate time.Time) (*TrainingResult, error) {
	if endDate.IsZero() {
		endDate = f.now()
	}
	end := domain.DateOnly(endDate)
	start := end.AddDate(0, 0, -7*f.settings.LookbackWeeks)
	log := f.log.WithRegion(regionID)

	labels, err := f.labeler.Label(ctx, regionID, start, end, f.settings.PercentileThreshold)
	if err != nil {
		return nil, err
	}
	rows, err := f.features.BuildFeatures(ctx, regionID, start, end)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 || len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d label weeks and %d feature rows for %s", domain.ErrInsufficientData, len(labels), len(rows), regionID)
	}

	columns := domain.ModelFeatureColumns()
	samples, err := joinWeekly(labels, rows, columns)
	if err != nil {
		return nil, err
	}
	if len(samples) < f.settings.MinSamples {
		return nil, fmt.Errorf("%w: %d joined samples for %s, need %d", domain.ErrInsufficientData, len(samples), regionID, f.settings.MinSamples)
	}

	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i], y[i] = s.x, s.y
	}

	results := make([]*model.Result, len(domain.Algorithms))
	trainErrs := make([]error, len(domain.Algorithms))
	var g errgroup.Group
	for i, algo := range domain.Algorithms {
		g.Go(func() error {
			results[i], trainErrs[i] = model.Train(algo, columns, X, y, f.settings.CVSplits)
			return nil
		})
	}
	_ = g.Wait()

	trainedAt := f.now().UTC().Truncate(time.Second)
	out := &TrainingResult{RegionID: regionID, StartDate: start, EndDate: end, Samples: len(samples)}
	versions := make([]string, 0, len(results))
	var failed []error
	fail := func(algo domain.Algorithm, err error) {
		log.Warn("algorithm not persisted", "algorithm", algo, "error", err)
		out.Failures = append(out.Failures, AlgorithmFailure{Algorithm: algo, Error: err.Error()})
		failed = append(failed, err)
	}
	for i, res := range results {
		algo := domain.Algorithms[i]
		if trainErrs[i] != nil {
			fail(algo, fmt.Errorf("train %s for %s: %w", algo, regionID, trainErrs[i]))
			continue
		}
		meta := domain.TrainedModel{
			ModelVersion:   domain.FormatVersion(algo, regionID, trainedAt),
			RegionID:       regionID,
			Algorithm:      algo,
			TrainedAt:      trainedAt,
			FeatureColumns: columns,
			Metrics:        res.Metrics,
			Calibration:    res.Calibration,
		}
		artifact, err := model.Encode(res.Artifact)
		if err != nil {
			fail(algo, fmt.Errorf("encode %s: %w", meta.ModelVersion, err))
			continue
		}
		if err := f.models.Save(ctx, meta, artifact); err != nil {
			fail(algo, fmt.Errorf("save %s: %w", meta.ModelVersion, err))
			continue
		}
		log.Info("model trained",
			"modelVersion", meta.ModelVersion,
			"cvAucMean", meta.Metrics.CVAUCMean,
			"trainAuc", meta.Metrics.TrainAUC,
			"samples", meta.Metrics.Samples,
		)
		out.Models = append(out.Models, meta)
		versions = append(versions, meta.ModelVersion)
	}
	if len(out.Models) == 0 {
		return nil, errors.Join(failed...)
	}

	f.publish(ctx, events.ModelsTrained{
		BaseEvent: events.NewBaseEvent(),
		RegionID:  regionID,
		Versions:  versions,
		Samples:   len(samples),
	})
	return out, nil
}

// joinWeekly keeps the last feature row of each week and pairs it with that
// week's label. Weeks missing from either side are dropped.
func joinWeekly(labels []domain.ActivityWeek, rows []domain.FeatureRow, columns []string) ([]sample, error) {
	lastRow := make(map[time.Time]*domain.FeatureRow, len(rows)/7+1)
	for i := range rows {
		r := &rows[i]
		prev, ok := lastRow[r.WeekStart]
		if !ok || !r.FeatureDate.Before(prev.FeatureDate) {
			lastRow[r.WeekStart] = r
		}
	}

	out := make([]sample, 0, len(labels))
	for _, l := range labels {
		r, ok := lastRow[l.WeekStart]
		if !ok {
			continue
		}
		x, err := r.Vector(columns)
		if err != nil {
			return nil, err
		}
		y := 0.0
		if l.IsSurge {
			y = 1
		}
		out = append(out, sample{weekStart: l.WeekStart, x: x, y: y})
	}
	return out, nil
}
