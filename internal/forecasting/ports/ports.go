// Package ports declares the collaborators the surge pipeline consumes.
// Postgres, MinIO and Redis adapters implement them; tests use in-memory fakes.
package ports

import (
	"context"
	"time"

	"leadgen_backend/internal/forecasting/domain"
)

// ActivitySource reads raw permit/violation/bid activity.
type ActivitySource interface {
	// GetDailyCounts returns one entry per day in [start, end], zero-filled, ascending.
	GetDailyCounts(ctx context.Context, regionID string, start, end time.Time) ([]domain.DailyCount, error)
	// GetWeeklyCounts returns the weeks that have activity in [start, end]; gaps are omitted.
	GetWeeklyCounts(ctx context.Context, regionID string, start, end time.Time) ([]domain.WeeklyCounts, error)
}

// ContextSignals are named contextual measurements for a region and week.
// Keys are feature column names; absent keys fall back to the column fill policy.
type ContextSignals map[string]float64

// ContextSource supplies contractor, backlog, demographic, economic and weather signals.
// Implementations return domain.ErrContextUnavailable when they have nothing for the week.
type ContextSource interface {
	GetContextSignals(ctx context.Context, regionID string, weekStart time.Time) (ContextSignals, error)
}

// FeatureStore persists engineered features keyed by (region_id, feature_date).
type FeatureStore interface {
	UpsertFeatures(ctx context.Context, regionID string, rows []domain.FeatureRow) error
	// GetLatestFeatures returns the newest row in (asOf-lookbackDays, asOf], or nil.
	GetLatestFeatures(ctx context.Context, regionID string, asOf time.Time, lookbackDays int) (*domain.FeatureRow, error)
}

// LabelStore persists labeled weeks keyed by (region_id, week_start).
type LabelStore interface {
	UpsertLabels(ctx context.Context, regionID string, rows []domain.ActivityWeek) error
	GetLabels(ctx context.Context, regionID string, start, end time.Time) ([]domain.ActivityWeek, error)
}

// ModelStore persists immutable model versions.
type ModelStore interface {
	Save(ctx context.Context, model domain.TrainedModel, artifact []byte) error
	// Load returns the metadata and serialized artifact, or domain.ErrModelNotFound.
	Load(ctx context.Context, version string) (domain.TrainedModel, []byte, error)
	// ListVersions returns the region's models ordered by creation time, oldest first.
	ListVersions(ctx context.Context, regionID string) ([]domain.TrainedModel, error)
}

// ForecastStore keeps one forecast per (region_id, target_week_start).
type ForecastStore interface {
	UpsertLatest(ctx context.Context, prediction domain.ForecastPrediction) error
	GetLatest(ctx context.Context, regionID string) (*domain.ForecastPrediction, error)
	GetByWeek(ctx context.Context, regionID string, weekStart time.Time) (*domain.ForecastPrediction, error)
}

// ReportStore persists rendered impact reports.
type ReportStore interface {
	SaveReport(ctx context.Context, name string, payload []byte) error
}
