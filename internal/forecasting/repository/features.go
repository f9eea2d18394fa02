package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/forecasting/domain"
)

// UpsertFeatures stores each row's full column map as jsonb.
func (r *Repository) UpsertFeatures(ctx context.Context, regionID string, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range rows {
		raw, err := json.Marshal(rows[i].Map())
		if err != nil {
			return fmt.Errorf("encode features for %s: %w", rows[i].FeatureDate.Format(time.DateOnly), err)
		}
		batch.Queue(`
			INSERT INTO surge_features (region_id, feature_date, week_start, features, computed_at)
			VALUES ($1, $2::date, $3::date, $4, now())
			ON CONFLICT (region_id, feature_date) DO UPDATE SET
				week_start = EXCLUDED.week_start,
				features = EXCLUDED.features,
				computed_at = now()
		`, regionID, rows[i].FeatureDate, rows[i].WeekStart, raw)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// GetLatestFeatures returns the newest row dated in (asOf-lookbackDays, asOf], or nil.
func (r *Repository) GetLatestFeatures(ctx context.Context, regionID string, asOf time.Time, lookbackDays int) (*domain.FeatureRow, error) {
	asOf = domain.DateOnly(asOf)
	var date time.Time
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT feature_date, features
		FROM surge_features
		WHERE region_id = $1 AND feature_date > $2::date AND feature_date <= $3::date
		ORDER BY feature_date DESC
		LIMIT 1
	`, regionID, asOf.AddDate(0, 0, -lookbackDays), asOf).Scan(&date, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]float64{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode features for %s: %w", regionID, err)
	}
	row := domain.FeatureRowFromMap(regionID, date, values)
	return &row, nil
}
