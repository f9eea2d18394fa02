package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/forecasting/domain"
)

const forecastColumns = `region_id, forecast_date, target_week_start, target_week_end, model_version,
	p_surge, p80_lower, p80_upper, p20_lower, p20_upper, confidence_score,
	prior_year_p_surge, surge_risk_change_pct`

// UpsertLatest replaces the forecast for (region, target week) in one statement.
func (r *Repository) UpsertLatest(ctx context.Context, p domain.ForecastPrediction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO surge_forecasts (`+forecastColumns+`, updated_at)
		VALUES ($1, $2::date, $3::date, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (region_id, target_week_start) DO UPDATE SET
			forecast_date = EXCLUDED.forecast_date,
			target_week_end = EXCLUDED.target_week_end,
			model_version = EXCLUDED.model_version,
			p_surge = EXCLUDED.p_surge,
			p80_lower = EXCLUDED.p80_lower,
			p80_upper = EXCLUDED.p80_upper,
			p20_lower = EXCLUDED.p20_lower,
			p20_upper = EXCLUDED.p20_upper,
			confidence_score = EXCLUDED.confidence_score,
			prior_year_p_surge = EXCLUDED.prior_year_p_surge,
			surge_risk_change_pct = EXCLUDED.surge_risk_change_pct,
			updated_at = now()
	`, p.RegionID, p.ForecastDate, p.TargetWeekStart, p.TargetWeekEnd, p.ModelVersion,
		p.PSurge, p.P80Lower, p.P80Upper, p.P20Lower, p.P20Upper, p.ConfidenceScore,
		p.PriorYearPSurge, p.SurgeRiskChangePct)
	return err
}

// GetLatest returns the region's forecast with the newest target week, or nil.
func (r *Repository) GetLatest(ctx context.Context, regionID string) (*domain.ForecastPrediction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+forecastColumns+`
		FROM surge_forecasts
		WHERE region_id = $1
		ORDER BY target_week_start DESC
		LIMIT 1
	`, regionID)
	return scanForecast(row)
}

// GetByWeek returns the forecast for the week containing weekStart, or nil.
func (r *Repository) GetByWeek(ctx context.Context, regionID string, weekStart time.Time) (*domain.ForecastPrediction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+forecastColumns+`
		FROM surge_forecasts
		WHERE region_id = $1 AND target_week_start = $2::date
	`, regionID, domain.WeekStart(weekStart))
	return scanForecast(row)
}

// ListByWeek returns every region's forecast for one target week, ordered by region.
func (r *Repository) ListByWeek(ctx context.Context, weekStart time.Time) ([]domain.ForecastPrediction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+forecastColumns+`
		FROM surge_forecasts
		WHERE target_week_start = $1::date
		ORDER BY region_id ASC
	`, domain.WeekStart(weekStart))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ForecastPrediction, 0)
	for rows.Next() {
		p, err := scanForecast(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func scanForecast(row pgx.Row) (*domain.ForecastPrediction, error) {
	var p domain.ForecastPrediction
	err := row.Scan(&p.RegionID, &p.ForecastDate, &p.TargetWeekStart, &p.TargetWeekEnd, &p.ModelVersion,
		&p.PSurge, &p.P80Lower, &p.P80Upper, &p.P20Lower, &p.P20Upper, &p.ConfidenceScore,
		&p.PriorYearPSurge, &p.SurgeRiskChangePct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
