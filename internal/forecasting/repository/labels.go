package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/forecasting/domain"
)

// UpsertLabels writes labeled weeks in a single batch.
func (r *Repository) UpsertLabels(ctx context.Context, regionID string, rows []domain.ActivityWeek) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range rows {
		batch.Queue(`
			INSERT INTO surge_labels (
				region_id, week_start, week_end, permit_count, violation_count, bid_count,
				total_activity, percentile_rank, is_surge, labeled_at
			) VALUES ($1, $2::date, $3::date, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (region_id, week_start) DO UPDATE SET
				week_end = EXCLUDED.week_end,
				permit_count = EXCLUDED.permit_count,
				violation_count = EXCLUDED.violation_count,
				bid_count = EXCLUDED.bid_count,
				total_activity = EXCLUDED.total_activity,
				percentile_rank = EXCLUDED.percentile_rank,
				is_surge = EXCLUDED.is_surge,
				labeled_at = now()
		`, regionID, w.WeekStart, w.WeekEnd, w.PermitCount, w.ViolationCount, w.BidCount,
			w.TotalActivity, w.PercentileRank, w.IsSurge)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// GetLabels returns the labeled weeks starting in [start, end], ascending.
func (r *Repository) GetLabels(ctx context.Context, regionID string, start, end time.Time) ([]domain.ActivityWeek, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT week_start, week_end, permit_count, violation_count, bid_count,
			total_activity, percentile_rank, is_surge
		FROM surge_labels
		WHERE region_id = $1 AND week_start BETWEEN $2::date AND $3::date
		ORDER BY week_start ASC
	`, regionID, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ActivityWeek, 0)
	for rows.Next() {
		item := domain.ActivityWeek{RegionID: regionID}
		if err := rows.Scan(&item.WeekStart, &item.WeekEnd, &item.PermitCount, &item.ViolationCount,
			&item.BidCount, &item.TotalActivity, &item.PercentileRank, &item.IsSurge); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}
