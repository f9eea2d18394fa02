package repository

import (
	"context"
	"time"

	"leadgen_backend/internal/forecasting/domain"
)

// GetDailyCounts returns total activity per day in [start, end], zero-filled.
func (r *Repository) GetDailyCounts(ctx context.Context, regionID string, start, end time.Time) ([]domain.DailyCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d::date, COUNT(a.id)
		FROM generate_series($2::date, $3::date, interval '1 day') AS d
		LEFT JOIN permit_activity a
			ON a.region_id = $1 AND a.activity_date = d::date
		GROUP BY d
		ORDER BY d ASC
	`, regionID, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.DailyCount, 0)
	for rows.Next() {
		var item domain.DailyCount
		var count int64
		if err := rows.Scan(&item.Date, &count); err != nil {
			return nil, err
		}
		item.Date = domain.DateOnly(item.Date)
		item.Count = int(count)
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// GetWeeklyCounts returns per-kind counts for each Monday-aligned week with activity.
func (r *Repository) GetWeeklyCounts(ctx context.Context, regionID string, start, end time.Time) ([]domain.WeeklyCounts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('week', activity_date)::date AS week_start,
			COUNT(*) FILTER (WHERE kind = 'permit'),
			COUNT(*) FILTER (WHERE kind = 'violation'),
			COUNT(*) FILTER (WHERE kind = 'bid')
		FROM permit_activity
		WHERE region_id = $1 AND activity_date BETWEEN $2::date AND $3::date
		GROUP BY week_start
		ORDER BY week_start ASC
	`, regionID, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.WeeklyCounts, 0)
	for rows.Next() {
		var item domain.WeeklyCounts
		var permits, violations, bids int64
		if err := rows.Scan(&item.WeekStart, &permits, &violations, &bids); err != nil {
			return nil, err
		}
		item.WeekStart = domain.WeekStart(item.WeekStart)
		item.PermitCount = int(permits)
		item.ViolationCount = int(violations)
		item.BidCount = int(bids)
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}
