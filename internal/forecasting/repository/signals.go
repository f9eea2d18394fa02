package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
)

// GetContextSignals reads the jsonb signal bag stored for the region's week.
func (r *Repository) GetContextSignals(ctx context.Context, regionID string, weekStart time.Time) (ports.ContextSignals, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT signals FROM region_context_signals
		WHERE region_id = $1 AND week_start = $2::date
	`, regionID, domain.WeekStart(weekStart)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrContextUnavailable
	}
	if err != nil {
		return nil, err
	}

	signals := ports.ContextSignals{}
	if err := json.Unmarshal(raw, &signals); err != nil {
		return nil, fmt.Errorf("decode context signals for %s: %w", regionID, err)
	}
	return signals, nil
}

// UpsertContextSignals stores the signal bag for a region's week.
func (r *Repository) UpsertContextSignals(ctx context.Context, regionID string, weekStart time.Time, signals ports.ContextSignals) error {
	raw, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO region_context_signals (region_id, week_start, signals, updated_at)
		VALUES ($1, $2::date, $3, now())
		ON CONFLICT (region_id, week_start) DO UPDATE
		SET signals = EXCLUDED.signals, updated_at = now()
	`, regionID, domain.WeekStart(weekStart), raw)
	return err
}
