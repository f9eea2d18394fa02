package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/leads/scoring"
)

// GetQualityEvents returns every quality event recorded for a lead, oldest first.
func (r *Repository) GetQualityEvents(ctx context.Context, leadID uuid.UUID) ([]scoring.QualityEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_id, event_type, weight, occurred_at
		FROM lead_quality_events
		WHERE lead_id = $1
		ORDER BY occurred_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]scoring.QualityEvent, 0)
	for rows.Next() {
		var e scoring.QualityEvent
		if err := rows.Scan(&e.LeadID, &e.EventType, &e.Weight, &e.OccurredAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// InsertQualityEvent records feedback about a lead.
func (r *Repository) InsertQualityEvent(ctx context.Context, e scoring.QualityEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_quality_events (id, lead_id, event_type, weight, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), e.LeadID, e.EventType, e.Weight, e.OccurredAt)
	return err
}

// GetLatestCancellation returns the account's most recent cancellation survey, or nil.
func (r *Repository) GetLatestCancellation(ctx context.Context, accountID uuid.UUID) (*scoring.CancellationProfile, error) {
	var p scoring.CancellationProfile
	err := r.pool.QueryRow(ctx, `
		SELECT account_id, cancelled_at, primary_reason, secondary_reasons, avg_lead_score,
			preferred_service_areas, preferred_trade_types, total_leads_purchased, leads_won
		FROM cancellation_profiles
		WHERE account_id = $1
		ORDER BY cancelled_at DESC
		LIMIT 1
	`, accountID).Scan(&p.AccountID, &p.CancelledAt, &p.PrimaryReason, &p.SecondaryReasons, &p.AvgLeadScore,
		&p.PreferredServiceAreas, &p.PreferredTradeTypes, &p.TotalLeadsPurchased, &p.LeadsWon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
