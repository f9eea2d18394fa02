package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/leads/scoring"
)

// UpsertScore replaces the stored score for a lead.
func (r *Repository) UpsertScore(ctx context.Context, s scoring.LeadScore) error {
	factors, err := json.Marshal(s.Factors)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO lead_scores (
			lead_id, base_score, feedback_adj, personalized_adj, final_score,
			probability, calibration_level, factors, score_version, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (lead_id) DO UPDATE SET
			base_score = EXCLUDED.base_score,
			feedback_adj = EXCLUDED.feedback_adj,
			personalized_adj = EXCLUDED.personalized_adj,
			final_score = EXCLUDED.final_score,
			probability = EXCLUDED.probability,
			calibration_level = EXCLUDED.calibration_level,
			factors = EXCLUDED.factors,
			score_version = EXCLUDED.score_version,
			scored_at = EXCLUDED.scored_at
	`, s.LeadID, s.BaseScore, s.FeedbackAdjustment, s.PersonalizedAdjustment, s.FinalScore,
		s.CalibratedProbability, string(s.CalibrationLevel), factors, s.Version, s.ScoredAt)
	return err
}

// GetScore returns the stored score for a lead.
func (r *Repository) GetScore(ctx context.Context, leadID uuid.UUID) (scoring.LeadScore, error) {
	var s scoring.LeadScore
	var level string
	var factors []byte
	err := r.pool.QueryRow(ctx, `
		SELECT lead_id, base_score, feedback_adj, personalized_adj, final_score,
			probability, calibration_level, factors, score_version, scored_at
		FROM lead_scores
		WHERE lead_id = $1
	`, leadID).Scan(&s.LeadID, &s.BaseScore, &s.FeedbackAdjustment, &s.PersonalizedAdjustment, &s.FinalScore,
		&s.CalibratedProbability, &level, &factors, &s.Version, &s.ScoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return scoring.LeadScore{}, ErrNotFound
	}
	if err != nil {
		return scoring.LeadScore{}, err
	}
	s.CalibrationLevel = scoring.CalibrationLevel(level)
	if err := json.Unmarshal(factors, &s.Factors); err != nil {
		return scoring.LeadScore{}, fmt.Errorf("decode factors: %w", err)
	}
	return s, nil
}

// ListOutcomes returns resolved leads since the given time, for calibration.
func (r *Repository) ListOutcomes(ctx context.Context, since time.Time) ([]scoring.ScoreOutcome, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_id, region_id, state, score, won
		FROM lead_outcomes
		WHERE resolved_at >= $1
		ORDER BY resolved_at ASC, lead_id ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]scoring.ScoreOutcome, 0)
	for rows.Next() {
		var o scoring.ScoreOutcome
		if err := rows.Scan(&o.LeadID, &o.RegionID, &o.State, &o.Score, &o.Won); err != nil {
			return nil, err
		}
		items = append(items, o)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// RecordOutcome stores whether a scored lead converted.
func (r *Repository) RecordOutcome(ctx context.Context, o scoring.ScoreOutcome, resolvedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_outcomes (lead_id, region_id, state, score, won, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id) DO UPDATE SET
			score = EXCLUDED.score,
			won = EXCLUDED.won,
			resolved_at = EXCLUDED.resolved_at
	`, o.LeadID, o.RegionID, o.State, o.Score, o.Won, resolvedAt)
	return err
}

// ReplaceCalibrations swaps the full set of fitted curves in one transaction.
func (r *Repository) ReplaceCalibrations(ctx context.Context, calibrations []scoring.Calibration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM score_calibrations`); err != nil {
		return err
	}
	for _, c := range calibrations {
		curve, err := json.Marshal(c.Curve)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO score_calibrations (level, key, curve, samples, fitted_at)
			VALUES ($1, $2, $3, $4, $5)
		`, string(c.Level), c.Key, curve, c.Samples, c.FittedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListCalibrations loads every fitted curve.
func (r *Repository) ListCalibrations(ctx context.Context) ([]scoring.Calibration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT level, key, curve, samples, fitted_at
		FROM score_calibrations
		ORDER BY level ASC, key ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]scoring.Calibration, 0)
	for rows.Next() {
		var c scoring.Calibration
		var level string
		var curve []byte
		if err := rows.Scan(&level, &c.Key, &curve, &c.Samples, &c.FittedAt); err != nil {
			return nil, err
		}
		c.Level = scoring.CalibrationLevel(level)
		if err := json.Unmarshal(curve, &c.Curve); err != nil {
			return nil, fmt.Errorf("decode calibration %s/%s: %w", level, c.Key, err)
		}
		items = append(items, c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

var _ interface {
	scoring.FeedbackSource
	scoring.CancellationSource
	scoring.CalibrationStore
} = (*Repository)(nil)
