// Package repository stores leads, their feedback and their scores in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadgen_backend/internal/leads/scoring"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, created_at, trade_tags, project_value, year_built, owner_kind, jurisdiction, region_id, state`

// GetLead loads one lead.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (scoring.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return scoring.Lead{}, ErrNotFound
	}
	return lead, err
}

// ListLeadsAfter pages leads by (created_at, id), strictly after the cursor.
func (r *Repository) ListLeadsAfter(ctx context.Context, cursorTime time.Time, cursorID uuid.UUID, limit int) ([]scoring.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE (created_at > $1 OR (created_at = $1 AND id > $2))
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, cursorTime, cursorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]scoring.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return leads, nil
}

func scanLead(row pgx.Row) (scoring.Lead, error) {
	var lead scoring.Lead
	err := row.Scan(&lead.ID, &lead.CreatedAt, &lead.TradeTags, &lead.Value, &lead.YearBuilt,
		&lead.OwnerKind, &lead.Jurisdiction, &lead.RegionID, &lead.State)
	return lead, err
}
