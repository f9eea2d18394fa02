package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"leadgen_backend/internal/forecasting/domain"
)

// ModelRecord is a surge_models row. Exactly one of ArtifactKey or Artifact is
// normally set: the blob key when object storage is enabled, the inline bytes otherwise.
type ModelRecord struct {
	Model       domain.TrainedModel
	ArtifactKey *string
	Artifact    []byte
}

// InsertModel stores a new model version; an existing version yields domain.ErrModelExists.
func (r *Repository) InsertModel(ctx context.Context, rec ModelRecord) error {
	columns, err := json.Marshal(rec.Model.FeatureColumns)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(rec.Model.Metrics)
	if err != nil {
		return err
	}
	calibration, err := json.Marshal(rec.Model.Calibration)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO surge_models (
			model_version, region_id, algorithm, trained_at, feature_columns,
			metrics, calibration, artifact_key, artifact, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, rec.Model.ModelVersion, rec.Model.RegionID, string(rec.Model.Algorithm), rec.Model.TrainedAt,
		columns, metrics, calibration, rec.ArtifactKey, rec.Artifact)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrModelExists, rec.Model.ModelVersion)
	}
	return err
}

// GetModel loads one version or returns domain.ErrModelNotFound.
func (r *Repository) GetModel(ctx context.Context, version string) (ModelRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT model_version, region_id, algorithm, trained_at, feature_columns,
			metrics, calibration, artifact_key, artifact
		FROM surge_models
		WHERE model_version = $1
	`, version)

	rec, err := scanModel(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return ModelRecord{}, fmt.Errorf("%w: %s", domain.ErrModelNotFound, version)
	}
	return rec, err
}

// ListModels returns a region's model metadata oldest first, without artifacts.
func (r *Repository) ListModels(ctx context.Context, regionID string) ([]domain.TrainedModel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT model_version, region_id, algorithm, trained_at, feature_columns,
			metrics, calibration, artifact_key, NULL::bytea
		FROM surge_models
		WHERE region_id = $1
		ORDER BY created_at ASC, model_version ASC
	`, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TrainedModel, 0)
	for rows.Next() {
		rec, err := scanModel(rows, false)
		if err != nil {
			return nil, err
		}
		items = append(items, rec.Model)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func scanModel(row pgx.Row, withArtifact bool) (ModelRecord, error) {
	var rec ModelRecord
	var algorithm string
	var columns, metrics, calibration []byte
	if err := row.Scan(&rec.Model.ModelVersion, &rec.Model.RegionID, &algorithm, &rec.Model.TrainedAt,
		&columns, &metrics, &calibration, &rec.ArtifactKey, &rec.Artifact); err != nil {
		return ModelRecord{}, err
	}
	rec.Model.Algorithm = domain.Algorithm(algorithm)
	if err := json.Unmarshal(columns, &rec.Model.FeatureColumns); err != nil {
		return ModelRecord{}, fmt.Errorf("decode feature columns: %w", err)
	}
	if err := json.Unmarshal(metrics, &rec.Model.Metrics); err != nil {
		return ModelRecord{}, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal(calibration, &rec.Model.Calibration); err != nil {
		return ModelRecord{}, fmt.Errorf("decode calibration: %w", err)
	}
	if !withArtifact {
		rec.Artifact = nil
	}
	return rec, nil
}
