package model

import (
	"encoding/json"
	"fmt"

	"leadgen_backend/internal/forecasting/domain"
)

// Artifact is everything needed to score a feature row: the fitted ensemble,
// its optional scaler and calibrator, and the column order it expects.
type Artifact struct {
	Algorithm      domain.Algorithm `json:"algorithm"`
	FeatureColumns []string         `json:"featureColumns"`
	Params         BoosterParams    `json:"params"`
	Scaler         *StandardScaler  `json:"scaler,omitempty"`
	Ensemble       *Ensemble        `json:"ensemble"`
	Calibration    *Platt           `json:"calibration,omitempty"`
}

// PredictProba returns the surge probability for x, ordered like FeatureColumns.
func (a *Artifact) PredictProba(x []float64) (float64, error) {
	if len(x) != len(a.FeatureColumns) {
		return 0, fmt.Errorf("expected %d features, got %d", len(a.FeatureColumns), len(x))
	}
	if a.Scaler != nil {
		x = a.Scaler.Transform(x)
	}
	margin := a.Ensemble.Raw(x)
	if a.Calibration != nil {
		return a.Calibration.Apply(margin), nil
	}
	return sigmoid(margin), nil
}

// PredictRow scores a feature row using the artifact's column order.
func (a *Artifact) PredictRow(row *domain.FeatureRow) (float64, error) {
	x, err := row.Vector(a.FeatureColumns)
	if err != nil {
		return 0, err
	}
	return a.PredictProba(x)
}

// Encode serializes the artifact.
func Encode(a *Artifact) ([]byte, error) {
	return json.Marshal(a)
}

// Decode restores an artifact written by Encode.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if !a.Algorithm.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAlgorithm, a.Algorithm)
	}
	if a.Ensemble == nil {
		return nil, fmt.Errorf("decode model artifact: missing ensemble")
	}
	if a.Scaler != nil && (len(a.Scaler.Mean) != len(a.FeatureColumns) || len(a.Scaler.Scale) != len(a.FeatureColumns)) {
		return nil, fmt.Errorf("decode model artifact: scaler does not match %d columns", len(a.FeatureColumns))
	}
	return &a, nil
}
