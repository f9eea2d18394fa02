// Package domain defines the records shared by the demand-surge pipeline:
// labeled activity weeks, feature rows, trained model metadata and forecasts.
package domain

import (
	"time"
)

// Algorithm identifies a model family trained for a region.
type Algorithm string

const (
	AlgorithmGradientBoost Algorithm = "gradient_boost"
	AlgorithmLightGBM      Algorithm = "lightgbm"
	AlgorithmXGBoost       Algorithm = "xgboost"
)

// Algorithms lists every supported algorithm in preference order.
var Algorithms = []Algorithm{AlgorithmGradientBoost, AlgorithmLightGBM, AlgorithmXGBoost}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	for _, known := range Algorithms {
		if a == known {
			return true
		}
	}
	return false
}

// DailyCount is one zero-filled day of permit activity.
type DailyCount struct {
	Date  time.Time
	Count int
}

// WeeklyCounts is the raw weekly activity breakdown for a region.
type WeeklyCounts struct {
	WeekStart      time.Time
	PermitCount    int
	ViolationCount int
	BidCount       int
}

// ActivityWeek is one labeled calendar week.
type ActivityWeek struct {
	RegionID       string    `json:"regionId" validate:"required"`
	WeekStart      time.Time `json:"weekStart" validate:"monday"`
	WeekEnd        time.Time `json:"weekEnd"`
	PermitCount    int       `json:"permitCount" validate:"gte=0"`
	ViolationCount int       `json:"violationCount" validate:"gte=0"`
	BidCount       int       `json:"bidCount" validate:"gte=0"`
	TotalActivity  int       `json:"totalActivity" validate:"gte=0"`
	PercentileRank float64   `json:"percentileRank" validate:"gte=0,lte=100"`
	IsSurge        bool      `json:"isSurge"`
}

// NewActivityWeek builds an unlabeled week from raw counts.
func NewActivityWeek(regionID string, counts WeeklyCounts) ActivityWeek {
	start := WeekStart(counts.WeekStart)
	return ActivityWeek{
		RegionID:       regionID,
		WeekStart:      start,
		WeekEnd:        start.AddDate(0, 0, 6),
		PermitCount:    counts.PermitCount,
		ViolationCount: counts.ViolationCount,
		BidCount:       counts.BidCount,
		TotalActivity:  counts.PermitCount + counts.ViolationCount + counts.BidCount,
	}
}

// ModelMetrics are the training diagnostics persisted with each model version.
type ModelMetrics struct {
	CVAUCMean         float64            `json:"cvAucMean"`
	CVAUCStd          float64            `json:"cvAucStd"`
	CVFoldsScored     int                `json:"cvFoldsScored"`
	TrainAUC          float64            `json:"trainAuc"`
	TrainBrier        float64            `json:"trainBrier"`
	TrainF1           float64            `json:"trainF1"`
	TrainPrecision    float64            `json:"trainPrecision"`
	TrainRecall       float64            `json:"trainRecall"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	Samples           int                `json:"samples"`
	PositiveSamples   int                `json:"positiveSamples"`
}

// CalibrationInfo describes how raw model output is mapped to probability.
type CalibrationInfo struct {
	Method string  `json:"method"`
	A      float64 `json:"a,omitempty"`
	B      float64 `json:"b,omitempty"`
	Folds  int     `json:"folds,omitempty"`
}

// TrainedModel is the immutable metadata for one model version.
type TrainedModel struct {
	ModelVersion   string          `json:"modelVersion"`
	RegionID       string          `json:"regionId"`
	Algorithm      Algorithm       `json:"algorithm"`
	TrainedAt      time.Time       `json:"trainedAt"`
	FeatureColumns []string        `json:"featureColumns"`
	Metrics        ModelMetrics    `json:"metrics"`
	Calibration    CalibrationInfo `json:"calibration"`
}

// ForecastPrediction is a calibrated surge probability for one target week.
type ForecastPrediction struct {
	RegionID           string    `json:"regionId"`
	ForecastDate       time.Time `json:"forecastDate"`
	TargetWeekStart    time.Time `json:"targetWeekStart"`
	TargetWeekEnd      time.Time `json:"targetWeekEnd"`
	ModelVersion       string    `json:"modelVersion"`
	PSurge             float64   `json:"pSurge"`
	P80Lower           float64   `json:"p80Lower"`
	P80Upper           float64   `json:"p80Upper"`
	P20Lower           float64   `json:"p20Lower"`
	P20Upper           float64   `json:"p20Upper"`
	ConfidenceScore    float64   `json:"confidenceScore"`
	PriorYearPSurge    *float64  `json:"priorYearPSurge,omitempty"`
	SurgeRiskChangePct *float64  `json:"surgeRiskChangePct,omitempty"`
}

// WeekStart returns the Monday (UTC midnight) of the week containing t.
func WeekStart(t time.Time) time.Time {
	d := DateOnly(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
