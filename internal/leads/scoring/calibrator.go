package scoring

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CalibrationLevel records which curve produced a calibrated probability.
type CalibrationLevel string

const (
	LevelRegion CalibrationLevel = "region"
	LevelState  CalibrationLevel = "state"
	LevelNone   CalibrationLevel = "none"
)

const (
	DefaultMinRegionSamples = 20
	DefaultMinStateSamples  = 10
)

// Calibration is one fitted curve, keyed by region slug or state code.
type Calibration struct {
	Level    CalibrationLevel `json:"level"`
	Key      string           `json:"key"`
	Curve    Isotonic         `json:"curve"`
	Samples  int              `json:"samples"`
	FittedAt time.Time        `json:"fittedAt"`
}

// CalibrationStore persists fitted curves.
type CalibrationStore interface {
	ReplaceCalibrations(ctx context.Context, calibrations []Calibration) error
	ListCalibrations(ctx context.Context) ([]Calibration, error)
}

// RegionCalibrator maps raw scores to empirical success probabilities, using a
// region curve when one exists and falling back to the state curve.
type RegionCalibrator struct {
	minRegion int
	minState  int

	mu      sync.RWMutex
	regions map[string]Isotonic
	states  map[string]Isotonic
}

// NewRegionCalibrator creates an empty calibrator. Non-positive minimums use the defaults.
func NewRegionCalibrator(minRegionSamples, minStateSamples int) *RegionCalibrator {
	if minRegionSamples <= 0 {
		minRegionSamples = DefaultMinRegionSamples
	}
	if minStateSamples <= 0 {
		minStateSamples = DefaultMinStateSamples
	}
	return &RegionCalibrator{
		minRegion: minRegionSamples,
		minState:  minStateSamples,
		regions:   map[string]Isotonic{},
		states:    map[string]Isotonic{},
	}
}

// Fit builds region and state curves from outcomes, replacing the current set.
// Groups below their sample minimum get no curve.
func (c *RegionCalibrator) Fit(outcomes []ScoreOutcome, now time.Time) []Calibration {
	type group struct{ x, y []float64 }
	byRegion := map[string]*group{}
	byState := map[string]*group{}
	add := func(m map[string]*group, key string, o ScoreOutcome) {
		if key == "" {
			return
		}
		g, ok := m[key]
		if !ok {
			g = &group{}
			m[key] = g
		}
		won := 0.0
		if o.Won {
			won = 1
		}
		g.x = append(g.x, clampFloat(o.Score, 0, 100))
		g.y = append(g.y, won)
	}
	for _, o := range outcomes {
		add(byRegion, normalizeKey(o.RegionID), o)
		add(byState, normalizeKey(o.State), o)
	}

	var out []Calibration
	for key, g := range byRegion {
		if len(g.x) >= c.minRegion {
			out = append(out, Calibration{Level: LevelRegion, Key: key, Curve: FitIsotonic(g.x, g.y), Samples: len(g.x), FittedAt: now})
		}
	}
	for key, g := range byState {
		if len(g.x) >= c.minState {
			out = append(out, Calibration{Level: LevelState, Key: key, Curve: FitIsotonic(g.x, g.y), Samples: len(g.x), FittedAt: now})
		}
	}
	c.Load(out)
	return out
}

// Load replaces the curves with previously fitted ones.
func (c *RegionCalibrator) Load(calibrations []Calibration) {
	regions := map[string]Isotonic{}
	states := map[string]Isotonic{}
	for _, cal := range calibrations {
		switch cal.Level {
		case LevelRegion:
			regions[normalizeKey(cal.Key)] = cal.Curve
		case LevelState:
			states[normalizeKey(cal.Key)] = cal.Curve
		}
	}
	c.mu.Lock()
	c.regions, c.states = regions, states
	c.mu.Unlock()
}

// Calibrate returns the score clamped to [0, 100] and, when a curve applies,
// its success probability. Without a curve the probability is nil.
func (c *RegionCalibrator) Calibrate(regionID, state string, score float64) (float64, *float64, CalibrationLevel) {
	score = clampFloat(score, 0, 100)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if curve, ok := c.regions[normalizeKey(regionID)]; ok {
		p := curve.Predict(score)
		return score, &p, LevelRegion
	}
	if curve, ok := c.states[normalizeKey(state)]; ok {
		p := curve.Predict(score)
		return score, &p, LevelState
	}
	return score, nil, LevelNone
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
