// Package scoring computes lead quality scores from lead attributes, decayed
// feedback and contractor-specific history.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadgen_backend/platform/logger"
)

// ScoreVersion tracks the scoring rules for debugging and analysis.
// Bump this when changing scoring logic significantly.
const ScoreVersion = "2026-v3"

const maxFeedbackAdjustment = 20.0

// Engine combines the rule score, feedback decay, personalization and calibration.
type Engine struct {
	rules      RuleBasedScorer
	decay      *DecayScorer
	personal   *PersonalizedAdjuster
	calibrator *RegionCalibrator
	log        *logger.Logger
	now        func() time.Time
}

// NewEngine wires an Engine. Any collaborator except decay may be nil.
func NewEngine(decay *DecayScorer, personal *PersonalizedAdjuster, calibrator *RegionCalibrator, log *logger.Logger) *Engine {
	if decay == nil {
		decay = NewDecayScorer(nil, DefaultHalfLifeDays)
	}
	if calibrator == nil {
		calibrator = NewRegionCalibrator(0, 0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{decay: decay, personal: personal, calibrator: calibrator, log: log, now: time.Now}
}

// Calibrator exposes the engine's calibrator so jobs can refit it.
func (e *Engine) Calibrator() *RegionCalibrator { return e.calibrator }

// Score computes the lead's score. accountID selects personalization and is
// nil for account-independent batch scoring.
func (e *Engine) Score(ctx context.Context, lead Lead, accountID *uuid.UUID) (LeadScore, error) {
	now := e.now().UTC()
	base, factors := e.rules.Score(lead, now)

	feedback, err := e.decay.FeedbackScore(ctx, lead.ID, now)
	if err != nil {
		return LeadScore{}, fmt.Errorf("feedback for lead %s: %w", lead.ID, err)
	}
	feedback = clampFloat(feedback, -maxFeedbackAdjustment, maxFeedbackAdjustment)

	var personal float64
	if accountID != nil && e.personal != nil {
		personal, err = e.personal.Adjust(ctx, *accountID, lead)
		if err != nil {
			return LeadScore{}, fmt.Errorf("personalize lead %s for account %s: %w", lead.ID, accountID, err)
		}
	}

	final := clampFloat(base+feedback+personal, 0, 100)
	final, prob, level := e.calibrator.Calibrate(lead.RegionID, lead.State, final)

	factors["feedback"] = feedback
	factors["personalized"] = personal

	return LeadScore{
		LeadID:                 lead.ID,
		BaseScore:              base,
		FeedbackAdjustment:     feedback,
		PersonalizedAdjustment: personal,
		FinalScore:             final,
		CalibratedProbability:  prob,
		CalibrationLevel:       level,
		Factors:                factors,
		Version:                ScoreVersion,
		ScoredAt:               now,
	}, nil
}

func clampFloat(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
