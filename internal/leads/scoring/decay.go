package scoring

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultHalfLifeDays halves an event's influence every quarter.
	DefaultHalfLifeDays = 90.0
	decayFloor          = 0.01
)

// defaultEventWeights apply when an event carries no explicit weight.
var defaultEventWeights = map[string]float64{
	"won":               20,
	"appointment_set":   15,
	"contacted":         10,
	"positive_feedback": 10,
	"quoted":            5,
	"no_response":       -5,
	"negative_feedback": -10,
	"duplicate":         -10,
	"wrong_contact":     -15,
	"spam":              -20,
}

// DecayScorer turns a lead's quality events into a time-decayed average weight.
type DecayScorer struct {
	source       FeedbackSource
	halfLifeDays float64
}

// NewDecayScorer creates a DecayScorer. A non-positive half-life uses the default.
func NewDecayScorer(source FeedbackSource, halfLifeDays float64) *DecayScorer {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	return &DecayScorer{source: source, halfLifeDays: halfLifeDays}
}

// FeedbackScore loads the lead's events and aggregates them as of now.
func (d *DecayScorer) FeedbackScore(ctx context.Context, leadID uuid.UUID, now time.Time) (float64, error) {
	if d.source == nil {
		return 0, nil
	}
	events, err := d.source.GetQualityEvents(ctx, leadID)
	if err != nil {
		return 0, err
	}
	return d.Aggregate(events, now), nil
}

// Aggregate returns sum(weight*decay)/sum(decay), or 0 with no events.
func (d *DecayScorer) Aggregate(events []QualityEvent, now time.Time) float64 {
	var weighted, total float64
	for _, e := range events {
		decay := d.Decay(now.Sub(e.OccurredAt))
		weighted += eventWeight(e) * decay
		total += decay
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// Decay is 0.5^(days/half-life), never below 0.01. Future events count fully.
func (d *DecayScorer) Decay(age time.Duration) float64 {
	days := math.Max(0, age.Hours()/24)
	return math.Max(decayFloor, math.Pow(0.5, days/d.halfLifeDays))
}

func eventWeight(e QualityEvent) float64 {
	if e.Weight != nil {
		return *e.Weight
	}
	return defaultEventWeights[e.EventType]
}
