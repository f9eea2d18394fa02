package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lead holds the attributes the rules score. YearBuilt is 0 when unknown.
type Lead struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	TradeTags    []string  `json:"tradeTags"`
	Value        float64   `json:"value"`
	YearBuilt    int       `json:"yearBuilt"`
	OwnerKind    string    `json:"ownerKind"`
	Jurisdiction string    `json:"jurisdiction"`
	RegionID     string    `json:"regionId"`
	State        string    `json:"state"`
}

// QualityEvent is one piece of feedback about a lead. A nil Weight falls back
// to the default weight for the event type; an explicit 0 is neutral.
type QualityEvent struct {
	LeadID     uuid.UUID `json:"leadId"`
	EventType  string    `json:"eventType"`
	Weight     *float64  `json:"weight,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// CancellationProfile is a contractor's most recent cancellation survey.
type CancellationProfile struct {
	AccountID             uuid.UUID `json:"accountId"`
	CancelledAt           time.Time `json:"cancelledAt"`
	PrimaryReason         string    `json:"primaryReason"`
	SecondaryReasons      []string  `json:"secondaryReasons"`
	AvgLeadScore          float64   `json:"avgLeadScore"`
	PreferredServiceAreas []string  `json:"preferredServiceAreas"`
	PreferredTradeTypes   []string  `json:"preferredTradeTypes"`
	TotalLeadsPurchased   int       `json:"totalLeadsPurchased"`
	LeadsWon              int       `json:"leadsWon"`
}

// LeadScore is the persisted outcome of scoring one lead.
type LeadScore struct {
	LeadID                 uuid.UUID          `json:"leadId"`
	BaseScore              float64            `json:"baseScore"`
	FeedbackAdjustment     float64            `json:"feedbackAdjustment"`
	PersonalizedAdjustment float64            `json:"personalizedAdjustment"`
	FinalScore             float64            `json:"finalScore"`
	CalibratedProbability  *float64           `json:"calibratedProbability,omitempty"`
	CalibrationLevel       CalibrationLevel   `json:"calibrationLevel"`
	Factors                map[string]float64 `json:"factors"`
	Version                string             `json:"version"`
	ScoredAt               time.Time          `json:"scoredAt"`
}

// ScoreOutcome pairs a past score with whether the lead converted.
type ScoreOutcome struct {
	LeadID   uuid.UUID
	RegionID string
	State    string
	Score    float64
	Won      bool
}

// FeedbackSource returns a lead's quality events.
type FeedbackSource interface {
	GetQualityEvents(ctx context.Context, leadID uuid.UUID) ([]QualityEvent, error)
}

// CancellationSource returns a contractor's latest cancellation profile, or nil.
type CancellationSource interface {
	GetLatestCancellation(ctx context.Context, accountID uuid.UUID) (*CancellationProfile, error)
}
