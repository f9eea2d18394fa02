// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadgen_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Forecasting Domain Events
// =============================================================================

// ForecastGenerated is published after a surge forecast has been persisted.
type ForecastGenerated struct {
	BaseEvent
	RegionID        string    `json:"regionId"`
	TargetWeekStart time.Time `json:"targetWeekStart"`
	ModelVersion    string    `json:"modelVersion"`
	PSurge          float64   `json:"pSurge"`
}

func (e ForecastGenerated) EventName() string { return "forecasting.forecast.generated" }

// ModelsTrained is published after a training run persisted its model versions.
type ModelsTrained struct {
	BaseEvent
	RegionID string   `json:"regionId"`
	Versions []string `json:"versions"`
	Samples  int      `json:"samples"`
}

func (e ModelsTrained) EventName() string { return "forecasting.models.trained" }

// WeeklyInferenceCompleted is published when the weekly batch finishes, partial or not.
type WeeklyInferenceCompleted struct {
	BaseEvent
	RunID           uuid.UUID `json:"runId"`
	TargetWeekStart time.Time `json:"targetWeekStart"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	Partial         bool      `json:"partial"`
	FailedRegions   []string  `json:"failedRegions,omitempty"`
	// HighRiskRegions are the compared regions whose current forecast is high risk.
	HighRiskRegions []string `json:"highRiskRegions,omitempty"`
	// Narrative is empty when no impact report was built.
	Narrative string `json:"narrative,omitempty"`
}

func (e WeeklyInferenceCompleted) EventName() string { return "forecasting.weekly.completed" }

// =============================================================================
// Lead Scoring Domain Events
// =============================================================================

// LeadScoringCompleted is published when the nightly scoring job finishes.
type LeadScoringCompleted struct {
	BaseEvent
	RunID  uuid.UUID `json:"runId"`
	Scored int       `json:"scored"`
	Failed int       `json:"failed"`
}

func (e LeadScoringCompleted) EventName() string { return "leads.scoring.completed" }
