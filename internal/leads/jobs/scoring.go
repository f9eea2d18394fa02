// Package jobs runs lead scoring in batch and on demand.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/leads/scoring"
	"leadgen_backend/platform/logger"
)

const (
	jobName              = "nightly_scoring"
	defaultBatchSize     = 500
	defaultOutcomeWindow = 365 * 24 * time.Hour
)

// LeadStore reads leads and writes their scores.
type LeadStore interface {
	ListLeadsAfter(ctx context.Context, cursorTime time.Time, cursorID uuid.UUID, limit int) ([]scoring.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (scoring.Lead, error)
	UpsertScore(ctx context.Context, score scoring.LeadScore) error
}

// OutcomeSource returns resolved leads used to fit calibration curves.
type OutcomeSource interface {
	ListOutcomes(ctx context.Context, since time.Time) ([]scoring.ScoreOutcome, error)
}

// ScoringResult summarizes one nightly run.
type ScoringResult struct {
	RunID        uuid.UUID `json:"runId"`
	Scored       int       `json:"scored"`
	Failed       int       `json:"failed"`
	Calibrations int       `json:"calibrations"`
}

// ScoringJob rescores every lead and refits calibrators from outcomes.
type ScoringJob struct {
	leads         LeadStore
	outcomes      OutcomeSource
	calibrations  scoring.CalibrationStore
	engine        *scoring.Engine
	bus           events.Bus
	log           *logger.Logger
	batchSize     int
	outcomeWindow time.Duration
	now           func() time.Time
}

// NewScoringJob wires the job. Outcomes, calibrations and bus may be nil.
func NewScoringJob(leads LeadStore, outcomes OutcomeSource, calibrations scoring.CalibrationStore, engine *scoring.Engine, bus events.Bus, batchSize int, log *logger.Logger) *ScoringJob {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ScoringJob{
		leads:         leads,
		outcomes:      outcomes,
		calibrations:  calibrations,
		engine:        engine,
		bus:           bus,
		log:           log,
		batchSize:     batchSize,
		outcomeWindow: defaultOutcomeWindow,
		now:           time.Now,
	}
}

// LoadCalibrators restores the persisted curves into the engine.
func (j *ScoringJob) LoadCalibrators(ctx context.Context) error {
	if j.calibrations == nil {
		return nil
	}
	cals, err := j.calibrations.ListCalibrations(ctx)
	if err != nil {
		return fmt.Errorf("list calibrations: %w", err)
	}
	j.engine.Calibrator().Load(cals)
	return nil
}

// RefitCalibrators fits region and state curves from the outcome window and persists them.
func (j *ScoringJob) RefitCalibrators(ctx context.Context) (int, error) {
	if j.outcomes == nil {
		return 0, nil
	}
	now := j.now().UTC()
	outcomes, err := j.outcomes.ListOutcomes(ctx, now.Add(-j.outcomeWindow))
	if err != nil {
		return 0, fmt.Errorf("list outcomes: %w", err)
	}
	cals := j.engine.Calibrator().Fit(outcomes, now)
	if j.calibrations != nil {
		if err := j.calibrations.ReplaceCalibrations(ctx, cals); err != nil {
			return 0, fmt.Errorf("persist calibrations: %w", err)
		}
	}
	return len(cals), nil
}

// Run refits calibrators, then pages through every lead scoring it without
// personalization. A failing lead is logged and counted; the run continues.
func (j *ScoringJob) Run(ctx context.Context) (*ScoringResult, error) {
	result := &ScoringResult{RunID: uuid.New()}
	ctx = context.WithValue(ctx, logger.JobRunIDKey, result.RunID.String())
	log := j.log.WithContext(ctx)

	n, err := j.RefitCalibrators(ctx)
	if err != nil {
		log.Warn("calibration refit failed, using stored curves", "error", err)
		if loadErr := j.LoadCalibrators(ctx); loadErr != nil {
			log.Warn("failed to load stored calibrations", "error", loadErr)
		}
	}
	result.Calibrations = n

	cursorTime := time.Time{}
	cursorID := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		leads, err := j.leads.ListLeadsAfter(ctx, cursorTime, cursorID, j.batchSize)
		if err != nil {
			return result, fmt.Errorf("list leads: %w", err)
		}
		if len(leads) == 0 {
			break
		}

		for _, lead := range leads {
			cursorTime = lead.CreatedAt
			cursorID = lead.ID

			if err := j.scoreAndStore(ctx, lead); err != nil {
				result.Failed++
				log.JobEvent(jobName, lead.ID.String(), "failed", err)
				continue
			}
			result.Scored++
		}

		if len(leads) < j.batchSize {
			break
		}
	}

	log.Info("lead scoring completed", "scored", result.Scored, "failed", result.Failed, "calibrations", result.Calibrations)
	if j.bus != nil {
		j.bus.Publish(ctx, events.LeadScoringCompleted{
			BaseEvent: events.NewBaseEvent(),
			RunID:     result.RunID,
			Scored:    result.Scored,
			Failed:    result.Failed,
		})
	}
	return result, nil
}

func (j *ScoringJob) scoreAndStore(ctx context.Context, lead scoring.Lead) error {
	score, err := j.engine.Score(ctx, lead, nil)
	if err != nil {
		return err
	}
	return j.leads.UpsertScore(ctx, score)
}

// ScoreForAccount scores one lead for a contractor, applying their
// cancellation history. The result is not persisted.
func (j *ScoringJob) ScoreForAccount(ctx context.Context, leadID uuid.UUID, accountID *uuid.UUID) (scoring.LeadScore, error) {
	lead, err := j.leads.GetLead(ctx, leadID)
	if err != nil {
		return scoring.LeadScore{}, err
	}
	return j.engine.Score(ctx, lead, accountID)
}
