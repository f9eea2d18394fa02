// Package notification provides event handlers for sending operator emails
// in response to batch job events. Jobs publish events and never talk to
// email providers directly.
package notification

import (
	"context"
	"fmt"
	"time"

	"leadgen_backend/internal/email"
	"leadgen_backend/internal/events"
	"leadgen_backend/platform/logger"
)

// Module handles notification-related domain events.
type Module struct {
	sender     email.Sender
	recipients []string
	log        *logger.Logger
}

// New creates a notification module. With no recipients every handler is a no-op.
func New(sender email.Sender, recipients []string, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Module{sender: sender, recipients: recipients, log: log}
}

// RegisterHandlers subscribes to the relevant domain events on the bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	if bus == nil {
		return
	}
	bus.Subscribe(events.WeeklyInferenceCompleted{}.EventName(), m)
	bus.Subscribe(events.LeadScoringCompleted{}.EventName(), m)

	m.log.Info("notification module registered event handlers", "recipients", len(m.recipients))
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	if len(m.recipients) == 0 {
		return nil
	}
	switch e := event.(type) {
	case events.WeeklyInferenceCompleted:
		return m.handleWeeklyInferenceCompleted(ctx, e)
	case events.LeadScoringCompleted:
		return m.handleLeadScoringCompleted(ctx, e)
	default:
		m.log.Warn("unhandled event type in notification module", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleWeeklyInferenceCompleted(ctx context.Context, e events.WeeklyInferenceCompleted) error {
	week := e.TargetWeekStart.Format(time.DateOnly)
	err := m.sender.SendImpactReport(ctx, m.recipients, email.ImpactReport{
		TargetWeekStart: week,
		Successful:      e.Successful,
		Failed:          e.Failed,
		Partial:         e.Partial,
		FailedRegions:   e.FailedRegions,
		HighRiskRegions: e.HighRiskRegions,
		Narrative:       e.Narrative,
	})
	if err != nil {
		m.log.Error("failed to send impact report", "error", err, "runId", e.RunID, "week", week)
		return err
	}
	m.log.Info("impact report sent", "runId", e.RunID, "week", week, "recipients", len(m.recipients))
	return nil
}

func (m *Module) handleLeadScoringCompleted(ctx context.Context, e events.LeadScoringCompleted) error {
	if e.Failed == 0 {
		return nil
	}
	err := m.sender.SendJobAlert(ctx, m.recipients, email.JobAlert{
		Job:     "nightly lead scoring",
		Subject: fmt.Sprintf("%d of %d leads failed to score", e.Failed, e.Scored+e.Failed),
		Detail:  fmt.Sprintf("run %s scored %d leads and skipped %d; see logs for job_run_id=%s", e.RunID, e.Scored, e.Failed, e.RunID),
	})
	if err != nil {
		m.log.Error("failed to send scoring alert", "error", err, "runId", e.RunID)
		return err
	}
	return nil
}
