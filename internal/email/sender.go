// Package email delivers operator notifications over SMTP.
package email

import (
	"context"

	"leadgen_backend/platform/config"
)

// Attachment represents a file attachment for an email.
type Attachment struct {
	Content  []byte // raw file bytes
	FileName string // e.g. "impact-2026-10-19.json"
	MIMEType string // e.g. "application/json"
}

// ImpactReport is the weekly surge summary sent to operators.
type ImpactReport struct {
	TargetWeekStart string
	Successful      int
	Failed          int
	Partial         bool
	FailedRegions   []string
	HighRiskRegions []string
	Narrative       string
	Attachments     []Attachment
}

// JobAlert reports a batch job that finished with failures.
type JobAlert struct {
	Job     string
	Subject string
	Detail  string
}

type Sender interface {
	SendImpactReport(ctx context.Context, to []string, report ImpactReport) error
	SendJobAlert(ctx context.Context, to []string, alert JobAlert) error
}

type NoopSender struct{}

func (NoopSender) SendImpactReport(context.Context, []string, ImpactReport) error { return nil }

func (NoopSender) SendJobAlert(context.Context, []string, JobAlert) error { return nil }

// NewSender returns an SMTP sender, or NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
