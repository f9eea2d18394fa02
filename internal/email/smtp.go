package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) newMsg(to []string, subject, htmlContent string, attachments ...Attachment) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content), gomail.WithFileContentType(gomail.ContentType(att.MIMEType)))
	}
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, to []string, subject, htmlContent string, attachments ...Attachment) error {
	if len(to) == 0 {
		return nil
	}
	msg, err := s.newMsg(to, subject, htmlContent, attachments...)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendImpactReport(ctx context.Context, to []string, report ImpactReport) error {
	content, err := renderEmailTemplate("impact_report.html", impactReportEmailData{
		baseEmailData: baseEmailData{
			Title:      "Weekly surge outlook",
			Heading:    "Surge outlook for the week of " + report.TargetWeekStart,
			Subheading: runSummary(report),
		},
		ImpactReport: report,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, impactReportSubject(report), content, report.Attachments...)
}

func (s *SMTPSender) SendJobAlert(ctx context.Context, to []string, alert JobAlert) error {
	content, err := renderEmailTemplate("job_alert.html", jobAlertEmailData{
		baseEmailData: baseEmailData{
			Title:   "Job alert",
			Heading: alert.Job + " needs attention",
		},
		JobAlert: alert,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, fmt.Sprintf(subjectJobAlertFmt, alert.Job, alert.Subject), content)
}
