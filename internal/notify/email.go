// Package notify emails operators when a batch aborts.
package notify

import (
	"fmt"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"lecnote/internal/config"
	appLog "lecnote/internal/log"
)

// AbortReport describes a batch that stopped on a fatal error.
type AbortReport struct {
	RunID    string
	File     string
	Stage    string
	ExitCode int
	Err      error
	At       time.Time
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers abort reports via SMTP.
type EmailSender struct {
	cfg    config.NotifyConfig
	dialer dialer
	logger *appLog.Logger
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg config.NotifyConfig, logger *appLog.Logger) *EmailSender {
	d := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	d.Timeout = 10 * time.Second
	return &EmailSender{cfg: cfg, dialer: d, logger: logger}
}

// Subject renders the mail subject for r.
func Subject(r AbortReport) string {
	return fmt.Sprintf("[lecnote] batch aborted at %s (exit %d): %s", r.Stage, r.ExitCode, r.File)
}

// Body renders the plain-text mail body for r.
func Body(r AbortReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:       %s\n", r.RunID)
	fmt.Fprintf(&b, "Time:      %s\n", r.At.Format(time.RFC3339))
	fmt.Fprintf(&b, "File:      %s\n", r.File)
	fmt.Fprintf(&b, "Stage:     %s\n", r.Stage)
	fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	if r.Err != nil {
		fmt.Fprintf(&b, "Error:     %v\n", r.Err)
	}
	b.WriteString("\nThe source transcript was left in place and will be retried on the next run.\n")
	return b.String()
}

// SendAbort emails r. It is a no-op when notifications are disabled.
func (s *EmailSender) SendAbort(r AbortReport) error {
	if s == nil || !s.cfg.Enabled {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To)
	m.SetHeader("Subject", Subject(r))
	m.SetBody("text/plain", Body(r))

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("abort email failed", err, "to", s.cfg.To, "file", r.File)
		return fmt.Errorf("notify: send to %s: %w", s.cfg.To, err)
	}
	s.logger.Info("abort email sent", "to", s.cfg.To, "file", r.File)
	return nil
}
