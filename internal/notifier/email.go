package notifier

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// EmailSender delivers alerts to a single configured mailbox over SMTP.
type EmailSender struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

func NewEmailSender(cfg EmailConfig) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	const op = "notifier.EmailSender.Send"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
