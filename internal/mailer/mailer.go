// Package mailer sends outbound mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/cfpd-planning/intake-assistant/internal/config"
)

// SMTP sends plain-text mail through a single configured relay. One
// client is shared; go-mail handles per-send dialing.
type SMTP struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewSMTP builds a mailer from the mail section of the config.
func NewSMTP(cfg config.MailConfig, logger *slog.Logger) (*SMTP, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return &SMTP{client: client, from: cfg.From, logger: logger}, nil
}

// Send delivers one plain-text message.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	s.logger.Info("mail sent", "to", to, "subject", subject)
	return nil
}
