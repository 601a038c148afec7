package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"plannerrun/internal/apperr"
	"plannerrun/internal/config"
)

// SMTPMailer sends single plain-text messages through one relay. Each Send
// dials, upgrades with STARTTLS when offered, authenticates and disconnects.
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	password string
	timeout  time.Duration
}

func NewSMTPMailer(cfg config.SMTP) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is not configured")
	}
	if cfg.Sender == "" {
		return nil, errors.New("smtp sender is not configured")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     port,
		sender:   cfg.Sender,
		password: cfg.Password,
		timeout:  timeout,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, body string) error {
	const op = "mailer.Send"

	msg, err := m.message(recipient, subject, body)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, op, err)
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.sender),
			mail.WithPassword(m.password),
		)
	}
	c, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return apperr.Wrap(apperr.KindProvider, op, fmt.Errorf("failed to create smtp client: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return apperr.FromContext(apperr.KindProvider, op, fmt.Errorf("failed to send mail to %s: %w", recipient, err))
	}
	return nil
}

func (m *SMTPMailer) message(recipient, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.sender); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.sender, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
