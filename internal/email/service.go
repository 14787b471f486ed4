package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendInvitation(ctx context.Context, to, userName, clinicName string) error
	SendCustom(ctx context.Context, to, subject, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendInvitation(ctx context.Context, to, userName, clinicName string) error {
	subject := fmt.Sprintf("You have been added to %s", clinicName)
	body := fmt.Sprintf(
		"Hi %s,<br><br>You now have access to <b>%s</b>. Sign in to get started.",
		userName, clinicName,
	)
	return s.SendCustom(ctx, to, subject, body)
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopService discards all mail. Used when SMTP is not configured.
type NoopService struct{}

func (NoopService) SendInvitation(ctx context.Context, to, userName, clinicName string) error {
	return nil
}

func (NoopService) SendCustom(ctx context.Context, to, subject, content string) error {
	return nil
}
