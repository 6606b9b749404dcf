package email

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"staffdesk/internal/platform/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, Message) error {
	return nil
}

type smtpMailer struct {
	dialer dialer
	from   string
	logger *zap.Logger
}

func New(cfg config.Config, logger *zap.Logger) Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return &smtpMailer{dialer: d, from: cfg.EmailFrom, logger: logger.Named("mailer")}
}

func (s *smtpMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("send mail failed", zap.String("subject", msg.Subject), zap.Error(err))
		return err
	}
	return nil
}
