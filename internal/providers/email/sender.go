// Package email sends plain-text notifications over SMTP. When no SMTP
// host is configured the sender degrades to logging the message, which
// keeps automation rules runnable in development and in tests.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/posadahq/posada/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidRecipient = errors.New("invalid_recipient")

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SenderParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type smtpSender struct {
	host string
	port string
	from string
	auth smtp.Auth
	log  *zap.Logger
}

func NewSender(p SenderParam) Sender {
	s := &smtpSender{
		host: p.Config.SMTPHost,
		port: p.Config.SMTPPort,
		from: p.Config.SMTPFrom,
		log:  p.Log.Named("email.sender"),
	}
	if p.Config.SMTPUser != "" {
		s.auth = smtp.PlainAuth("", p.Config.SMTPUser, p.Config.SMTPPass, p.Config.SMTPHost)
	}
	return s
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" || !strings.Contains(to, "@") {
		return ErrInvalidRecipient
	}

	if s.host == "" {
		s.log.Info("smtp not configured, message logged only",
			zap.String("to", to),
			zap.String("subject", msg.Subject),
		)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, to, msg.Subject, msg.Body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, s.auth, s.from, []string{to}, []byte(body))
}

var Module = fx.Module("email",
	fx.Provide(NewSender),
)
