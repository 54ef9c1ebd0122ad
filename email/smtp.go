package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-magic-auth/internal/config"
)

var _ Sender = (*SMTPSender)(nil)

// SMTPSender delivers messages over plain SMTP with AUTH PLAIN.
type SMTPSender struct {
	host     string
	port     string
	account  string
	password string
	from     string
}

// NewSMTPSender creates a sender from SMTP configuration.
func NewSMTPSender(cfg config.SmtpConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.GetSmtpHost(),
		port:     cfg.GetSmtpPort(),
		account:  cfg.GetSmtpAccount(),
		password: cfg.GetSmtpPassword(),
		from:     cfg.GetEmailFrom(),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("From: %s\r\n", s.from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", to))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)
	body.WriteString("\r\n")

	auth := smtp.PlainAuth("", s.account, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(body.String())); err != nil {
		return errors.Wrap(err, "[SMTPSender.Send] smtp.SendMail")
	}
	return nil
}
