package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Mailer sends plain-text mail over SMTP. It is deliberately thin: the
// pipeline produces one small message per status change and nothing else.
type Mailer struct {
	host string
	port string
	from string

	username string
	password string
}

func New(host, port, from string, opts ...Option) *Mailer {
	m := &Mailer{
		host: host,
		port: port,
		from: from,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Mailer - SendEmail - ctx.Err: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("From: " + m.from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := net.JoinHostPort(m.host, m.port)

	err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(sb.String()))
	if err != nil {
		return fmt.Errorf("Mailer - SendEmail - smtp.SendMail: %w", err)
	}

	return nil
}
