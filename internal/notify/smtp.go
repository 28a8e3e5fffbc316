package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends the code as a plain-text mail.
type SMTPMailer struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer returns a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

// SendOTP mails code to email. net/smtp has no context support, so ctx is
// only checked before dialing.
func (m *SMTPMailer) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.sendMail(addr, auth, m.cfg.From, []string{email}, m.message(email, code, expiresAt)); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) message(to, code string, expiresAt time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your registration code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "Your registration code is %s.\r\n", code)
	if !expiresAt.IsZero() {
		fmt.Fprintf(&b, "It expires at %s.\r\n", expiresAt.UTC().Format("15:04 MST on 2 Jan 2006"))
	}
	return []byte(b.String())
}
