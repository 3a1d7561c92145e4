package services

import (
	"errors"
	"fmt"
	"log"
	"net/smtp"

	"github.com/CrowderSoup/prioritease/config"
)

// Mailer sends outbound email.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// NewMailer returns an SMTP mailer, or a logging mailer when SMTP is not configured.
func NewMailer(cfg config.SMTP, logger *log.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	cfg  config.SMTP
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.Port == "" || m.cfg.Username == "" || m.cfg.Password == "" {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, htmlBody)

	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	if err := send(addr, auth, from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(to, subject, htmlBody string) error {
	m.logger.Printf("SMTP not configured, mail to %s: %s\n%s", to, subject, htmlBody)
	return nil
}
