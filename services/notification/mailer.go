package notification

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"kidsclub/models"

	"go.uber.org/zap"
)

// Mailer delivers an email. Used by the worker.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewMailer returns an SMTP mailer, or a console mailer when no host is set.
func NewMailer(cfg SMTPConfig, logger *zap.Logger) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return NewDevConsoleMailer(logger)
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, msg models.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, buildMessage(m.cfg.From, msg, time.Now())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// buildMessage writes a plain-text RFC 5322 message. Header values are
// stripped of line breaks.
func buildMessage(from string, msg models.EmailMessage, now time.Time) []byte {
	clean := strings.NewReplacer("\r", "", "\n", " ")
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", clean.Replace(from))
	fmt.Fprintf(&b, "To: %s\r\n", clean.Replace(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", clean.Replace(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// DevConsoleMailer logs emails instead of sending them.
type DevConsoleMailer struct {
	logger *zap.Logger
}

func NewDevConsoleMailer(logger *zap.Logger) *DevConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DevConsoleMailer{logger: logger}
}

func (m *DevConsoleMailer) Send(_ context.Context, msg models.EmailMessage) error {
	m.logger.Info("[DEV] email", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	return nil
}
