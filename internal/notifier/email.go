package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string

	// SubjectPrefix is prepended to every subject, e.g. "[Hulken]"
	SubjectPrefix string
}

// EmailNotifier sends the plain-text body over SMTP. smtp.SendMail upgrades
// to STARTTLS when the server offers it.
type EmailNotifier struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, notification Notification) error {
	if e.cfg.Host == "" || len(e.cfg.To) == 0 {
		return fmt.Errorf("email notifier needs a host and at least one recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	if err := e.sendMail(addr, auth, e.cfg.From, e.cfg.To, e.message(notification)); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}
	return nil
}

func (e *EmailNotifier) subject(n Notification) string {
	subject := n.Title
	if len(n.Entities) > 0 {
		subject = fmt.Sprintf("%s: %d issue(s) detected", n.Title, len(n.Entities))
	}
	if e.cfg.SubjectPrefix != "" {
		subject = e.cfg.SubjectPrefix + " " + subject
	}
	return subject
}

// message renders an RFC 5322 message with CRLF line endings.
func (e *EmailNotifier) message(n Notification) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k + ": " + v + "\r\n")
	}
	header("From", e.cfg.From)
	header("To", strings.Join(e.cfg.To, ", "))
	header("Subject", e.subject(n))
	header("Date", n.Timestamp.UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")

	body := n.Body
	if body == "" {
		body = n.Title + "\n"
	}
	if n.RunID != "" {
		body += "\nRun: " + n.RunID + "\n"
	}
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
