package notify

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
)

// EmailNotifier sends the report via SMTP
type EmailNotifier struct {
	cfg config.EmailConfig
}

// NewEmailNotifier creates an email notifier
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// Name returns the channel name
func (e *EmailNotifier) Name() string { return "email" }

// Send delivers the notification over SMTP with PLAIN auth.
// Servers without an explicit port default to 587.
func (e *EmailNotifier) Send(n Notification) error {
	if e.cfg.SMTPServer == "" {
		return fmt.Errorf("no smtp server configured")
	}
	addr := e.cfg.SMTPServer
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "587")
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid smtp server %q: %w", e.cfg.SMTPServer, err)
	}

	msg := strings.Join([]string{
		"From: " + e.cfg.User,
		"To: " + e.cfg.To,
		"Subject: " + n.Title,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		n.Message,
	}, "\r\n")

	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Pass, host)
	return smtp.SendMail(addr, auth, e.cfg.User, []string{e.cfg.To}, []byte(msg))
}
