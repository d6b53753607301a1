package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"Go2TraceSpectra/internal/config"
)

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg      config.SMTPConfig
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth, sendMail: smtp.SendMail}
}

// Name returns the notifier type.
func (n *EmailNotifier) Name() string {
	return "email"
}

// Recipients returns the trimmed, non-empty addresses of the To setting.
func (n *EmailNotifier) Recipients() []string {
	var out []string
	for _, r := range strings.Split(n.cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Send sends an HTML email to the configured recipients.
func (n *EmailNotifier) Send(subject, htmlBody string) error {
	recipients := n.Recipients()
	if len(recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	msg := []byte("To: " + strings.Join(recipients, ", ") + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		htmlBody)

	if err := n.sendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
