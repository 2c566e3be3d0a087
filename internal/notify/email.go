package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds SMTP configuration.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// EmailNotifier delivers notifications over SMTP. Unconfigured instances
// refuse to send, which makes Multi fall through to the next surface.
type EmailNotifier struct {
	config SMTPConfig
	server string
	auth   smtp.Auth
	to     string

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an email surface addressed to the signed-in
// user's address.
func NewEmailNotifier(config SMTPConfig, to string) *EmailNotifier {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailNotifier{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		to:     to,
		send:   smtp.SendMail,
	}
}

// IsConfigured reports whether SMTP settings are present.
func (e *EmailNotifier) IsConfigured() bool {
	return e.config.Host != "" && e.config.Port != "" && e.config.From != "" && e.to != ""
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if !e.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := e.config.From
	if e.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", e.config.FromName, e.config.From)
	}

	body := n.Body
	if n.ThreadID != "" {
		body += "\r\n\r\nOpen thread: huddle://thread/" + n.ThreadID
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		e.to,
		from,
		sanitizeHeader(n.Title),
		body,
	))

	if err := e.send(e.server, e.auth, e.config.From, []string{e.to}, msg); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	return nil
}

// sanitizeHeader strips CRLF so notification titles cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
