// Package email delivers notifications over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/bissquit/storefront-auth/internal/notifications"
)

// Config holds SMTP settings.
type Config struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
	// RequireTLS fails delivery when the server does not offer STARTTLS.
	RequireTLS  bool
	DialTimeout time.Duration
}

// Sender sends one message per SMTP session.
type Sender struct {
	config Config
	auth   smtp.Auth
}

// NewSender creates a new email sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.SMTPHost == "" {
			return nil, errors.New("email sender: SMTP host is required when enabled")
		}
		if config.FromAddress == "" {
			return nil, errors.New("email sender: from address is required when enabled")
		}
	}

	if config.SMTPPort == 0 {
		config.SMTPPort = 587
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 10 * time.Second
	}

	var auth smtp.Auth
	if config.SMTPUser != "" && config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, config.SMTPHost)
	}

	slog.Info("email sender configured",
		"enabled", config.Enabled,
		"smtp_host", config.SMTPHost,
		"smtp_port", config.SMTPPort,
		"from_address", config.FromAddress,
		"require_tls", config.RequireTLS,
	)

	return &Sender{
		config: config,
		auth:   auth,
	}, nil
}

// Send delivers n. Temporary failures are wrapped with
// notifications.ErrTransientFailure so the worker retries them.
func (s *Sender) Send(ctx context.Context, n notifications.Notification) error {
	if !s.config.Enabled {
		slog.Warn("email sender disabled, skipping send", "subject", n.Subject)
		return nil
	}

	if err := s.send(ctx, n); err != nil {
		if IsRetryable(err) {
			return notifications.Transient(err)
		}
		return err
	}
	return nil
}

func (s *Sender) send(ctx context.Context, n notifications.Notification) error {
	msg := s.buildMessage(n.To, n.Subject, n.Body)
	addr := net.JoinHostPort(s.config.SMTPHost, fmt.Sprint(s.config.SMTPPort))

	dialer := &net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{
			ServerName: s.config.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	} else if s.config.RequireTLS {
		return errors.New("smtp server does not support STARTTLS")
	}

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(extractEmail(s.config.FromAddress)); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(n.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// buildMessage renders RFC 5322 headers followed by a plain text body.
func (s *Sender) buildMessage(to, subject, body string) []byte {
	var msg strings.Builder

	fmt.Fprintf(&msg, "From: %s\r\n", s.config.FromAddress)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(msg.String())
}

// sanitizeHeader strips CR and LF so user-provided values cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(v)
}

// extractEmail extracts the email address from formats like "Name <email@example.com>".
func extractEmail(address string) string {
	if idx := strings.Index(address, "<"); idx != -1 {
		end := strings.Index(address, ">")
		if end > idx {
			return address[idx+1 : end]
		}
	}
	return address
}

// IsRetryable reports whether an SMTP error is temporary: network failures
// and 4xx replies. 552 (mailbox full) is treated as temporary as well.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return (protoErr.Code >= 400 && protoErr.Code < 500) || protoErr.Code == 552
	}

	errStr := err.Error()
	for _, code := range []string{"421", "450", "451", "452", "552"} {
		if strings.HasPrefix(errStr, code) || strings.Contains(errStr, ": "+code) {
			return true
		}
	}

	return false
}
