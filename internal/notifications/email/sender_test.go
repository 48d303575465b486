package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"testing"

	"github.com/bissquit/storefront-auth/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "enabled without smtp host",
			config: Config{
				Enabled:     true,
				FromAddress: "shop@example.com",
			},
			wantErr: "SMTP host is required",
		},
		{
			name: "enabled without from address",
			config: Config{
				Enabled:  true,
				SMTPHost: "smtp.example.com",
			},
			wantErr: "from address is required",
		},
		{
			name:    "disabled - no validation",
			config:  Config{Enabled: false},
			wantErr: "",
		},
		{
			name: "valid config",
			config: Config{
				Enabled:     true,
				SMTPHost:    "smtp.example.com",
				FromAddress: "shop@example.com",
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, sender)
			}
		})
	}
}

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(Config{
		Enabled:     true,
		SMTPHost:    "smtp.example.com",
		FromAddress: "shop@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, 587, sender.config.SMTPPort)
	assert.Positive(t, sender.config.DialTimeout)
}

func TestNewSender_AuthSetup(t *testing.T) {
	t.Run("with credentials", func(t *testing.T) {
		sender, err := NewSender(Config{
			Enabled:      true,
			SMTPHost:     "smtp.example.com",
			FromAddress:  "shop@example.com",
			SMTPUser:     "user",
			SMTPPassword: "pass",
		})
		require.NoError(t, err)
		assert.NotNil(t, sender.auth)
	})

	t.Run("without credentials", func(t *testing.T) {
		sender, err := NewSender(Config{
			Enabled:     true,
			SMTPHost:    "smtp.example.com",
			FromAddress: "shop@example.com",
		})
		require.NoError(t, err)
		assert.Nil(t, sender.auth)
	})
}

func TestSender_DisabledSkips(t *testing.T) {
	sender, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)

	err = sender.Send(context.Background(), notifications.Notification{To: "a@x.com", Subject: "hi", Body: "body"})

	assert.NoError(t, err)
}

func TestSender_UnreachableServerIsTransient(t *testing.T) {
	// Grab a free port and close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	sender, err := NewSender(Config{
		Enabled:     true,
		SMTPHost:    "127.0.0.1",
		SMTPPort:    addr.Port,
		FromAddress: "shop@example.com",
	})
	require.NoError(t, err)

	err = sender.Send(context.Background(), notifications.Notification{To: "a@x.com", Subject: "hi", Body: "body"})

	require.Error(t, err)
	assert.ErrorIs(t, err, notifications.ErrTransientFailure)
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "user@example.com", expected: "user@example.com"},
		{input: "Test User <user@example.com>", expected: "user@example.com"},
		{input: "<user@example.com>", expected: "user@example.com"},
		{input: "Storefront <noreply@shop.example.com>", expected: "noreply@shop.example.com"},
		{input: "invalid<", expected: "invalid<"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractEmail(tt.input))
		})
	}
}

func TestSender_BuildMessage(t *testing.T) {
	sender := &Sender{
		config: Config{
			FromAddress: "Storefront <noreply@example.com>",
		},
	}

	msg := string(sender.buildMessage("a@x.com", "Welcome\r\nBcc: evil@x.com", "line one\nline two"))

	assert.Contains(t, msg, "From: Storefront <noreply@example.com>\r\n")
	assert.Contains(t, msg, "To: a@x.com\r\n")
	assert.Contains(t, msg, "Subject: Welcome Bcc: evil@x.com\r\n")
	assert.NotContains(t, msg, "\r\nBcc:")
	assert.Contains(t, msg, "MIME-Version: 1.0\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=\"utf-8\"\r\n")
	assert.Contains(t, msg, "\r\n\r\nline one\r\nline two")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil error", err: nil, retryable: false},
		{name: "421 service unavailable", err: errors.New("421 Service not available"), retryable: true},
		{name: "450 mailbox unavailable", err: errors.New("450 Mailbox unavailable"), retryable: true},
		{name: "451 local error", err: errors.New("451 Local error in processing"), retryable: true},
		{name: "452 insufficient storage", err: errors.New("452 Insufficient storage"), retryable: true},
		{name: "552 mailbox full", err: errors.New("552 Mailbox full"), retryable: true},
		{name: "550 mailbox not found", err: errors.New("550 Mailbox not found"), retryable: false},
		{name: "535 auth failed", err: errors.New("535 Authentication failed"), retryable: false},
		{name: "wrapped textproto 4xx", err: fmt.Errorf("rcpt to: %w", &textproto.Error{Code: 454, Msg: "try later"}), retryable: true},
		{name: "wrapped textproto 5xx", err: fmt.Errorf("rcpt to: %w", &textproto.Error{Code: 553, Msg: "no such user"}), retryable: false},
		{name: "generic error", err: errors.New("some random error"), retryable: false},
		{name: "timeout error", err: &timeoutError{}, retryable: true},
		{name: "network operation error", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

// timeoutError implements net.Error for testing
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
