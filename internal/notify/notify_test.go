// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func TestNewSMTPNotifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SMTPConfig
		wantErr bool
	}{
		{name: "minimal", cfg: SMTPConfig{Host: "smtp.example.com", From: "no-reply@example.com"}},
		{name: "authenticated", cfg: SMTPConfig{
			Host: "smtp.example.com", Port: 587, From: "no-reply@example.com",
			Username: "mailer", Password: "secret", TLS: "opportunistic", Timeout: time.Second,
		}},
		{name: "missing host", cfg: SMTPConfig{From: "no-reply@example.com"}, wantErr: true},
		{name: "missing from", cfg: SMTPConfig{Host: "smtp.example.com"}, wantErr: true},
		{name: "bad from", cfg: SMTPConfig{Host: "smtp.example.com", From: "not an address"}, wantErr: true},
		{name: "bad tls", cfg: SMTPConfig{Host: "smtp.example.com", From: "a@example.com", TLS: "sometimes"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewSMTPNotifier(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, n)
		})
	}
}

func TestSMTPNotifier_Send(t *testing.T) {
	msg := auth.VerificationMessage("https://shop.example.com", "shopper@example.com", "Sam", "tok123")

	t.Run("builds a plain-text message", func(t *testing.T) {
		s := &mockSender{}
		var sent *mail.Msg
		s.On("DialAndSendWithContext", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sent = args.Get(1).([]*mail.Msg)[0]
			}).
			Return(nil)

		n := &SMTPNotifier{from: "no-reply@example.com", client: s}
		require.NoError(t, n.Send(context.Background(), msg))
		s.AssertExpectations(t)

		require.NotNil(t, sent)
		rcpts, err := sent.GetRecipients()
		require.NoError(t, err)
		assert.Equal(t, []string{"shopper@example.com"}, rcpts)
		assert.Equal(t, []string{auth.VerificationSubject}, sent.GetGenHeader(mail.HeaderSubject))

		var buf bytes.Buffer
		_, err = sent.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "text/plain")
	})

	t.Run("transport failure", func(t *testing.T) {
		s := &mockSender{}
		s.On("DialAndSendWithContext", mock.Anything, mock.Anything).
			Return(errors.New("dial tcp: i/o timeout"))

		n := &SMTPNotifier{from: "no-reply@example.com", client: s}
		err := n.Send(context.Background(), msg)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "NOTIFY_SEND_FAILED")
		errutil.AssertErrorContext(t, err, "subject", auth.VerificationSubject)
	})

	t.Run("bad recipient never dials", func(t *testing.T) {
		s := &mockSender{}
		n := &SMTPNotifier{from: "no-reply@example.com", client: s}

		err := n.Send(context.Background(), auth.Message{To: "nobody", Subject: "x", Body: "y"})
		errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_ADDRESS")
		s.AssertNotCalled(t, "DialAndSendWithContext", mock.Anything, mock.Anything)
	})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	msg := auth.PasswordResetMessage("https://shop.example.com", "shopper@example.com", "tok456", time.Hour)
	require.NoError(t, NewLogNotifier(logger).Send(context.Background(), msg))

	out := buf.String()
	assert.Contains(t, out, `"to":"shopper@example.com"`)
	assert.Contains(t, out, auth.PasswordResetSubject)
	assert.Contains(t, out, "reset-password?token=tok456")
}
