// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to account holders. Send returns nil only when
// the message was handed off for delivery.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Subjects of the messages the manager sends.
const (
	VerificationSubject  = "Verify Your Email - E-Commerce"
	PasswordResetSubject = "Password Reset Request"
)

// Link paths embedded in outgoing messages.
const (
	VerifyEmailPath   = "/api/auth/verify-email"
	ResetPasswordPath = "/api/auth/reset-password"
)

func tokenLink(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// VerificationMessage builds the email that carries a verification link.
func VerificationMessage(baseURL, to, name, token string) Message {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	return Message{
		To:      to,
		Subject: VerificationSubject,
		Body: fmt.Sprintf("%s,\n\nConfirm your email address by opening the link below:\n\n%s\n\nIf you did not create an account, ignore this message.\n",
			greeting, tokenLink(baseURL, VerifyEmailPath, token)),
	}
}

// PasswordResetMessage builds the email that carries a reset link.
func PasswordResetMessage(baseURL, to, token string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: PasswordResetSubject,
		Body: fmt.Sprintf("A password reset was requested for your account.\n\nOpen the link below within %d minutes to choose a new password:\n\n%s\n\nIf you did not request a reset, ignore this message.\n",
			int(ttl.Minutes()), tokenLink(baseURL, ResetPasswordPath, token)),
	}
}
