// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/gatekeeper/internal/auth"
)

func TestVerificationMessage(t *testing.T) {
	msg := auth.VerificationMessage("https://shop.example.com/", "a@x.com", "Alice", "abc123")
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Verify Your Email - E-Commerce", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Alice")
	assert.Contains(t, msg.Body, "https://shop.example.com/api/auth/verify-email?token=abc123")
}

func TestPasswordResetMessage(t *testing.T) {
	msg := auth.PasswordResetMessage("https://shop.example.com", "a@x.com", "abc123", time.Hour)
	assert.Equal(t, "Password Reset Request", msg.Subject)
	assert.Contains(t, msg.Body, "within 60 minutes")
	assert.Contains(t, msg.Body, "https://shop.example.com/api/auth/reset-password?token=abc123")
}
