// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestNewRefreshToken(t *testing.T) {
	accountID := ulid.Make()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("stores TTL in whole seconds", func(t *testing.T) {
		rt, err := auth.NewRefreshToken(accountID, "hash", 7*24*time.Hour, now)
		require.NoError(t, err)
		assert.Equal(t, int64(604800), rt.TTLSeconds)
		assert.Equal(t, now.Add(7*24*time.Hour), rt.ExpiresAt())
	})

	tests := []struct {
		name      string
		accountID ulid.ULID
		hash      string
		ttl       time.Duration
		code      string
	}{
		{"zero account", ulid.ULID{}, "hash", time.Hour, "REFRESH_INVALID_ACCOUNT"},
		{"empty hash", accountID, "", time.Hour, "REFRESH_INVALID_HASH"},
		{"zero ttl", accountID, "hash", 0, "REFRESH_INVALID_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewRefreshToken(tt.accountID, tt.hash, tt.ttl, now)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRefreshToken_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rt, err := auth.NewRefreshToken(ulid.Make(), "hash", time.Hour, now)
	require.NoError(t, err)

	assert.False(t, rt.IsExpiredAt(now.Add(59*time.Minute)))
	assert.False(t, rt.IsExpiredAt(now.Add(time.Hour)))
	assert.True(t, rt.IsExpiredAt(now.Add(61*time.Minute)))
}
