// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Single-use token configuration.
const (
	SecretTokenBytes = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // password reset window
)

// GenerateSecretToken creates an unguessable single-use token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is mailed to the user; only the hash is stored.
func GenerateSecretToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SecretTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SECRET_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken computes the hex SHA-256 of a token. Every token the manager
// persists, refresh tokens included, is looked up by this hash.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
