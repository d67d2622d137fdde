// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/gatekeeper/internal/auth"
)

// reply is a fixed public status and message.
type reply struct {
	status  int
	message string
}

// Public messages shared by every operation.
const (
	msgInternal   = "Internal Server Error"
	msgValidation = "Validation error"
	msgRateLimit  = "Too many requests from this user, please try again later."
	msgNoBearer   = "Unauthorized access. No token provided."
	msgBadBearer  = "Invalid or expired token."
)

// Success messages.
const (
	msgRegistered     = "Registration successful. Please check your email to verify your account."
	msgVerified       = "Email verification successful. You can now log in."
	msgLoggedIn       = "Login successful"
	msgResetSent      = "Password reset email sent."
	msgResetCompleted = "Password reset successful!"
	msgLoggedOut      = "Logged out successfully"
)

// failureTable maps each operation's failure kinds to the status and message
// the API answers with. Kinds missing from an operation's table, including
// StoreError, answer 500.
var failureTable = map[string]map[auth.Kind]reply{
	auth.OpRegister: {
		auth.KindValidation:          {http.StatusBadRequest, msgValidation},
		auth.KindConflict:            {http.StatusConflict, "User already exists."},
		auth.KindEmailDeliveryFailed: {http.StatusInternalServerError, "User registered, but verification email failed to send. Please contact support."},
	},
	auth.OpVerifyEmail: {
		auth.KindMissingToken: {http.StatusBadRequest, "Verification token is required."},
		auth.KindInvalidToken: {http.StatusBadRequest, "Invalid or expired token."},
	},
	auth.OpLogin: {
		auth.KindValidation:         {http.StatusBadRequest, msgValidation},
		auth.KindInvalidCredentials: {http.StatusUnauthorized, "Invalid credentials"},
		auth.KindEmailNotVerified:   {http.StatusForbidden, "Email not verified. Please check your inbox."},
	},
	auth.OpRefresh: {
		auth.KindMissingToken: {http.StatusForbidden, "Refresh token missing"},
		auth.KindInvalidToken: {http.StatusForbidden, "Invalid or expired refresh token"},
	},
	auth.OpForgotPassword: {
		auth.KindValidation:          {http.StatusBadRequest, msgValidation},
		auth.KindNotFound:            {http.StatusNotFound, "User not found"},
		auth.KindEmailDeliveryFailed: {http.StatusInternalServerError, "Failed to send password reset email. Please try again later."},
	},
	auth.OpResetPassword: {
		auth.KindValidation:        {http.StatusBadRequest, msgValidation},
		auth.KindInvalidToken:      {http.StatusBadRequest, "Invalid or expired token"},
		auth.KindPasswordUnchanged: {http.StatusBadRequest, "New password cannot be the same as the old password."},
	},
	auth.OpLogout: {
		auth.KindMissingToken: {http.StatusBadRequest, "No refresh token provided"},
		auth.KindInvalidToken: {http.StatusBadRequest, "Invalid or expired refresh token"},
	},
}

// failureReply resolves the public reply for err raised by op.
func failureReply(op string, err error) reply {
	if r, ok := failureTable[op][auth.KindOf(err)]; ok {
		return r
	}
	return reply{http.StatusInternalServerError, msgInternal}
}

// fail writes the public reply for err and records err on the context for
// the request logger. Internal detail never reaches the body.
func fail(c *gin.Context, op string, err error) {
	r := failureReply(op, err)
	_ = c.Error(err) //nolint:errcheck // gin returns the same error
	c.AbortWithStatusJSON(r.status, gin.H{"success": false, "message": r.message})
}

// invalidRequest answers a request that failed input validation.
func invalidRequest(c *gin.Context, err error) {
	body := gin.H{"success": false, "message": msgValidation}
	if errs := fieldErrors(err); len(errs) > 0 {
		body["errors"] = errs
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
