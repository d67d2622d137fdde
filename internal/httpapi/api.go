// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the credential lifecycle over HTTP/JSON.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/observability"
)

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refreshToken"

// refreshCookiePath scopes the refresh cookie to the auth routes.
const refreshCookiePath = "/api/auth"

// Lifecycle is the credential lifecycle the API drives. *auth.Manager
// implements it.
type Lifecycle interface {
	Register(ctx context.Context, in auth.RegisterInput) (ulid.ULID, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, in auth.LoginInput) (*auth.TokenPair, error)
	Refresh(ctx context.Context, presented string) (*auth.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Logout(ctx context.Context, presented string) error
	Authenticate(ctx context.Context, raw string) (*auth.Claims, error)
	RefreshTTL() time.Duration
}

var _ Lifecycle = (*auth.Manager)(nil)

// RateGate admits or rejects an attempt for a key.
type RateGate interface {
	Allow(key string) (allowed bool, retryAfter time.Duration)
}

// Config wires an API.
type Config struct {
	Lifecycle Lifecycle

	// RateGate is optional. Nil disables rate limiting.
	RateGate RateGate

	// DBCheck backs the detailed health endpoint. Nil reports the database
	// as not configured.
	DBCheck observability.ReadinessChecker

	// Metrics is optional.
	Metrics *observability.HTTPMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Production marks the refresh cookie Secure.
	Production bool
}

// API serves the auth routes.
type API struct {
	lifecycle  Lifecycle
	gate       RateGate
	dbCheck    observability.ReadinessChecker
	metrics    *observability.HTTPMetrics
	logger     *slog.Logger
	production bool
	engine     *gin.Engine
}

// New creates an API and builds its router.
func New(cfg Config) (*API, error) {
	if cfg.Lifecycle == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("lifecycle is required")
	}
	a := &API{
		lifecycle:  cfg.Lifecycle,
		gate:       cfg.RateGate,
		dbCheck:    cfg.DBCheck,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		production: cfg.Production,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.engine = a.routes()
	return a, nil
}

// Handler returns the HTTP handler.
func (a *API) Handler() http.Handler {
	return a.engine
}

func (a *API) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), a.requestLog())
	if a.metrics != nil {
		r.Use(a.observe())
	}

	health := r.Group("/api/health")
	health.GET("", a.healthBasic)
	health.GET("/detailed", a.healthDetailed)

	api := r.Group("/api/auth")
	if a.gate != nil {
		api.Use(a.rateLimit())
	}
	api.POST("/register", a.register)
	api.GET("/verify-email", a.verifyEmail)
	api.POST("/login", a.login)
	api.POST("/refresh-token", a.refresh)
	api.POST("/forgot-password", a.forgotPassword)
	api.POST("/reset-password", a.resetPassword)
	api.POST("/logout", a.logout)
	api.GET("/me", a.requireBearer(), a.me)

	return r
}

// bind decodes and validates a JSON body. It answers the request itself
// and returns false when the body is unusable.
func bind(c *gin.Context, req normalizer) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(err) //nolint:errcheck // gin returns the same error
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": msgValidation})
		return false
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		invalidRequest(c, err)
		return false
	}
	return true
}

func (a *API) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	id, err := a.lifecycle.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		fail(c, auth.OpRegister, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msgRegistered, "userId": id.String()})
}

func (a *API) verifyEmail(c *gin.Context) {
	if err := a.lifecycle.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		fail(c, auth.OpVerifyEmail, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgVerified})
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	pair, err := a.lifecycle.Login(c.Request.Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		fail(c, auth.OpLogin, err)
		return
	}
	a.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": pair.AccessToken, "message": msgLoggedIn})
}

func (a *API) refresh(c *gin.Context) {
	presented, _ := c.Cookie(RefreshCookieName) //nolint:errcheck // absent cookie is MissingToken
	pair, err := a.lifecycle.Refresh(c.Request.Context(), presented)
	if err != nil {
		fail(c, auth.OpRefresh, err)
		return
	}
	a.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": pair.AccessToken})
}

func (a *API) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := a.lifecycle.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		fail(c, auth.OpForgotPassword, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgResetSent})
}

func (a *API) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := a.lifecycle.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		fail(c, auth.OpResetPassword, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgResetCompleted})
}

func (a *API) logout(c *gin.Context) {
	presented, _ := c.Cookie(RefreshCookieName) //nolint:errcheck // absent cookie is MissingToken
	if err := a.lifecycle.Logout(c.Request.Context(), presented); err != nil {
		fail(c, auth.OpLogout, err)
		return
	}
	a.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgLoggedOut})
}

func (a *API) me(c *gin.Context) {
	claims := claimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":        claims.Subject,
			"email":     claims.Email,
			"expiresAt": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
		},
	})
}

func (a *API) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, token, int(a.lifecycle.RefreshTTL().Seconds()), refreshCookiePath, "", a.production, true)
}

func (a *API) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, "", -1, refreshCookiePath, "", a.production, true)
}
