// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	ctxRequestID = "request_id"
	ctxClaims    = "claims"
)

// requestID propagates a caller-supplied request id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requestLog writes one line per request. Errors recorded with c.Error are
// logged with their oops code and context.
func (a *API) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"request_id", c.GetString(ctxRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		ctx := c.Request.Context()
		if err := c.Errors.Last(); err != nil {
			if c.Writer.Status() >= http.StatusInternalServerError {
				errutil.LogErrorContext(ctx, a.logger, "request failed", err.Err, attrs...)
				return
			}
			attrs = append(attrs, "reason", string(auth.KindOf(err.Err)))
		}
		a.logger.InfoContext(ctx, "request", attrs...)
	}
}

// observe records request counts and latency by matched route.
func (a *API) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		a.metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		a.metrics.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// rateLimit applies the rate gate. Requests with a valid bearer token are
// keyed by account, all others by client IP.
func (a *API) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if raw := bearerToken(c); raw != "" {
			if claims, err := a.lifecycle.Authenticate(c.Request.Context(), raw); err == nil {
				key = "account:" + claims.Subject
			}
		}

		allowed, retryAfter := a.gate.Allow(key)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": msgRateLimit})
			return
		}
		c.Next()
	}
}

// requireBearer admits requests that carry a valid access token and stores
// its claims on the context.
func (a *API) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msgNoBearer})
			return
		}
		claims, err := a.lifecycle.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if auth.KindOf(err) == auth.KindStoreError {
				fail(c, auth.OpAuthenticate, err)
				return
			}
			a.logger.WarnContext(c.Request.Context(), "bearer rejected",
				slog.String("client_ip", c.ClientIP()),
				slog.String("reason", string(auth.KindOf(err))))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": msgBadBearer})
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, _ := c.Get(ctxClaims)
	claims, _ := v.(*auth.Claims)
	return claims
}
