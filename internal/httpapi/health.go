// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

// healthCheckTimeout bounds the database ping of the detailed check.
const healthCheckTimeout = 2 * time.Second

func (a *API) healthBasic(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Auth Server is up and running!"})
}

func (a *API) healthDetailed(c *gin.Context) {
	if a.dbCheck == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":  false,
			"message":  "Server is running, but some dependencies failed.",
			"server":   "Healthy",
			"database": "Not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()
	if err := a.dbCheck(ctx); err != nil {
		errutil.LogErrorContext(ctx, a.logger, "detailed health check failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":  false,
			"message":  "Server is running, but some dependencies failed.",
			"server":   "Healthy",
			"database": "Unhealthy",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Detailed Health Check Passed",
		"server":    "Healthy",
		"database":  "Healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
