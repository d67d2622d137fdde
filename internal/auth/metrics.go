// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as metric labels and span names.
const (
	OpRegister       = "register"
	OpVerifyEmail    = "verify_email"
	OpLogin          = "login"
	OpRefresh        = "refresh"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
	OpLogout         = "logout"
	OpAuthenticate   = "authenticate"
	OpPurgeExpired   = "purge_expired"
)

// OutcomeSuccess labels operations that completed without error. Failed
// operations are labeled with their Kind.
const OutcomeSuccess = "success"

// Operations is the counter for lifecycle operations.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_auth_operations_total",
		Help: "Total number of credential lifecycle operations",
	},
	[]string{"operation", "outcome"},
)

// OperationDuration is the histogram for lifecycle operation duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gatekeeper_auth_operation_duration_seconds",
		Help:    "Credential lifecycle operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
}

// RecordOperation counts one operation and observes its duration.
func RecordOperation(operation string, err error, duration time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(KindOf(err))
	}
	Operations.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
