// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	auth.RegisterMetrics(reg)

	auth.RecordOperation(auth.OpLogin, nil, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}
	assert.True(t, registered["gatekeeper_auth_operations_total"])
	assert.True(t, registered["gatekeeper_auth_operation_duration_seconds"])
}

func TestRecordOperation_LabelsOutcomeByKind(t *testing.T) {
	success := auth.Operations.WithLabelValues(auth.OpRefresh, auth.OutcomeSuccess)
	invalid := auth.Operations.WithLabelValues(auth.OpRefresh, string(auth.KindInvalidToken))
	store := auth.Operations.WithLabelValues(auth.OpRefresh, string(auth.KindStoreError))
	before := []float64{testutil.ToFloat64(success), testutil.ToFloat64(invalid), testutil.ToFloat64(store)}

	auth.RecordOperation(auth.OpRefresh, nil, time.Millisecond)
	auth.RecordOperation(auth.OpRefresh, oops.Code(auth.CodeInvalidToken).Wrap(auth.ErrInvalidToken), time.Millisecond)
	auth.RecordOperation(auth.OpRefresh, errors.New("db down"), time.Millisecond)

	assert.Equal(t, before[0]+1, testutil.ToFloat64(success))
	assert.Equal(t, before[1]+1, testutil.ToFloat64(invalid))
	assert.Equal(t, before[2]+1, testutil.ToFloat64(store))
}

func TestManager_RecordsOperations(t *testing.T) {
	h := newHarness(t)
	counter := auth.Operations.WithLabelValues(auth.OpForgotPassword, string(auth.KindNotFound))
	before := testutil.ToFloat64(counter)

	_ = h.mgr.ForgotPassword(context.Background(), "nobody@x.com")

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
