// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestCategories(t *testing.T) {
	var buf bytes.Buffer
	events := NewCategories(Setup(Options{Service: "gatekeeper", Writer: &buf}))
	ctx := context.Background()

	events.Auth(ctx, "login succeeded", slog.String("account_id", "01J"))
	events.Audit(ctx, "password reset completed")
	events.Error(ctx, "store failure",
		oops.Code("ACCOUNT_GET_FAILED").With("operation", "get account by email").Wrap(errors.New("timeout")),
		slog.String("step", "lookup"))
	events.Error(ctx, "plain failure", errors.New("boom"))

	entries := lines(t, &buf)
	require.Len(t, entries, 4)

	assert.Equal(t, CategoryAuth, entries[0]["category"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "01J", entries[0]["account_id"])

	assert.Equal(t, CategoryAudit, entries[1]["category"])

	assert.Equal(t, CategoryError, entries[2]["category"])
	assert.Equal(t, "ERROR", entries[2]["level"])
	assert.Equal(t, "ACCOUNT_GET_FAILED", entries[2]["code"])
	assert.Equal(t, "lookup", entries[2]["step"])
	assert.Contains(t, entries[2]["error"], "timeout")
	require.IsType(t, map[string]any{}, entries[2]["context"])
	assert.Equal(t, "get account by email", entries[2]["context"].(map[string]any)["operation"])

	assert.Equal(t, "boom", entries[3]["error"])
	assert.NotContains(t, entries[3], "code")
}
