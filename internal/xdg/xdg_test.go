// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestConfigDir(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/config/gatekeeper", got)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/testuser/.config/gatekeeper", got)
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		got, err := FindConfigFile()
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("present", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		want := filepath.Join(base, "gatekeeper", "config.yaml")
		require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o700))
		require.NoError(t, os.WriteFile(want, []byte("log:\n  level: debug\n"), 0o600))

		got, err := FindConfigFile()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("directory in the way", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		require.NoError(t, os.MkdirAll(filepath.Join(base, "gatekeeper", "config.yaml"), 0o700))

		_, err := FindConfigFile()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "XDG_CONFIG_IS_DIR")
	})
}
