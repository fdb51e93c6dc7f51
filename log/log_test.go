// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    any
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", nil, true},
	}
	for _, tt := range tests {
		lvl, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, lvl, tt.in)
	}
}

func TestLazyLoggerPicksUpRootHandler(t *testing.T) {
	// created before Init, like package level loggers
	logger := WithContext("pkg", "test")

	var buf bytes.Buffer
	Init(&buf, LevelInfo, true)
	defer Discard()

	logger.With("id", 7).Warn("clamped", "ts", 100)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "clamped", rec["msg"])
	assert.Equal(t, "test", rec["pkg"])
	assert.Equal(t, float64(7), rec["id"])
	assert.Equal(t, float64(100), rec["ts"])
}

func TestLevelVarChangesAtRuntime(t *testing.T) {
	var (
		buf   bytes.Buffer
		level slog.LevelVar
	)
	level.Set(LevelWarn)
	Init(&buf, &level, true)
	defer Discard()

	logger := WithContext("pkg", "test")
	logger.Info("before")
	level.Set(LevelDebug)
	logger.Debug("after")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"after"`)
}
