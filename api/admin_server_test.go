// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminServer(t *testing.T) {
	n, _, _ := newTestServer(t)

	var level slog.LevelVar
	var apiLogs atomic.Bool
	url, stop, err := StartAdminServer("127.0.0.1:0", &level, &apiLogs, n)
	require.NoError(t, err)
	defer stop()

	res, err := http.Post(url+"/loglevel", "application/json", strings.NewReader(`{"level":"debug"}`)) //#nosec G107
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, slog.LevelDebug, level.Level())

	res, err = http.Post(url+"/apilogs", "application/json", strings.NewReader(`{"enabled":true}`)) //#nosec G107
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, apiLogs.Load())

	res, err = http.Get(url + "/health") //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var status struct {
		Healthy   bool `json:"healthy"`
		Automine  bool `json:"automine"`
		BestBlock struct {
			Hash string `json:"hash"`
		} `json:"bestBlock"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	assert.True(t, status.Healthy)
	assert.Equal(t, n.BestBlock().Hash().Hex(), status.BestBlock.Hash)
}

func TestAdminServerBadAddr(t *testing.T) {
	n, _, _ := newTestServer(t)
	_, _, err := StartAdminServer("256.0.0.1:bad", new(slog.LevelVar), new(atomic.Bool), n)
	assert.Error(t, err)
}
