// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package apilogs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPILogsHandler(t *testing.T) {
	tests := []struct {
		name             string
		method           string
		body             string
		expectedHTTP     int
		startValue       bool
		expectedEndValue bool
	}{
		{
			name:             "enable logs",
			method:           http.MethodPost,
			body:             `{"enabled":true}`,
			expectedHTTP:     http.StatusOK,
			expectedEndValue: true,
		},
		{
			name:         "disable logs",
			method:       http.MethodPost,
			body:         `{"enabled":false}`,
			expectedHTTP: http.StatusOK,
			startValue:   true,
		},
		{
			name:             "get status",
			method:           http.MethodGet,
			expectedHTTP:     http.StatusOK,
			startValue:       true,
			expectedEndValue: true,
		},
		{
			name:             "bad body",
			method:           http.MethodPost,
			body:             `{"enabled":"yes"}`,
			expectedHTTP:     http.StatusBadRequest,
			startValue:       true,
			expectedEndValue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var enabled atomic.Bool
			enabled.Store(tt.startValue)

			req, err := http.NewRequest(tt.method, "/admin/apilogs", bytes.NewBufferString(tt.body))
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			router := mux.NewRouter()
			New(&enabled).Mount(router, "/admin/apilogs")
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedHTTP, rr.Code)
			assert.Equal(t, tt.expectedEndValue, enabled.Load())
			if rr.Code == http.StatusOK {
				var status LogStatus
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
				assert.Equal(t, tt.expectedEndValue, status.Enabled)
			}
		})
	}
}
