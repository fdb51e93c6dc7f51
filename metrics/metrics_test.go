// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopByDefault(t *testing.T) {
	mu.Lock()
	metrics = defaultNoopMetrics()
	mu.Unlock()

	for _, m := range []any{
		Counter("c"),
		CounterVec("cv", nil),
		Gauge("g"),
		HistogramVec("h", nil, nil),
	} {
		assert.IsType(t, noopMeter{}, m)
	}
	assert.Nil(t, HTTPHandler())
}

func TestPrometheus(t *testing.T) {
	mu.Lock()
	metrics = defaultNoopMetrics()
	mu.Unlock()

	lazy := LazyLoadCounter("blocks_mined_count")
	InitializePrometheusMetrics()
	InitializePrometheusMetrics()

	lazy().Add(2)
	Counter("blocks_mined_count").Add(1)
	require.IsType(t, &promCounter{}, lazy())
	assert.Equal(t, float64(3), testutil.ToFloat64(lazy().(*promCounter).c))

	g := Gauge("pool_size")
	g.Set(10)
	g.Add(-3)
	assert.Equal(t, float64(7), testutil.ToFloat64(g.(*promGauge).g))

	cv := CounterVec("rejections_count", []string{"reason"})
	cv.AddWithLabel(1, map[string]string{"reason": "nonce"})
	cv.AddWithLabel(4, map[string]string{"reason": "nonce"})
	assert.Equal(t, float64(5), testutil.ToFloat64(cv.(*promCounterVec).c.With(map[string]string{"reason": "nonce"})))

	HistogramVec("call_ms", []string{"method"}, BucketCallMs).ObserveWithLabels(3, map[string]string{"method": "eth_call"})

	rec := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "devnode_blocks_mined_count 3")
	assert.Contains(t, string(body), "devnode_call_ms_bucket")
}
