// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/devnode/metrics"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func scrape(t *testing.T, url string) map[string]*dto.MetricFamily {
	t.Helper()
	body, _ := httpGet(t, url)
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)
	return families
}

func labelsOf(m *dto.Metric) map[string]string {
	labels := make(map[string]string)
	for _, l := range m.GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	return labels
}

func TestMetricsMiddleware(t *testing.T) {
	n, _, _ := newTestServer(t)
	s := New(n, Options{EnableMetrics: true})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	ms := httptest.NewServer(metrics.HTTPHandler())
	defer ms.Close()

	post(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"eth_chainId"}`)
	post(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"eth_chainId"}`)
	post(t, ts.URL, `{"jsonrpc":"2.0","id":3,"method":"no_such_method"}`)

	families := scrape(t, ms.URL)

	requests := families["devnode_api_request_count"]
	require.NotNil(t, requests)
	counts := make(map[string]float64)
	for _, m := range requests.GetMetric() {
		labels := labelsOf(m)
		assert.Equal(t, "http", labels["transport"])
		counts[labels["code"]] = m.GetCounter().GetValue()
	}
	assert.GreaterOrEqual(t, counts["200"], float64(3))

	calls := families["devnode_api_call_ms"]
	require.NotNil(t, calls)
	seen := make(map[string]uint64)
	for _, m := range calls.GetMetric() {
		labels := labelsOf(m)
		seen[labels["method"]+"/"+labels["code"]] += m.GetHistogram().GetSampleCount()
	}
	assert.GreaterOrEqual(t, seen["eth_chainId/0"], uint64(2))
	assert.GreaterOrEqual(t, seen["unknown/-32601"], uint64(1))
}

func TestWebsocketMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)
	ms := httptest.NewServer(metrics.HTTPHandler())
	defer ms.Close()

	gauge := func(name string) float64 {
		family := scrape(t, ms.URL)[name]
		if family == nil || len(family.GetMetric()) == 0 {
			return 0
		}
		return family.GetMetric()[0].GetGauge().GetValue()
	}
	connsBefore := gauge("devnode_api_connection_count")
	subsBefore := gauge("devnode_api_subscription_count")

	ws := dialWS(t, ts.URL)
	wsSubscribe(t, ws, subNewHeads)
	assert.Equal(t, connsBefore+1, gauge("devnode_api_connection_count"))
	assert.Equal(t, subsBefore+1, gauge("devnode_api_subscription_count"))

	ws.Close()
	assert.Eventually(t, func() bool {
		return gauge("devnode_api_connection_count") == connsBefore &&
			gauge("devnode_api_subscription_count") == subsBefore
	}, 5*time.Second, 10*time.Millisecond)
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	if err != nil {
		t.Fatal(err)
	}
	r, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	return r, res.StatusCode
}
