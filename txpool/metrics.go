// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/vechain/devnode/metrics"

var (
	metricTxPoolGauge      = metrics.LazyLoadGauge("txpool_current_tx_count")
	metricTxPoolRejections = metrics.LazyLoadCounterVec("txpool_rejection_count", []string{"reason"})
	metricTxPoolEvictions  = metrics.LazyLoadCounter("txpool_eviction_count")
)
