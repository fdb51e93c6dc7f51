// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import "github.com/vechain/devnode/metrics"

var (
	metricMinedBlocks     = metrics.LazyLoadCounterVec("node_mined_block_count", []string{"trigger"})
	metricDroppedTxs      = metrics.LazyLoadCounter("node_dropped_tx_count")
	metricTimestampClamps = metrics.LazyLoadCounter("node_timestamp_clamp_count")
	metricSnapshots       = metrics.LazyLoadCounterVec("node_snapshot_count", []string{"op"})
	metricBestBlock       = metrics.LazyLoadGauge("node_best_block")
)
