// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import "github.com/vechain/devnode/metrics"

var (
	metricTransactionTypeCounter = metrics.LazyLoadCounterVec("packer_transaction_type", []string{"type"})
	metricTxOutcomeCounter       = metrics.LazyLoadCounterVec("packer_transaction_outcome", []string{"outcome"})
	metricBlockTxs               = metrics.LazyLoadHistogramVec("packer_block_txs", []string{"empty"}, metrics.BucketBlockTxs)
)
