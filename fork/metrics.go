// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import "github.com/vechain/devnode/metrics"

var (
	metricFetches     = metrics.LazyLoadCounterVec("fork_fetch_count", []string{"kind"})
	metricFetchErrors = metrics.LazyLoadCounterVec("fork_fetch_error_count", []string{"kind"})
	metricCacheHits   = metrics.LazyLoadCounterVec("fork_cache_hit_count", []string{"kind"})
)
