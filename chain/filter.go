// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogFilter selects logs. An empty address list matches any address. Topics
// are positional: an empty position matches anything, otherwise any of the
// listed values.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	BlockHash *common.Hash
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Match reports whether log passes the address and topic criteria.
func (f *LogFilter) Match(log *types.Log) bool {
	if len(f.Addresses) > 0 && !slices.Contains(f.Addresses, log.Address) {
		return false
	}
	if len(f.Topics) > len(log.Topics) {
		return false
	}
	for i, alts := range f.Topics {
		if len(alts) > 0 && !slices.Contains(alts, log.Topics[i]) {
			return false
		}
	}
	return true
}

// FilterLogs returns matching logs in chain order, at most limit when
// limit is positive.
func (r *Repository) FilterLogs(f *LogFilter, limit int) []*types.Log {
	var entries []*Entry
	if f.BlockHash != nil {
		if e, ok := r.byHash[*f.BlockHash]; ok {
			entries = []*Entry{e}
		}
	} else {
		for n := f.FromBlock; n <= f.ToBlock; n++ {
			e, ok := r.GetEntry(n)
			if !ok {
				if n > r.BestBlock().NumberU64() {
					break
				}
				continue
			}
			entries = append(entries, e)
		}
	}

	var out []*types.Log
	for _, e := range entries {
		if !bloomMayMatch(e.Block.Bloom(), f) {
			continue
		}
		for _, receipt := range e.Receipts {
			for _, log := range receipt.Logs {
				if f.Match(log) {
					out = append(out, log)
					if limit > 0 && len(out) >= limit {
						return out
					}
				}
			}
		}
	}
	return out
}

func bloomMayMatch(bloom types.Bloom, f *LogFilter) bool {
	if len(f.Addresses) > 0 {
		hit := false
		for _, addr := range f.Addresses {
			if bloom.Test(addr.Bytes()) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, alts := range f.Topics {
		if len(alts) == 0 {
			continue
		}
		hit := false
		for _, topic := range alts {
			if bloom.Test(topic.Bytes()) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
