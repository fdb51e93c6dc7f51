// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/chain"
)

// filterQuery is the eth_getLogs criteria. Addresses and topics also
// drive logs subscriptions.
type filterQuery struct {
	BlockHash *common.Hash
	FromBlock *rpc.BlockNumber
	ToBlock   *rpc.BlockNumber
	Addresses []common.Address
	Topics    [][]common.Hash
}

func (q *filterQuery) UnmarshalJSON(data []byte) error {
	var raw struct {
		BlockHash *common.Hash      `json:"blockHash"`
		FromBlock *rpc.BlockNumber  `json:"fromBlock"`
		ToBlock   *rpc.BlockNumber  `json:"toBlock"`
		Address   json.RawMessage   `json:"address"`
		Topics    []json.RawMessage `json:"topics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.BlockHash != nil && (raw.FromBlock != nil || raw.ToBlock != nil) {
		return errors.New("cannot specify both blockHash and fromBlock/toBlock")
	}
	*q = filterQuery{BlockHash: raw.BlockHash, FromBlock: raw.FromBlock, ToBlock: raw.ToBlock}

	if addr := bytes.TrimSpace(raw.Address); len(addr) > 0 && !bytes.Equal(addr, null) {
		if addr[0] == '[' {
			if err := json.Unmarshal(addr, &q.Addresses); err != nil {
				return errors.Wrap(err, "address")
			}
		} else {
			var a common.Address
			if err := json.Unmarshal(addr, &a); err != nil {
				return errors.Wrap(err, "address")
			}
			q.Addresses = []common.Address{a}
		}
	}

	q.Topics = make([][]common.Hash, len(raw.Topics))
	for i, t := range raw.Topics {
		t = bytes.TrimSpace(t)
		switch {
		case len(t) == 0 || bytes.Equal(t, null):
			// wildcard
		case t[0] == '[':
			var alts []*common.Hash
			if err := json.Unmarshal(t, &alts); err != nil {
				return errors.Wrapf(err, "topic %d", i)
			}
			for _, alt := range alts {
				if alt == nil {
					// a null alternative matches anything
					q.Topics[i] = nil
					break
				}
				q.Topics[i] = append(q.Topics[i], *alt)
			}
		default:
			var topic common.Hash
			if err := json.Unmarshal(t, &topic); err != nil {
				return errors.Wrapf(err, "topic %d", i)
			}
			q.Topics[i] = []common.Hash{topic}
		}
	}
	return nil
}

// resolve turns the query into a log filter over [from, to], both
// defaulting to the head.
func (q *filterQuery) resolve(best uint64) (*chain.LogFilter, error) {
	f := &chain.LogFilter{
		BlockHash: q.BlockHash,
		Addresses: q.Addresses,
		Topics:    q.Topics,
		FromBlock: best,
		ToBlock:   best,
	}
	if q.FromBlock != nil {
		f.FromBlock = resolveNumber(*q.FromBlock, best)
	}
	if q.ToBlock != nil {
		f.ToBlock = resolveNumber(*q.ToBlock, best)
	}
	if q.BlockHash == nil && f.FromBlock > f.ToBlock {
		return nil, invalidParams("invalid block range")
	}
	return f, nil
}

func (s *Server) getLogs(_ context.Context, q filterQuery) ([]*types.Log, error) {
	if q.BlockHash != nil {
		if _, err := s.node.BlockByHash(*q.BlockHash); err != nil {
			return nil, errors.New("unknown block")
		}
	}
	f, err := q.resolve(s.node.BestBlock().NumberU64())
	if err != nil {
		return nil, err
	}
	logs := s.node.FilterLogs(f, s.opts.LogsLimit+1)
	if len(logs) > s.opts.LogsLimit {
		return nil, errors.Errorf("query returned more than %d results", s.opts.LogsLimit)
	}
	if logs == nil {
		logs = []*types.Log{}
	}
	return logs, nil
}
