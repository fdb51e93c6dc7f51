// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/node"
)

// mineParams is the evm_mine argument: a bare timestamp, or an object with
// an optional timestamp and block count.
type mineParams struct {
	Timestamp *quantity `json:"timestamp"`
	Blocks    *quantity `json:"blocks"`
}

func (p *mineParams) UnmarshalJSON(input []byte) error {
	input = bytes.TrimSpace(input)
	if len(input) > 0 && input[0] == '{' {
		type plain mineParams
		return json.Unmarshal(input, (*plain)(p))
	}
	var ts quantity
	if err := json.Unmarshal(input, &ts); err != nil {
		return err
	}
	p.Timestamp = &ts
	return nil
}

type resetParams struct {
	Forking *struct {
		JSONRPCURL  string    `json:"jsonRpcUrl"`
		BlockNumber *quantity `json:"blockNumber"`
	} `json:"forking"`
}

type nodeForkInfo struct {
	URL         string         `json:"forkUrl"`
	BlockNumber hexutil.Uint64 `json:"forkBlockNumber"`
	ChainID     hexutil.Uint64 `json:"forkChainId"`
}

type nodeInfo struct {
	CurrentBlockNumber    hexutil.Uint64 `json:"currentBlockNumber"`
	CurrentBlockHash      common.Hash    `json:"currentBlockHash"`
	CurrentBlockTimestamp hexutil.Uint64 `json:"currentBlockTimestamp"`
	ChainID               hexutil.Uint64 `json:"chainId"`
	GasLimit              hexutil.Uint64 `json:"gasLimit"`
	Coinbase              common.Address `json:"coinbase"`
	NextBaseFee           *hexutil.Big   `json:"baseFee"`
	Automine              bool           `json:"automine"`
	IntervalMining        uint64         `json:"intervalMining"`
	PendingTransactions   int            `json:"pendingTransactions"`
	Snapshots             int            `json:"snapshots"`
	ForkConfig            *nodeForkInfo  `json:"forkConfig"`
}

func (s *Server) evmMine(ctx context.Context, p *mineParams) (string, error) {
	opts := node.MineOptions{Blocks: 1}
	if p != nil {
		if p.Timestamp != nil {
			ts := uint64(*p.Timestamp)
			opts.Timestamp = &ts
		}
		if p.Blocks != nil && *p.Blocks > 0 {
			opts.Blocks = uint64(*p.Blocks)
		}
	}
	if _, err := s.node.Mine(ctx, opts); err != nil {
		return "", err
	}
	return "0x0", nil
}

func (s *Server) anvilMine(ctx context.Context, blocks, interval *quantity) (any, error) {
	opts := node.MineOptions{Blocks: 1}
	if blocks != nil && *blocks > 0 {
		opts.Blocks = uint64(*blocks)
	}
	if interval != nil {
		opts.Interval = uint64(*interval)
	}
	_, err := s.node.Mine(ctx, opts)
	return nil, err
}

func (s *Server) snapshot(ctx context.Context) (hexutil.Uint64, error) {
	id, err := s.node.Snapshot(ctx)
	return hexutil.Uint64(id), err
}

func (s *Server) revert(ctx context.Context, id quantity) (bool, error) {
	return s.node.Revert(ctx, uint64(id))
}

func (s *Server) setAutomine(ctx context.Context, enabled bool) (any, error) {
	return nil, s.node.SetAutomine(ctx, enabled)
}

func (s *Server) setIntervalMining(ctx context.Context, seconds quantity) (any, error) {
	return nil, s.node.SetIntervalMining(ctx, time.Duration(seconds)*time.Second)
}

func (s *Server) getAutomine(context.Context) (bool, error) {
	return s.node.Automine(), nil
}

func (s *Server) getIntervalMining(context.Context) (*uint64, error) {
	d := s.node.IntervalMining()
	if d <= 0 {
		return nil, nil
	}
	secs := uint64(d / time.Second)
	return &secs, nil
}

func (s *Server) increaseTime(ctx context.Context, seconds quantity) (int64, error) {
	return s.node.IncreaseTime(ctx, uint64(seconds))
}

func (s *Server) setNextBlockTimestamp(ctx context.Context, ts quantity) (any, error) {
	return nil, s.node.SetNextBlockTimestamp(ctx, uint64(ts))
}

func (s *Server) setTime(ctx context.Context, ts quantity) (int64, error) {
	return s.node.SetTime(ctx, uint64(ts))
}

func (s *Server) setBlockGasLimit(ctx context.Context, limit quantity) (bool, error) {
	if err := s.node.SetBlockGasLimit(ctx, uint64(limit)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Server) setBlockTimestampInterval(ctx context.Context, seconds quantity) (any, error) {
	return nil, s.node.SetBlockTimestampInterval(ctx, uint64(seconds))
}

func (s *Server) removeBlockTimestampInterval(ctx context.Context) (bool, error) {
	return s.node.RemoveBlockTimestampInterval(ctx)
}

func (s *Server) setBalance(ctx context.Context, addr common.Address, balance hexutil.Big) (any, error) {
	return nil, s.node.SetBalance(ctx, addr, balance.ToInt())
}

func (s *Server) setNonce(ctx context.Context, addr common.Address, nonce quantity) (any, error) {
	return nil, s.node.SetNonce(ctx, addr, uint64(nonce))
}

func (s *Server) setCode(ctx context.Context, addr common.Address, code hexutil.Bytes) (any, error) {
	return nil, s.node.SetCode(ctx, addr, code)
}

func (s *Server) setStorageAt(ctx context.Context, addr common.Address, slot, value word) (bool, error) {
	if err := s.node.SetStorageAt(ctx, addr, common.Hash(slot), common.Hash(value)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Server) impersonate(ctx context.Context, addr common.Address) (any, error) {
	return nil, s.node.Impersonate(ctx, addr)
}

func (s *Server) stopImpersonating(ctx context.Context, addr common.Address) (any, error) {
	return nil, s.node.StopImpersonating(ctx, addr)
}

func (s *Server) autoImpersonate(ctx context.Context, enabled bool) (any, error) {
	return nil, s.node.SetAutoImpersonate(ctx, enabled)
}

func (s *Server) setNextBaseFee(ctx context.Context, fee hexutil.Big) (any, error) {
	return nil, s.node.SetNextBaseFee(ctx, fee.ToInt())
}

func (s *Server) setCoinbase(ctx context.Context, addr common.Address) (any, error) {
	return nil, s.node.SetCoinbase(ctx, addr)
}

func (s *Server) dropTransaction(ctx context.Context, hash common.Hash) (*common.Hash, error) {
	dropped, err := s.node.DropTransaction(ctx, hash)
	if err != nil || !dropped {
		return nil, err
	}
	return &hash, nil
}

func (s *Server) dropAllTransactions(ctx context.Context) (any, error) {
	return nil, s.node.DropAllTransactions(ctx)
}

// reset without a forking object restarts from the current base: the
// pinned fork block when forked, the genesis otherwise.
func (s *Server) reset(ctx context.Context, p *resetParams) (any, error) {
	if p == nil || p.Forking == nil {
		if cur := s.node.Info().Fork; cur != nil {
			return nil, s.node.Reset(ctx, &fork.Config{BlockNumber: cur.BlockNumber})
		}
		return nil, s.node.Reset(ctx, nil)
	}
	cfg := &fork.Config{URL: p.Forking.JSONRPCURL}
	if p.Forking.BlockNumber != nil {
		if *p.Forking.BlockNumber == 0 {
			return nil, invalidParams("fork block number must be positive")
		}
		cfg.BlockNumber = uint64(*p.Forking.BlockNumber)
	}
	return nil, s.node.Reset(ctx, cfg)
}

func (s *Server) dumpState(ctx context.Context) (hexutil.Bytes, error) {
	return s.node.Dump(ctx)
}

func (s *Server) loadState(ctx context.Context, data hexutil.Bytes) (bool, error) {
	if len(data) == 0 {
		return false, invalidParams("empty state")
	}
	if err := s.node.Load(ctx, data); err != nil {
		return false, errors.WithMessage(err, "load state")
	}
	return true, nil
}

func (s *Server) nodeInfo(context.Context) (*nodeInfo, error) {
	info := s.node.Info()
	result := &nodeInfo{
		CurrentBlockNumber:    hexutil.Uint64(info.BestNumber),
		CurrentBlockHash:      info.BestHash,
		CurrentBlockTimestamp: hexutil.Uint64(info.BestTime),
		ChainID:               hexutil.Uint64(info.ChainID),
		GasLimit:              hexutil.Uint64(info.GasLimit),
		Coinbase:              info.Coinbase,
		NextBaseFee:           (*hexutil.Big)(info.NextBaseFee),
		Automine:              info.Automine,
		IntervalMining:        uint64(info.IntervalMining / time.Second),
		PendingTransactions:   info.PendingTxs,
		Snapshots:             info.Snapshots,
	}
	if info.Fork != nil {
		result.ForkConfig = &nodeForkInfo{
			URL:         info.Fork.URL,
			BlockNumber: hexutil.Uint64(info.Fork.BlockNumber),
			ChainID:     hexutil.Uint64(info.Fork.ChainID),
		}
	}
	return result, nil
}
