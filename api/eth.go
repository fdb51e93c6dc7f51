// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/node"
	"github.com/vechain/devnode/txpool"
)

// resolveNumber maps block tags to the head. Only earliest and explicit
// numbers are taken as is.
func resolveNumber(bn rpc.BlockNumber, best uint64) uint64 {
	if bn < 0 {
		return best
	}
	return uint64(bn)
}

// stateAt turns a block reference into the height state is read at. A nil
// result means the head.
func (s *Server) stateAt(ref *rpc.BlockNumberOrHash) (*uint64, error) {
	if ref == nil {
		return nil, nil
	}
	if hash, ok := ref.Hash(); ok {
		e, err := s.node.BlockByHash(hash)
		if err != nil {
			return nil, errors.Errorf("header for hash %s not found", hash.Hex())
		}
		number := e.Block.NumberU64()
		return &number, nil
	}
	bn, _ := ref.Number()
	if bn < 0 {
		return nil, nil
	}
	best := s.node.BestBlock().NumberU64()
	if uint64(bn) > best {
		return nil, errors.Errorf("header for number %d not found", bn)
	}
	number := uint64(bn)
	return &number, nil
}

func isPending(ref *rpc.BlockNumberOrHash) bool {
	if ref == nil {
		return false
	}
	bn, ok := ref.Number()
	return ok && bn == rpc.PendingBlockNumber
}

func (s *Server) clientVersion(context.Context) (string, error) {
	return s.opts.ClientVersion, nil
}

func (s *Server) netVersion(context.Context) (string, error) {
	return strconv.FormatUint(s.node.ChainID(), 10), nil
}

func (s *Server) netListening(context.Context) (bool, error) {
	return true, nil
}

func (s *Server) chainID(context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(s.node.ChainID()), nil
}

func (s *Server) blockNumber(context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(s.node.BestBlock().NumberU64()), nil
}

func (s *Server) accounts(context.Context) ([]common.Address, error) {
	return s.node.Accounts(), nil
}

func (s *Server) gasPrice(context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(s.node.GasPrice()), nil
}

func (s *Server) maxPriorityFeePerGas(context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(node.DefaultTip), nil
}

func (s *Server) syncing(context.Context) (bool, error) {
	return false, nil
}

func (s *Server) getBalance(ctx context.Context, addr common.Address, ref *rpc.BlockNumberOrHash) (*hexutil.Big, error) {
	at, err := s.stateAt(ref)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.Balance(ctx, addr, at)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(balance), nil
}

func (s *Server) getTransactionCount(ctx context.Context, addr common.Address, ref *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	if isPending(ref) {
		nonce, err := s.node.PendingNonce(ctx, addr)
		return hexutil.Uint64(nonce), err
	}
	at, err := s.stateAt(ref)
	if err != nil {
		return 0, err
	}
	nonce, err := s.node.Nonce(ctx, addr, at)
	return hexutil.Uint64(nonce), err
}

func (s *Server) getCode(ctx context.Context, addr common.Address, ref *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	at, err := s.stateAt(ref)
	if err != nil {
		return nil, err
	}
	code, err := s.node.Code(ctx, addr, at)
	if err != nil {
		return nil, err
	}
	if code == nil {
		code = []byte{}
	}
	return code, nil
}

func (s *Server) getStorageAt(ctx context.Context, addr common.Address, slot word, ref *rpc.BlockNumberOrHash) (common.Hash, error) {
	at, err := s.stateAt(ref)
	if err != nil {
		return common.Hash{}, err
	}
	return s.node.StorageAt(ctx, addr, common.Hash(slot), at)
}

// renderBlock returns the cached JSON of e. Block content is fixed by its
// hash, so entries stay valid across reverts and resets.
func (s *Server) renderBlock(e *chain.Entry, fullTx bool) (json.RawMessage, error) {
	return s.blocks.GetOrLoad(blockKey{e.Block.Hash(), fullTx}, func(blockKey) (json.RawMessage, error) {
		return json.Marshal(marshalBlock(e, fullTx))
	})
}

func (s *Server) getBlockByNumber(ctx context.Context, bn rpc.BlockNumber, fullTx bool) (json.RawMessage, error) {
	e, err := s.node.BlockByNumber(ctx, resolveNumber(bn, s.node.BestBlock().NumberU64()))
	if err != nil {
		if errors.Is(err, node.ErrBlockNotFound) {
			return null, nil
		}
		return nil, err
	}
	return s.renderBlock(e, fullTx)
}

func (s *Server) getBlockByHash(_ context.Context, hash common.Hash, fullTx bool) (json.RawMessage, error) {
	e, err := s.node.BlockByHash(hash)
	if err != nil {
		return null, nil
	}
	return s.renderBlock(e, fullTx)
}

func (s *Server) getTransactionByHash(_ context.Context, hash common.Hash) (*rpcTransaction, error) {
	info, ok := s.node.Transaction(hash)
	if !ok {
		return nil, nil
	}
	if info.Location == nil {
		return newRPCTransaction(info.Tx, info.Sender, nil, 0), nil
	}
	return newRPCTransaction(info.Tx, info.Sender, info.Location.Entry.Block, info.Location.Index), nil
}

func (s *Server) getTransactionReceipt(_ context.Context, hash common.Hash) (map[string]any, error) {
	loc, ok := s.node.Receipt(hash)
	if !ok {
		return nil, nil
	}
	return marshalReceipt(loc), nil
}

func (s *Server) getBlockReceipts(ctx context.Context, ref rpc.BlockNumberOrHash) ([]map[string]any, error) {
	var (
		e   *chain.Entry
		err error
	)
	if hash, ok := ref.Hash(); ok {
		e, err = s.node.BlockByHash(hash)
	} else {
		bn, _ := ref.Number()
		e, err = s.node.BlockByNumber(ctx, resolveNumber(bn, s.node.BestBlock().NumberU64()))
	}
	if err != nil {
		if errors.Is(err, node.ErrBlockNotFound) {
			return nil, nil
		}
		return nil, err
	}
	receipts := make([]map[string]any, 0, len(e.Receipts))
	for i := range e.Receipts {
		receipts = append(receipts, marshalReceipt(&chain.TxLocation{Entry: e, Index: i}))
	}
	return receipts, nil
}

// ethCall executes against the head. Pending is served from the head as
// no pending block is built.
func (s *Server) ethCall(ctx context.Context, args transactionArgs, ref *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	at, err := s.stateAt(ref)
	if err != nil {
		return nil, err
	}
	if at != nil && *at != s.node.BestBlock().NumberU64() {
		return nil, errors.WithMessagef(node.ErrHistoricalState, "block %d", *at)
	}
	txArgs, err := args.toTxArgs()
	if err != nil {
		return nil, err
	}
	ret, err := s.node.Call(ctx, txArgs)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		ret = []byte{}
	}
	return ret, nil
}

func (s *Server) estimateGas(ctx context.Context, args transactionArgs, ref *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	at, err := s.stateAt(ref)
	if err != nil {
		return 0, err
	}
	if at != nil && *at != s.node.BestBlock().NumberU64() {
		return 0, errors.WithMessagef(node.ErrHistoricalState, "block %d", *at)
	}
	txArgs, err := args.toTxArgs()
	if err != nil {
		return 0, err
	}
	gas, err := s.node.EstimateGas(ctx, txArgs)
	return hexutil.Uint64(gas), err
}

func (s *Server) sendTransaction(ctx context.Context, args transactionArgs) (common.Hash, error) {
	if args.From == nil {
		return common.Hash{}, invalidParams("missing from")
	}
	txArgs, err := args.toTxArgs()
	if err != nil {
		return common.Hash{}, err
	}
	return s.node.SendTransaction(ctx, txArgs)
}

func (s *Server) sendRawTransaction(ctx context.Context, raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, invalidParams("invalid transaction: %v", err)
	}
	return s.node.SendRawTransaction(ctx, tx)
}

func renderPool(objs map[common.Address][]*txpool.TxObject) map[common.Address]map[string]*rpcTransaction {
	result := make(map[common.Address]map[string]*rpcTransaction, len(objs))
	for addr, list := range objs {
		byNonce := make(map[string]*rpcTransaction, len(list))
		for _, obj := range list {
			byNonce[strconv.FormatUint(obj.Nonce(), 10)] = newRPCTransaction(obj.Transaction, obj.Sender(), nil, 0)
		}
		result[addr] = byNonce
	}
	return result
}

func (s *Server) txpoolContent(ctx context.Context) (map[string]map[common.Address]map[string]*rpcTransaction, error) {
	pending, queued, err := s.node.TxPoolContent(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]map[common.Address]map[string]*rpcTransaction{
		"pending": renderPool(pending),
		"queued":  renderPool(queued),
	}, nil
}

func (s *Server) txpoolStatus(ctx context.Context) (map[string]hexutil.Uint, error) {
	pending, queued, err := s.node.TxPoolContent(ctx)
	if err != nil {
		return nil, err
	}
	count := func(objs map[common.Address][]*txpool.TxObject) (n int) {
		for _, list := range objs {
			n += len(list)
		}
		return
	}
	return map[string]hexutil.Uint{
		"pending": hexutil.Uint(count(pending)),
		"queued":  hexutil.Uint(count(queued)),
	}, nil
}
