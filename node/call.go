// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/runtime"
)

// TxArgs describes a transaction or call. Unset fields take node defaults.
type TxArgs struct {
	From                 common.Address
	To                   *common.Address
	Gas                  *uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Value                *big.Int
	Data                 []byte
	Nonce                *uint64
}

// ExecutionError is a call whose execution failed.
type ExecutionError struct {
	Result *runtime.Result
}

func (e *ExecutionError) Error() string {
	if e.Result.Err == nil {
		return "execution failed"
	}
	return e.Result.Err.Error()
}

// Revert returns the revert payload, nil when the failure is not a revert.
func (e *ExecutionError) Revert() []byte {
	return e.Result.Revert()
}

// Call executes args against the latest state without committing anything.
// A failed execution is returned as *ExecutionError.
func (n *Node) Call(ctx context.Context, args TxArgs) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	gas := n.gasLimit
	if args.Gas != nil {
		gas = *args.Gas
	}
	res, err := n.call(ctx, args, gas)
	if err != nil {
		return nil, err
	}
	if res.Failed {
		return nil, &ExecutionError{res}
	}
	return res.ReturnData, nil
}

// EstimateGas returns the lowest gas limit args succeed with.
func (n *Node) EstimateGas(ctx context.Context, args TxArgs) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.estimateGas(ctx, args)
}

// estimateGas binary searches the gas limit. The caller holds the commit
// lock shared or the writer slot.
func (n *Node) estimateGas(ctx context.Context, args TxArgs) (uint64, error) {
	hi := n.gasLimit
	if args.Gas != nil && *args.Gas > 0 {
		hi = *args.Gas
	}
	lo := runtime.IntrinsicGas(args.Data, args.To == nil) - 1
	if hi <= lo {
		return 0, errors.WithMessagef(runtime.ErrIntrinsicGas, "have %d, want %d", hi, lo+1)
	}

	res, err := n.call(ctx, args, hi)
	if err != nil {
		return 0, err
	}
	if res.Failed {
		return 0, &ExecutionError{res}
	}
	// most executions succeed with the gas they used
	if used := res.UsedGas; used > lo && used < hi {
		res, err := n.call(ctx, args, used)
		if err != nil {
			return 0, err
		}
		if !res.Failed {
			hi = used
		} else {
			lo = used
		}
	}
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		res, err := n.call(ctx, args, mid)
		if err != nil {
			return 0, err
		}
		if res.Failed {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}

func (n *Node) call(ctx context.Context, args TxArgs, gas uint64) (*runtime.Result, error) {
	head := n.repo.BestBlock().Header()
	baseFee := n.nextBaseFee
	if baseFee == nil {
		baseFee = n.packer.NextBaseFee(head)
	}
	timestamp := max(n.clock.Now(), head.Time+1)

	st := n.store.NewState(ctx)
	nonce, err := st.GetNonce(args.From)
	if err != nil {
		return nil, err
	}
	if args.Nonce != nil {
		nonce = *args.Nonce
	}
	value := new(uint256.Int)
	if args.Value != nil {
		var overflow bool
		if value, overflow = uint256.FromBig(args.Value); overflow {
			return nil, errors.New("value overflows 256 bits")
		}
	}
	price := new(big.Int)
	if args.GasPrice != nil {
		price.Set(args.GasPrice)
	}

	env := &runtime.Env{
		Number:   head.Number.Uint64() + 1,
		Time:     timestamp,
		Coinbase: n.coinbase,
		BaseFee:  baseFee,
		GasLimit: n.gasLimit,
		ChainID:  new(big.Int).SetUint64(n.opts.ChainID),
	}
	msg := &runtime.Message{
		From:     args.From,
		To:       args.To,
		Nonce:    nonce,
		Value:    value,
		Gas:      gas,
		GasPrice: price,
		Data:     args.Data,
	}
	return n.opts.Executor.Execute(ctx, st, env, msg)
}
