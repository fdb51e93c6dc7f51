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

	"github.com/vechain/devnode/state"
)

// SetBalance overrides the balance of addr.
func (n *Node) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	value, overflow := uint256.FromBig(balance)
	if overflow || balance.Sign() < 0 {
		return errors.Errorf("invalid balance %v", balance)
	}
	return n.modify(ctx, func(st *state.State) error {
		return st.SetBalance(addr, value)
	})
}

// SetNonce overrides the nonce of addr.
func (n *Node) SetNonce(ctx context.Context, addr common.Address, nonce uint64) error {
	return n.modify(ctx, func(st *state.State) error {
		return st.SetNonce(addr, nonce)
	})
}

// SetCode overrides the code of addr.
func (n *Node) SetCode(ctx context.Context, addr common.Address, code []byte) error {
	return n.modify(ctx, func(st *state.State) error {
		return st.SetCode(addr, common.CopyBytes(code))
	})
}

// SetStorageAt overrides one storage slot of addr.
func (n *Node) SetStorageAt(ctx context.Context, addr common.Address, slot, value common.Hash) error {
	return n.modify(ctx, func(st *state.State) error {
		st.SetStorage(addr, slot, value)
		return nil
	})
}

// Impersonate lets txs from addr be sent without its key.
func (n *Node) Impersonate(ctx context.Context, addr common.Address) error {
	return n.exclusive(ctx, func() error {
		n.impersonated[addr] = true
		logger.Info("impersonating", "account", addr)
		return nil
	})
}

// StopImpersonating reverts Impersonate.
func (n *Node) StopImpersonating(ctx context.Context, addr common.Address) error {
	return n.exclusive(ctx, func() error {
		delete(n.impersonated, addr)
		return nil
	})
}

// SetAutoImpersonate impersonates every account while enabled.
func (n *Node) SetAutoImpersonate(ctx context.Context, enabled bool) error {
	return n.exclusive(ctx, func() error {
		n.autoImpersonate = enabled
		return nil
	})
}

// SetNextBaseFee forces the base fee of the next block.
func (n *Node) SetNextBaseFee(ctx context.Context, fee *big.Int) error {
	if fee == nil || fee.Sign() < 0 {
		return errors.Errorf("invalid base fee %v", fee)
	}
	return n.exclusive(ctx, func() error {
		n.nextBaseFee = new(big.Int).Set(fee)
		return nil
	})
}

// SetCoinbase sets the beneficiary of the following blocks.
func (n *Node) SetCoinbase(ctx context.Context, addr common.Address) error {
	return n.exclusive(ctx, func() error {
		n.coinbase = addr
		return nil
	})
}

// SetBlockGasLimit sets the gas limit of the following blocks.
func (n *Node) SetBlockGasLimit(ctx context.Context, limit uint64) error {
	if limit == 0 {
		return errors.New("zero gas limit")
	}
	return n.exclusive(ctx, func() error {
		n.gasLimit = limit
		n.pool.SetBlockGasLimit(limit)
		return nil
	})
}

// DropTransaction removes a pooled tx, reporting whether it was pooled.
func (n *Node) DropTransaction(ctx context.Context, hash common.Hash) (bool, error) {
	var dropped bool
	err := n.exclusive(ctx, func() error {
		dropped = n.pool.Remove(hash) > 0
		return nil
	})
	return dropped, err
}

// DropAllTransactions empties the pool.
func (n *Node) DropAllTransactions(ctx context.Context) error {
	return n.exclusive(ctx, func() error {
		n.pool.RemoveAll()
		return nil
	})
}

// SetNextBlockTimestamp forces the timestamp of the next block.
func (n *Node) SetNextBlockTimestamp(ctx context.Context, ts uint64) error {
	return n.exclusive(ctx, func() error {
		n.clock.SetNext(ts)
		return nil
	})
}

// IncreaseTime shifts the clock forward and returns the total offset in seconds.
func (n *Node) IncreaseTime(ctx context.Context, seconds uint64) (int64, error) {
	var offset int64
	err := n.exclusive(ctx, func() error {
		offset = n.clock.IncreaseTime(seconds)
		return nil
	})
	return offset, err
}

// SetTime sets the clock to ts and returns the resulting offset in seconds.
func (n *Node) SetTime(ctx context.Context, ts uint64) (int64, error) {
	var offset int64
	err := n.exclusive(ctx, func() error {
		offset = n.clock.SetTime(ts)
		return nil
	})
	return offset, err
}

// SetBlockTimestampInterval spaces the timestamps of following blocks by seconds.
func (n *Node) SetBlockTimestampInterval(ctx context.Context, seconds uint64) error {
	return n.exclusive(ctx, func() error {
		n.clock.SetInterval(seconds)
		return nil
	})
}

// RemoveBlockTimestampInterval reports whether an interval was set.
func (n *Node) RemoveBlockTimestampInterval(ctx context.Context) (bool, error) {
	var removed bool
	err := n.exclusive(ctx, func() error {
		removed = n.clock.RemoveInterval()
		return nil
	})
	return removed, err
}
