// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis builds the base block of a chain.
package genesis

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/state"
)

// Builder helper to build genesis block.
type Builder struct {
	timestamp uint64
	gasLimit  uint64
	baseFee   *big.Int
	base      *types.Header

	stateProcs []func(state *state.State) error
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// GasLimit set gas limit.
func (b *Builder) GasLimit(limit uint64) *Builder {
	b.gasLimit = limit
	return b
}

// BaseFee set base fee.
func (b *Builder) BaseFee(fee *big.Int) *Builder {
	b.baseFee = fee
	return b
}

// Base makes the built block the given header, typically the pinned block
// of a fork. Timestamp, gas limit and base fee are ignored then.
func (b *Builder) Base(header *types.Header) *Builder {
	b.base = header
	return b
}

// State add a state process.
func (b *Builder) State(proc func(state *state.State) error) *Builder {
	b.stateProcs = append(b.stateProcs, proc)
	return b
}

// Alloc sets the balance of addr.
func (b *Builder) Alloc(addr common.Address, balance *uint256.Int) *Builder {
	return b.State(func(st *state.State) error {
		return st.SetBalance(addr, balance)
	})
}

// Build runs the state processes into store and returns the base block.
func (b *Builder) Build(ctx context.Context, store *state.Store) (*types.Block, error) {
	st := store.NewState(ctx)
	for _, proc := range b.stateProcs {
		if err := proc(st); err != nil {
			return nil, errors.Wrap(err, "state process")
		}
	}
	store.Apply(st.Journal())

	if b.base != nil {
		return types.NewBlockWithHeader(b.base), nil
	}
	return types.NewBlockWithHeader(&types.Header{
		ParentHash:  common.Hash{},
		UncleHash:   types.EmptyUncleHash,
		Root:        store.Root(),
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  common.Big0,
		Number:      common.Big0,
		GasLimit:    b.gasLimit,
		Time:        b.timestamp,
		BaseFee:     b.baseFee,
	}), nil
}
