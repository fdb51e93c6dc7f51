// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/vechain/devnode/log"
	"github.com/vechain/devnode/runtime"
	"github.com/vechain/devnode/state"
)

var logger = log.WithContext("pkg", "packer")

// Packer to pack txs and build new blocks.
type Packer struct {
	executor runtime.Executor
	chainID  *big.Int
	config   *params.ChainConfig
}

// New create a new Packer instance.
func New(executor runtime.Executor, chainID *big.Int) *Packer {
	config := *params.AllDevChainProtocolChanges
	config.ChainID = chainID
	return &Packer{
		executor: executor,
		chainID:  chainID,
		config:   &config,
	}
}

// ChainID returns the chain id blocks are packed for.
func (p *Packer) ChainID() *big.Int {
	return new(big.Int).Set(p.chainID)
}

// NextBaseFee returns the base fee of the block following parent.
func (p *Packer) NextBaseFee(parent *types.Header) *big.Int {
	if parent.BaseFee == nil {
		return new(big.Int).SetUint64(params.InitialBaseFee)
	}
	return eip1559.CalcBaseFee(p.config, parent)
}

// Template is the header fields of the block being packed.
type Template struct {
	Timestamp uint64
	Coinbase  common.Address
	GasLimit  uint64
	BaseFee   *big.Int
}

// Prepare starts packing a block on top of parent. Txs are executed against
// st, which the flow owns until Pack.
func (p *Packer) Prepare(ctx context.Context, parent *types.Header, st *state.State, tmpl Template) *Flow {
	env := &runtime.Env{
		Number:   parent.Number.Uint64() + 1,
		Time:     tmpl.Timestamp,
		Coinbase: tmpl.Coinbase,
		BaseFee:  tmpl.BaseFee,
		GasLimit: tmpl.GasLimit,
		ChainID:  p.chainID,
	}
	return newFlow(ctx, p, parent, st, env)
}
