// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vechain/devnode/clock"
	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/runtime"
	"github.com/vechain/devnode/txpool"
)

// Defaults of a local chain.
const (
	housekeepingInterval = time.Second

	DefaultChainID  = 1337
	DefaultGasLimit = 30_000_000
)

// DefaultTip is the priority fee suggested to and filled in for clients, 1 gwei.
var DefaultTip = big.NewInt(1_000_000_000)

// Dialer connects to the remote chain of a fork.
type Dialer func(ctx context.Context, cfg fork.Config) (fork.Remote, fork.Config, error)

// Options options for the node.
type Options struct {
	// ChainID defaults to the chain id of the fork, or DefaultChainID.
	ChainID  uint64
	GasLimit uint64
	Coinbase common.Address
	// BaseFee is the base fee of a fresh genesis, nil for the protocol initial value.
	BaseFee *big.Int
	// GenesisTime is the timestamp of a fresh genesis, 0 for now.
	GenesisTime uint64

	Automine      bool
	BlockInterval time.Duration

	// Fork mirrors a remote chain when set.
	Fork   *fork.Config
	Dialer Dialer

	Clock    clock.Options
	TxPool   txpool.Options
	Executor runtime.Executor
}

func (o *Options) normalize() {
	if o.GasLimit == 0 {
		o.GasLimit = DefaultGasLimit
	}
	if o.Dialer == nil {
		o.Dialer = fork.Connect
	}
	if o.Executor == nil {
		o.Executor = runtime.Basic{}
	}
	if o.TxPool.Limit == 0 {
		o.TxPool.Limit = 10000
	}
	if o.TxPool.BlockGasLimit == 0 {
		o.TxPool.BlockGasLimit = o.GasLimit
	}
}
