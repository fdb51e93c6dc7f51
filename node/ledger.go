// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vechain/devnode/txpool"
)

// ledger feeds the pool with committed sender state. It takes no lock:
// the pool is called either from the writer slot or under a shared lock.
type ledger struct {
	n *Node
}

var _ txpool.Ledger = ledger{}

func (l ledger) Account(ctx context.Context, addr common.Address) (uint64, *uint256.Int, error) {
	acc, err := l.n.store.Account(ctx, addr)
	if err != nil {
		return 0, nil, err
	}
	return acc.Nonce, acc.Balance, nil
}
