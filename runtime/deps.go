// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vechain/devnode/state"
)

// StateDB is the view an Executor runs against. Reads may reach a remote
// fork and fail; such errors abort the execution.
type StateDB interface {
	GetBalance(common.Address) (*uint256.Int, error)
	GetNonce(common.Address) (uint64, error)
	GetCode(common.Address) ([]byte, error)
	GetStorage(addr common.Address, slot common.Hash) (common.Hash, error)
	Exists(common.Address) (bool, error)

	SetBalance(common.Address, *uint256.Int) error
	AddBalance(common.Address, *uint256.Int) error
	SubBalance(common.Address, *uint256.Int) error
	SetNonce(common.Address, uint64) error
	SetCode(common.Address, []byte) error
	SetStorage(addr common.Address, slot, val common.Hash)
	Destruct(common.Address)

	Checkpoint() int
	Commit(int)
	Rollback(int)
}

var _ StateDB = (*state.State)(nil)
