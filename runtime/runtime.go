// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime defines the execution engine the node drives and ships a
// basic implementation of it.
package runtime

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Gas schedule of the basic engine.
const (
	TxGas            uint64 = 21000
	TxCreateGas      uint64 = 32000
	TxDataNonZeroGas uint64 = 16
	TxDataZeroGas    uint64 = 4
	CreateDataGas    uint64 = 200
	LogGas           uint64 = 375
	LogTopicGas      uint64 = 375
	LogDataGas       uint64 = 8
	StorageSetGas    uint64 = 20000

	MaxCodeSize = 24576
	MaxTopics   = 4
)

// Execution failures. They end up in a failed receipt.
var (
	ErrExecutionReverted      = errors.New("execution reverted")
	ErrOutOfGas               = errors.New("out of gas")
	ErrInvalidOpcode          = errors.New("invalid opcode")
	ErrInsufficientTransfer   = errors.New("insufficient balance for transfer")
	ErrContractAddressCollide = errors.New("contract address collision")
	ErrMaxCodeSizeExceeded    = errors.New("max code size exceeded")
)

// ErrIntrinsicGas is returned when the gas limit cannot cover the intrinsic
// cost. The tx can not be included.
var ErrIntrinsicGas = errors.New("intrinsic gas too low")

// Env is the block context of an execution.
type Env struct {
	Number   uint64
	Time     uint64
	Coinbase common.Address
	BaseFee  *big.Int
	GasLimit uint64
	ChainID  *big.Int
}

// Message is a transaction stripped to what execution needs.
type Message struct {
	From     common.Address
	To       *common.Address
	Nonce    uint64
	Value    *uint256.Int
	Gas      uint64
	GasPrice *big.Int
	Data     []byte
	Hash     common.Hash
}

// TxMessage builds the message for tx sent by from at gasPrice.
func TxMessage(tx *types.Transaction, from common.Address, gasPrice *big.Int) *Message {
	value, _ := uint256.FromBig(tx.Value())
	if value == nil {
		value = new(uint256.Int)
	}
	return &Message{
		From:     from,
		To:       tx.To(),
		Nonce:    tx.Nonce(),
		Value:    value,
		Gas:      tx.Gas(),
		GasPrice: gasPrice,
		Data:     tx.Data(),
		Hash:     tx.Hash(),
	}
}

// Result is the outcome of an execution.
type Result struct {
	UsedGas         uint64
	Failed          bool
	Err             error // reason of the failure
	ReturnData      []byte
	Logs            []*types.Log
	ContractAddress common.Address
}

// Revert returns the revert payload of a failed execution.
func (r *Result) Revert() []byte {
	if errors.Cause(r.Err) != ErrExecutionReverted {
		return nil
	}
	return r.ReturnData
}

// Executor runs one message against a state. Failures of the message itself
// are reported through Result with the state effects rolled back; a
// returned error means the message could not run at all (bad message, state
// read failure) and the caller must discard any effects.
type Executor interface {
	Execute(ctx context.Context, st StateDB, env *Env, msg *Message) (*Result, error)
}

// IntrinsicGas returns the gas charged before execution.
func IntrinsicGas(data []byte, create bool) uint64 {
	gas := TxGas
	if create {
		gas += TxCreateGas
	}
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	return gas
}
