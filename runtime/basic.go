// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Leading code bytes the basic engine understands. Any other code accepts
// the call and does nothing.
const (
	OpReturn  byte = 0xf3 // return the rest of the code
	OpRevert  byte = 0xfd // revert with the rest of the code as payload
	OpInvalid byte = 0xfe // fail consuming all gas
	OpLog     byte = 0xa0 // emit calldata, topics are the rest of the code in 32 byte words
	OpStore   byte = 0x55 // store calldata[32:64] at slot calldata[:32]
)

// Basic is a minimal engine: value transfers, contract creation deploying the
// payload as code, and a handful of code markers for logs, storage writes
// and failures.
type Basic struct{}

var _ Executor = Basic{}

// Execute implements Executor.
func (Basic) Execute(ctx context.Context, st StateDB, env *Env, msg *Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intrinsic := IntrinsicGas(msg.Data, msg.To == nil)
	if intrinsic > msg.Gas {
		return nil, errors.WithMessagef(ErrIntrinsicGas, "have %d, want %d", msg.Gas, intrinsic)
	}

	cp := st.Checkpoint()
	res, err := execute(st, msg, intrinsic)
	if err != nil {
		st.Rollback(cp)
		return nil, err
	}
	if !res.Failed && res.UsedGas > msg.Gas {
		res = &Result{Failed: true, Err: ErrOutOfGas, UsedGas: msg.Gas}
	}
	if res.Failed {
		st.Rollback(cp)
		res.Logs = nil
		res.ContractAddress = common.Address{}
		return res, nil
	}
	st.Commit(cp)
	return res, nil
}

func execute(st StateDB, msg *Message, gas uint64) (*Result, error) {
	res := &Result{UsedGas: gas}
	fail := func(reason error) (*Result, error) {
		res.Failed, res.Err = true, reason
		return res, nil
	}
	// failures other than a revert consume all gas
	failAll := func(reason error) (*Result, error) {
		res.UsedGas = msg.Gas
		return fail(reason)
	}

	target := msg.To
	if target == nil {
		addr := crypto.CreateAddress(msg.From, msg.Nonce)
		nonce, err := st.GetNonce(addr)
		if err != nil {
			return nil, err
		}
		code, err := st.GetCode(addr)
		if err != nil {
			return nil, err
		}
		if nonce != 0 || len(code) > 0 {
			return failAll(ErrContractAddressCollide)
		}
		target = &addr
	}

	if !msg.Value.IsZero() {
		balance, err := st.GetBalance(msg.From)
		if err != nil {
			return nil, err
		}
		if balance.Lt(msg.Value) {
			return fail(ErrInsufficientTransfer)
		}
		if err := st.SubBalance(msg.From, msg.Value); err != nil {
			return nil, err
		}
		if err := st.AddBalance(*target, msg.Value); err != nil {
			return nil, err
		}
	}

	if msg.To == nil {
		if len(msg.Data) > MaxCodeSize {
			return failAll(ErrMaxCodeSizeExceeded)
		}
		res.UsedGas += CreateDataGas * uint64(len(msg.Data))
		if err := st.SetNonce(*target, 1); err != nil {
			return nil, err
		}
		if err := st.SetCode(*target, msg.Data); err != nil {
			return nil, err
		}
		res.ContractAddress = *target
		return res, nil
	}

	code, err := st.GetCode(*target)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return res, nil
	}
	switch code[0] {
	case OpReturn:
		res.ReturnData = common.CopyBytes(code[1:])
	case OpRevert:
		res.ReturnData = common.CopyBytes(code[1:])
		return fail(ErrExecutionReverted)
	case OpInvalid:
		return failAll(ErrInvalidOpcode)
	case OpLog:
		var topics []common.Hash
		for rest := code[1:]; len(rest) >= common.HashLength && len(topics) < MaxTopics; rest = rest[common.HashLength:] {
			topics = append(topics, common.BytesToHash(rest[:common.HashLength]))
		}
		res.UsedGas += LogGas + LogTopicGas*uint64(len(topics)) + LogDataGas*uint64(len(msg.Data))
		res.Logs = append(res.Logs, &types.Log{
			Address: *target,
			Topics:  topics,
			Data:    common.CopyBytes(msg.Data),
		})
	case OpStore:
		if len(msg.Data) == 2*common.HashLength {
			res.UsedGas += StorageSetGas
			st.SetStorage(*target, common.BytesToHash(msg.Data[:common.HashLength]), common.BytesToHash(msg.Data[common.HashLength:]))
		}
	}
	return res, nil
}
