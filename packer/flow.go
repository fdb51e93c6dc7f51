// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/runtime"
	"github.com/vechain/devnode/state"
	"github.com/vechain/devnode/txpool"
)

// Flow the flow of packing a new block.
type Flow struct {
	ctx          context.Context
	packer       *Packer
	parentHeader *types.Header
	state        *state.State
	env          *runtime.Env
	processedTxs map[common.Hash]bool // tx hash -> failed
	gasUsed      uint64
	txs          types.Transactions
	receipts     types.Receipts
	senders      []common.Address
}

func newFlow(
	ctx context.Context,
	packer *Packer,
	parentHeader *types.Header,
	state *state.State,
	env *runtime.Env,
) *Flow {
	return &Flow{
		ctx:          ctx,
		packer:       packer,
		parentHeader: parentHeader,
		state:        state,
		env:          env,
		processedTxs: make(map[common.Hash]bool),
	}
}

// ParentHeader returns parent block header.
func (f *Flow) ParentHeader() *types.Header {
	return f.parentHeader
}

// Env returns the block context txs run in.
func (f *Flow) Env() *runtime.Env {
	return f.env
}

// GasUsed returns the gas used by the adopted txs.
func (f *Flow) GasUsed() uint64 {
	return f.gasUsed
}

// Txs returns the adopted txs.
func (f *Flow) Txs() types.Transactions {
	return f.txs
}

// Adopt try to execute the given transaction.
// If the tx is valid and can be executed on current state (regardless of execution failure),
// it will be adopted by the new block.
// Errors that are neither bad tx nor not-adoptable-now come from reading
// state and abort the whole flow.
func (f *Flow) Adopt(obj *txpool.TxObject) error {
	tx := obj.Transaction
	sender := obj.Sender()

	switch {
	case f.gasUsed+tx.Gas() > f.env.GasLimit:
		return errGasLimitReached
	case tx.Protected() && tx.ChainId().Cmp(f.packer.chainID) != 0:
		return badTxError{"chain id mismatch"}
	case f.env.BaseFee != nil && tx.GasFeeCap().Cmp(f.env.BaseFee) < 0:
		return errTxNotAdoptableNow
	}
	if _, ok := f.processedTxs[tx.Hash()]; ok {
		return errKnownTx
	}

	nonce, err := f.state.GetNonce(sender)
	if err != nil {
		return err
	}
	switch {
	case tx.Nonce() < nonce:
		return badTxError{"nonce too low"}
	case tx.Nonce() > nonce:
		return errTxNotAdoptableNow
	}

	price := txpool.EffectiveGasPrice(tx, f.env.BaseFee)
	gasCost := new(big.Int).Mul(price, new(big.Int).SetUint64(tx.Gas()))
	maxCost := new(big.Int).Mul(tx.GasFeeCap(), new(big.Int).SetUint64(tx.Gas()))
	maxCost.Add(maxCost, tx.Value())

	balance, err := f.state.GetBalance(sender)
	if err != nil {
		return err
	}
	if balance.ToBig().Cmp(maxCost) < 0 {
		return badTxError{"insufficient funds for gas * price + value"}
	}

	outer := f.state.Checkpoint()
	receipt, err := f.execute(tx, sender, nonce, price, gasCost)
	if err != nil {
		// skip and revert state
		f.state.Rollback(outer)
		if fork.IsError(err) || f.ctx.Err() != nil {
			return err
		}
		return badTxError{err.Error()}
	}
	f.state.Commit(outer)

	f.processedTxs[tx.Hash()] = receipt.Status == types.ReceiptStatusFailed
	f.gasUsed = receipt.CumulativeGasUsed
	f.receipts = append(f.receipts, receipt)
	f.txs = append(f.txs, tx)
	f.senders = append(f.senders, sender)

	metricTransactionTypeCounter().AddWithLabel(1, map[string]string{"type": strconv.Itoa(int(tx.Type()))})
	if receipt.Status == types.ReceiptStatusFailed {
		metricTxOutcomeCounter().AddWithLabel(1, map[string]string{"outcome": "failed"})
	} else {
		metricTxOutcomeCounter().AddWithLabel(1, map[string]string{"outcome": "success"})
	}
	return nil
}

func (f *Flow) execute(tx *types.Transaction, sender common.Address, nonce uint64, price, gasCost *big.Int) (*types.Receipt, error) {
	// buy gas
	if err := f.state.SubBalance(sender, uint256.MustFromBig(gasCost)); err != nil {
		return nil, err
	}
	if err := f.state.SetNonce(sender, nonce+1); err != nil {
		return nil, err
	}

	inner := f.state.Checkpoint()
	msg := runtime.TxMessage(tx, sender, price)
	msg.Nonce = nonce
	res, err := f.packer.executor.Execute(f.ctx, f.state, f.env, msg)
	if err != nil {
		return nil, err
	}
	if res.Failed {
		f.state.Rollback(inner)
	} else {
		f.state.Commit(inner)
	}
	if res.UsedGas > tx.Gas() {
		return nil, errors.Errorf("executor used %d gas over limit %d", res.UsedGas, tx.Gas())
	}

	// return unused gas, pay the tip
	leftOver := new(big.Int).Mul(price, new(big.Int).SetUint64(tx.Gas()-res.UsedGas))
	if err := f.state.AddBalance(sender, uint256.MustFromBig(leftOver)); err != nil {
		return nil, err
	}
	tip := new(big.Int).Set(price)
	if f.env.BaseFee != nil {
		tip.Sub(tip, f.env.BaseFee)
	}
	tip.Mul(tip, new(big.Int).SetUint64(res.UsedGas))
	if err := f.state.AddBalance(f.env.Coinbase, uint256.MustFromBig(tip)); err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: f.gasUsed + res.UsedGas,
		TxHash:            tx.Hash(),
		GasUsed:           res.UsedGas,
		EffectiveGasPrice: price,
		BlockNumber:       new(big.Int).SetUint64(f.env.Number),
		TransactionIndex:  uint(len(f.txs)),
		Logs:              []*types.Log{},
	}
	if res.Failed {
		receipt.Status = types.ReceiptStatusFailed
		logger.Debug("tx failed", "id", tx.Hash(), "err", res.Err)
	} else {
		if len(res.Logs) > 0 {
			receipt.Logs = res.Logs
		}
		if tx.To() == nil {
			receipt.ContractAddress = res.ContractAddress
		}
	}
	for _, l := range receipt.Logs {
		l.TxHash = tx.Hash()
		l.TxIndex = receipt.TransactionIndex
		l.BlockNumber = f.env.Number
		receipt.Bloom.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			receipt.Bloom.Add(topic.Bytes())
		}
	}
	return receipt, nil
}

// Pack seals the block. The flow must not be used afterwards.
func (f *Flow) Pack() (*types.Block, types.Receipts, []common.Address) {
	header := &types.Header{
		ParentHash: f.parentHeader.Hash(),
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   f.env.Coinbase,
		Root:       f.state.Root(),
		Difficulty: common.Big0,
		Number:     new(big.Int).SetUint64(f.env.Number),
		GasLimit:   f.env.GasLimit,
		GasUsed:    f.gasUsed,
		Time:       f.env.Time,
		BaseFee:    f.env.BaseFee,
	}
	block := types.NewBlock(header, &types.Body{Transactions: f.txs}, f.receipts, trie.NewStackTrie(nil))

	var logIndex uint
	for _, receipt := range f.receipts {
		receipt.BlockHash = block.Hash()
		for _, l := range receipt.Logs {
			l.BlockHash = block.Hash()
			l.Index = logIndex
			logIndex++
		}
	}

	empty := "false"
	if len(f.txs) == 0 {
		empty = "true"
	}
	metricBlockTxs().ObserveWithLabels(int64(len(f.txs)), map[string]string{"empty": empty})
	return block, f.receipts, f.senders
}
