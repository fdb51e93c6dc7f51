// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// TxObject is a pooled transaction with its resolved sender.
type TxObject struct {
	*types.Transaction
	sender       common.Address
	impersonated bool
	seq          uint64
	timeAdded    time.Time
}

// ResolveTx recovers the sender of a signed transaction.
func ResolveTx(signer types.Signer, tx *types.Transaction) (*TxObject, error) {
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType, types.DynamicFeeTxType:
	default:
		return nil, ErrUnsupportedTxType
	}
	sender, err := types.Sender(signer, tx)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSender, err.Error())
	}
	return &TxObject{Transaction: tx, sender: sender}, nil
}

// ImpersonatedTx wraps a transaction whose sender is taken on trust.
func ImpersonatedTx(tx *types.Transaction, sender common.Address) *TxObject {
	return &TxObject{Transaction: tx, sender: sender, impersonated: true}
}

// Sender returns the sender.
func (o *TxObject) Sender() common.Address { return o.sender }

// Impersonated reports whether the signature was bypassed.
func (o *TxObject) Impersonated() bool { return o.impersonated }

// TimeAdded returns the admission time.
func (o *TxObject) TimeAdded() time.Time { return o.timeAdded }

// EffectiveGasPrice returns the price paid per gas under baseFee. A nil
// baseFee yields the fee cap.
func (o *TxObject) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	return EffectiveGasPrice(o.Transaction, baseFee)
}

// EffectiveGasPrice returns min(feeCap, baseFee + tipCap).
func EffectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tx.GasFeeCap())
	}
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price.Set(tx.GasFeeCap())
	}
	return price
}

func (o *TxObject) cost() *big.Int {
	cost := new(big.Int).Mul(o.GasFeeCap(), new(big.Int).SetUint64(o.Gas()))
	return cost.Add(cost, o.Value())
}
