// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/genesis"
	"github.com/vechain/devnode/txpool"
)

// ErrUnknownAccount is returned when asked to send from an account the node
// can neither sign for nor impersonate.
var ErrUnknownAccount = errors.New("unknown account")

// SendRawTransaction admits a signed transaction. Under automine it is mined
// before returning.
func (n *Node) SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	release, err := n.acquire(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	defer release()

	obj, err := n.pool.Add(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	n.admitted(obj)
	return obj.Hash(), nil
}

// SendTransaction builds, signs and admits a transaction from a dev account
// or an impersonated one.
func (n *Node) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	release, err := n.acquire(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	defer release()

	key := devKey(args.From)
	if key == nil && !n.impersonated[args.From] && !n.autoImpersonate {
		return common.Hash{}, errors.WithMessagef(ErrUnknownAccount, "%s", args.From.Hex())
	}

	tx, err := n.fillTx(ctx, args)
	if err != nil {
		return common.Hash{}, err
	}

	var obj *txpool.TxObject
	if key != nil {
		signed, err := types.SignTx(tx, n.signer, key)
		if err != nil {
			return common.Hash{}, errors.Wrap(err, "sign tx")
		}
		obj, err = n.pool.Add(ctx, signed)
		if err != nil {
			return common.Hash{}, err
		}
	} else {
		placeholder, err := n.impersonatedTx(tx, args.From)
		if err != nil {
			return common.Hash{}, err
		}
		obj, err = n.pool.AddImpersonated(ctx, placeholder, args.From)
		if err != nil {
			return common.Hash{}, err
		}
	}
	n.admitted(obj)
	return obj.Hash(), nil
}

// admitted runs the automine pass following an admission. The caller holds
// the writer slot.
func (n *Node) admitted(obj *txpool.TxObject) {
	if !n.automine.Load() {
		return
	}
	// the pass outlives the request, the tx is already accepted
	if _, err := n.mineOne(n.ctx, triggerAuto); err != nil {
		logger.Warn("automine failed", "tx", obj.Hash(), "err", err)
	}
}

func devKey(addr common.Address) *ecdsa.PrivateKey {
	for _, acc := range genesis.DevAccounts() {
		if acc.Address == addr {
			return acc.PrivateKey
		}
	}
	return nil
}

// fillTx completes args with the sender's next nonce, an estimated gas limit
// and fees over the next base fee.
func (n *Node) fillTx(ctx context.Context, args TxArgs) (*types.Transaction, error) {
	if args.Nonce == nil {
		acc, err := n.store.Account(ctx, args.From)
		if err != nil {
			return nil, err
		}
		nonce := n.pool.NextNonce(args.From, acc.Nonce)
		args.Nonce = &nonce
	}
	if args.Gas == nil {
		gas, err := n.estimateGas(ctx, args)
		if err != nil {
			return nil, err
		}
		args.Gas = &gas
	}
	value := args.Value
	if value == nil {
		value = new(big.Int)
	}

	if args.GasPrice != nil {
		return types.NewTx(&types.LegacyTx{
			Nonce:    *args.Nonce,
			GasPrice: args.GasPrice,
			Gas:      *args.Gas,
			To:       args.To,
			Value:    value,
			Data:     args.Data,
		}), nil
	}

	tip := args.MaxPriorityFeePerGas
	if tip == nil {
		tip = new(big.Int).Set(DefaultTip)
	}
	feeCap := args.MaxFeePerGas
	if feeCap == nil {
		baseFee := n.nextBaseFee
		if baseFee == nil {
			baseFee = n.packer.NextBaseFee(n.repo.BestBlock().Header())
		}
		feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	}
	if args.MaxPriorityFeePerGas == nil && tip.Cmp(feeCap) > 0 {
		tip = new(big.Int).Set(feeCap)
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(n.opts.ChainID),
		Nonce:     *args.Nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       *args.Gas,
		To:        args.To,
		Value:     value,
		Data:      args.Data,
	}), nil
}

// impersonatedTx gives tx a signature that does not recover but embeds the
// sender, so equal txs of different senders hash differently.
func (n *Node) impersonatedTx(tx *types.Transaction, from common.Address) (*types.Transaction, error) {
	sig := make([]byte, 65)
	copy(sig[32-common.AddressLength:32], from[:])
	sig[63] = 1
	signed, err := tx.WithSignature(n.signer, sig)
	if err != nil {
		return nil, errors.Wrap(err, "impersonate")
	}
	return signed, nil
}
