// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/runtime"
	"github.com/vechain/devnode/state"
	"github.com/vechain/devnode/txpool"
)

var (
	chainID  = big.NewInt(1337)
	signer   = types.LatestSignerForChainID(chainID)
	coinbase = common.HexToAddress("0xc01b")
	to       = common.HexToAddress("0x00000000000000000000000000000000000bee71")
	reverter = common.HexToAddress("0xfd")
)

type fixture struct {
	key    *ecdsa.PrivateKey
	sender common.Address
	store  *state.Store
	parent *types.Header
}

func newFixture(t *testing.T) *fixture {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)

	store := state.NewStore(nil)
	st := store.NewState(context.Background())
	require.NoError(t, st.SetBalance(sender, uint256.NewInt(1e18)))
	require.NoError(t, st.SetCode(reverter, []byte{runtime.OpRevert}))
	store.Apply(st.Journal())

	parent := &types.Header{
		Number:   big.NewInt(0),
		GasLimit: 30_000_000,
		Time:     1000,
		BaseFee:  big.NewInt(1_000_000_000),
	}
	return &fixture{key, sender, store, parent}
}

func (fx *fixture) tx(t *testing.T, nonce uint64, to common.Address, value int64) *txpool.TxObject {
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasFeeCap: big.NewInt(3_000_000_000),
		GasTipCap: big.NewInt(1_000_000_000),
		Gas:       50_000,
		To:        &to,
		Value:     big.NewInt(value),
	}), signer, fx.key)
	require.NoError(t, err)
	obj, err := txpool.ResolveTx(signer, tx)
	require.NoError(t, err)
	return obj
}

func (fx *fixture) flow(p *Packer) (*Flow, *state.State) {
	st := fx.store.NewState(context.Background())
	return p.Prepare(context.Background(), fx.parent, st, Template{
		Timestamp: 1001,
		Coinbase:  coinbase,
		GasLimit:  fx.parent.GasLimit,
		BaseFee:   p.NextBaseFee(fx.parent),
	}), st
}

func TestAdoptAndPack(t *testing.T) {
	fx := newFixture(t)
	p := New(runtime.Basic{}, chainID)
	flow, st := fx.flow(p)
	baseFee := flow.Env().BaseFee

	require.NoError(t, flow.Adopt(fx.tx(t, 0, to, 100)))
	require.NoError(t, flow.Adopt(fx.tx(t, 1, reverter, 100)))
	assert.Equal(t, 2*runtime.TxGas, flow.GasUsed())

	nonce, err := st.GetNonce(fx.sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	// effective price is base fee + tip, the tip goes to the coinbase
	price := new(big.Int).Add(baseFee, big.NewInt(1_000_000_000))
	spent := new(big.Int).Mul(price, big.NewInt(int64(2*runtime.TxGas)))
	spent.Add(spent, big.NewInt(100))
	balance, err := st.GetBalance(fx.sender)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Sub(big.NewInt(1e18), spent), balance.ToBig())

	tip, err := st.GetBalance(coinbase)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2*int64(runtime.TxGas)*1_000_000_000), tip.ToBig())

	block, receipts, senders := flow.Pack()
	assert.Equal(t, uint64(1), block.NumberU64())
	assert.Equal(t, fx.parent.Hash(), block.ParentHash())
	assert.Equal(t, uint64(1001), block.Time())
	assert.Equal(t, baseFee, block.BaseFee())
	assert.Equal(t, st.Root(), block.Root())
	assert.Equal(t, []common.Address{fx.sender, fx.sender}, senders)

	require.Len(t, receipts, 2)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipts[0].Status)
	assert.Equal(t, types.ReceiptStatusFailed, receipts[1].Status)
	assert.Equal(t, block.Hash(), receipts[1].BlockHash)
	assert.Equal(t, uint(1), receipts[1].TransactionIndex)
	assert.Equal(t, 2*runtime.TxGas, receipts[1].CumulativeGasUsed)

	// the reverted value transfer did not land
	got, err := st.GetBalance(reverter)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestAdoptErrors(t *testing.T) {
	fx := newFixture(t)
	p := New(runtime.Basic{}, chainID)
	flow, _ := fx.flow(p)

	assert.True(t, IsTxNotAdoptableNow(flow.Adopt(fx.tx(t, 1, to, 0))), "nonce gap")

	tx0 := fx.tx(t, 0, to, 0)
	require.NoError(t, flow.Adopt(tx0))
	assert.True(t, IsTxNotAdoptableNow(flow.Adopt(tx0)), "known tx")

	stale, err := txpool.ResolveTx(signer, mustSign(t, fx.key, &types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(3_000_000_000), Gas: 21000, To: &to}))
	require.NoError(t, err)
	assert.True(t, IsBadTx(flow.Adopt(stale)), "nonce too low")

	rich, err := txpool.ResolveTx(signer, mustSign(t, fx.key, &types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(3_000_000_000), Gas: 21000, To: &to, Value: big.NewInt(2e18)}))
	require.NoError(t, err)
	assert.True(t, IsBadTx(flow.Adopt(rich)), "insufficient funds")

	cheap, err := txpool.ResolveTx(signer, mustSign(t, fx.key, &types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(1), Gas: 21000, To: &to}))
	require.NoError(t, err)
	assert.True(t, IsTxNotAdoptableNow(flow.Adopt(cheap)), "fee cap below base fee")

	heavy, err := txpool.ResolveTx(signer, mustSign(t, fx.key, &types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(3_000_000_000), Gas: 40_000_000, To: &to}))
	require.NoError(t, err)
	assert.True(t, IsGasLimitReached(flow.Adopt(heavy)))

	low, err := txpool.ResolveTx(signer, mustSign(t, fx.key, &types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(3_000_000_000), Gas: 20_000, To: &to}))
	require.NoError(t, err)
	assert.True(t, IsBadTx(flow.Adopt(low)), "intrinsic gas")

	nonce, err := flow.state.GetNonce(fx.sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce, "rejected txs leave no trace")
}

func mustSign(t *testing.T, key *ecdsa.PrivateKey, inner types.TxData) *types.Transaction {
	tx, err := types.SignTx(types.NewTx(inner), signer, key)
	require.NoError(t, err)
	return tx
}

type failingExecutor struct{ err error }

func (e failingExecutor) Execute(context.Context, runtime.StateDB, *runtime.Env, *runtime.Message) (*runtime.Result, error) {
	return nil, e.err
}

func TestAdoptForkErrorAborts(t *testing.T) {
	fx := newFixture(t)
	forkErr := &fork.Error{Op: "storage", Cause: errors.New("timeout")}
	flow, st := fx.flow(New(failingExecutor{forkErr}, chainID))

	err := flow.Adopt(fx.tx(t, 0, to, 0))
	assert.False(t, IsBadTx(err))
	assert.True(t, fork.IsError(err))

	nonce, err := st.GetNonce(fx.sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}

func TestNextBaseFee(t *testing.T) {
	p := New(runtime.Basic{}, chainID)

	assert.Equal(t, big.NewInt(1_000_000_000), p.NextBaseFee(&types.Header{Number: big.NewInt(0), GasLimit: 30_000_000}))

	parent := &types.Header{Number: big.NewInt(5), GasLimit: 30_000_000, BaseFee: big.NewInt(1_000_000_000)}
	parent.GasUsed = 15_000_000
	assert.Equal(t, big.NewInt(1_000_000_000), p.NextBaseFee(parent), "at target")

	parent.GasUsed = 0
	assert.Equal(t, -1, p.NextBaseFee(parent).Cmp(parent.BaseFee), "empty block lowers the fee")

	parent.GasUsed = 30_000_000
	assert.Equal(t, 1, p.NextBaseFee(parent).Cmp(parent.BaseFee), "full block raises the fee")
}

func TestPackEmpty(t *testing.T) {
	fx := newFixture(t)
	flow, _ := fx.flow(New(runtime.Basic{}, chainID))
	block, receipts, senders := flow.Pack()
	assert.Equal(t, 0, block.Transactions().Len())
	assert.Empty(t, receipts)
	assert.Empty(t, senders)
	assert.Equal(t, types.EmptyReceiptsHash, block.ReceiptHash())
	assert.Equal(t, fx.store.Root(), block.Root())
}
