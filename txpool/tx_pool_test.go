// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chainID = big.NewInt(1337)
	signer  = types.LatestSignerForChainID(chainID)
	to      = common.HexToAddress("0x00000000000000000000000000000000000bee71")
)

type account struct {
	nonce   uint64
	balance *uint256.Int
}

type memLedger struct {
	mu       sync.Mutex
	accounts map[common.Address]*account
}

func newLedger() *memLedger {
	return &memLedger{accounts: make(map[common.Address]*account)}
}

func (l *memLedger) fund(addr common.Address, nonce uint64, balance uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[addr] = &account{nonce, uint256.NewInt(balance)}
}

func (l *memLedger) Account(_ context.Context, addr common.Address) (uint64, *uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.nonce, acc.balance, nil
	}
	return 0, new(uint256.Int), nil
}

type failingLedger struct{}

func (failingLedger) Account(context.Context, common.Address) (uint64, *uint256.Int, error) {
	return 0, nil, errors.New("remote unavailable")
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func legacyTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, gasPrice int64) *types.Transaction {
	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(gasPrice),
		Gas:      21000,
		To:       &to,
	}), signer, key)
	require.NoError(t, err)
	return tx
}

func dynamicTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, feeCap, tip int64) *types.Transaction {
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasFeeCap: big.NewInt(feeCap),
		GasTipCap: big.NewInt(tip),
		Gas:       21000,
		To:        &to,
	}), signer, key)
	require.NoError(t, err)
	return tx
}

func newPool(ledger Ledger, options Options) *TxPool {
	if options.BlockGasLimit == 0 {
		options.BlockGasLimit = 30_000_000
	}
	return New(signer, ledger, options)
}

func hashes(objs []*TxObject) []common.Hash {
	out := make([]common.Hash, 0, len(objs))
	for _, obj := range objs {
		out = append(out, obj.Hash())
	}
	return out
}

func TestAddAndGet(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()

	tx := legacyTx(t, key, 0, 10)
	obj, err := pool.Add(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, addr, obj.Sender())
	assert.False(t, obj.Impersonated())
	assert.False(t, obj.TimeAdded().IsZero())

	assert.Equal(t, 1, pool.Len())
	assert.Equal(t, tx.Hash(), pool.Get(tx.Hash()).Hash())

	_, err = pool.Add(context.Background(), tx)
	assert.Equal(t, ErrAlreadyKnown, err)
}

func TestAdmissionErrors(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 5, 21000*10)
	poorKey, poor := newKey(t)
	ledger.fund(poor, 0, 100)

	pool := newPool(ledger, Options{Limit: 10, MaxQueuedPerAccount: 1, BlockGasLimit: 30_000_000})
	defer pool.Close()
	ctx := context.Background()

	unsigned := types.NewTx(&types.LegacyTx{Nonce: 5, GasPrice: big.NewInt(1), Gas: 21000, To: &to})
	_, err := pool.Add(ctx, unsigned)
	assert.Equal(t, ErrInvalidSender, errors.Cause(err))

	_, err = pool.Add(ctx, legacyTx(t, key, 4, 10))
	assert.Equal(t, ErrNonceTooLow, errors.Cause(err))

	_, err = pool.Add(ctx, legacyTx(t, poorKey, 0, 10))
	assert.Equal(t, ErrInsufficientFunds, errors.Cause(err))

	heavy, err := types.SignTx(types.NewTx(&types.LegacyTx{Nonce: 5, GasPrice: big.NewInt(0), Gas: 40_000_000, To: &to}), signer, key)
	require.NoError(t, err)
	_, err = pool.Add(ctx, heavy)
	assert.Equal(t, ErrGasLimit, errors.Cause(err))

	_, err = pool.Add(ctx, dynamicTx(t, key, 5, 1, 2))
	assert.Equal(t, ErrFeeCapBelowTip, err)

	// first future tx fits the queue, the second does not
	_, err = pool.Add(ctx, legacyTx(t, key, 7, 1))
	require.NoError(t, err)
	_, err = pool.Add(ctx, legacyTx(t, key, 8, 1))
	assert.Equal(t, ErrQueueFull, err)

	// executable txs are not limited by the queue depth
	for n := uint64(5); n < 7; n++ {
		_, err = pool.Add(ctx, legacyTx(t, key, n, 1))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, pool.Len())

	for _, err := range []error{ErrInvalidSender, ErrNonceTooLow, ErrQueueFull, ErrTxPoolOverflow} {
		assert.True(t, IsAdmissionError(err))
	}
	assert.False(t, IsAdmissionError(errors.New("remote unavailable")))
}

func TestAddLedgerError(t *testing.T) {
	pool := newPool(failingLedger{}, Options{Limit: 10})
	defer pool.Close()

	key, _ := newKey(t)
	_, err := pool.Add(context.Background(), legacyTx(t, key, 0, 1))
	assert.EqualError(t, err, "remote unavailable")
	assert.Equal(t, 0, pool.Len())
}

func TestReplacement(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()
	ctx := context.Background()

	first := legacyTx(t, key, 0, 10)
	_, err := pool.Add(ctx, first)
	require.NoError(t, err)

	_, err = pool.Add(ctx, legacyTx(t, key, 0, 10))
	assert.Equal(t, ErrAlreadyKnown, err)

	same := dynamicTx(t, key, 0, 10, 1)
	_, err = pool.Add(ctx, same)
	assert.Equal(t, ErrReplaceUnderpriced, err)

	higher := legacyTx(t, key, 0, 11)
	_, err = pool.Add(ctx, higher)
	require.NoError(t, err)

	assert.Equal(t, 1, pool.Len())
	assert.Nil(t, pool.Get(first.Hash()))
	assert.NotNil(t, pool.Get(higher.Hash()))
}

func TestOverflow(t *testing.T) {
	ledger := newLedger()
	pool := newPool(ledger, Options{Limit: 2})
	defer pool.Close()

	for i := range 3 {
		key, addr := newKey(t)
		ledger.fund(addr, 0, 1e18)
		_, err := pool.Add(context.Background(), legacyTx(t, key, 0, 1))
		if i < 2 {
			require.NoError(t, err)
		} else {
			assert.Equal(t, ErrTxPoolOverflow, err)
		}
	}
}

func TestAddImpersonated(t *testing.T) {
	ledger := newLedger()
	sender := common.HexToAddress("0xdead")
	ledger.fund(sender, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: &to})
	obj, err := pool.AddImpersonated(context.Background(), tx, sender)
	require.NoError(t, err)
	assert.True(t, obj.Impersonated())
	assert.Equal(t, sender, obj.Sender())
}

func TestSelectNonceOrderBeatsFee(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()
	ctx := context.Background()

	// fees rise with the nonce and are submitted in reverse
	var txs []*types.Transaction
	for n := range 3 {
		txs = append(txs, legacyTx(t, key, uint64(n), int64(10+n)))
	}
	for i := len(txs) - 1; i >= 0; i-- {
		_, err := pool.Add(ctx, txs[i])
		require.NoError(t, err)
	}

	selected, err := pool.Select(ctx, 1_000_000, nil)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{txs[0].Hash(), txs[1].Hash(), txs[2].Hash()}, hashes(selected))
}

func TestSelectAcrossSenders(t *testing.T) {
	ledger := newLedger()
	keyA, addrA := newKey(t)
	keyB, addrB := newKey(t)
	keyC, addrC := newKey(t)
	ledger.fund(addrA, 0, 1e18)
	ledger.fund(addrB, 0, 1e18)
	ledger.fund(addrC, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()
	ctx := context.Background()

	a0 := legacyTx(t, keyA, 0, 5)
	a1 := legacyTx(t, keyA, 1, 50)
	b0 := legacyTx(t, keyB, 0, 20)
	c0 := legacyTx(t, keyC, 0, 20)
	for _, tx := range []*types.Transaction{a0, a1, b0, c0} {
		_, err := pool.Add(ctx, tx)
		require.NoError(t, err)
	}

	selected, err := pool.Select(ctx, 1_000_000, nil)
	require.NoError(t, err)
	// b0 and c0 tie on price and keep admission order
	assert.Equal(t, []common.Hash{b0.Hash(), c0.Hash(), a0.Hash(), a1.Hash()}, hashes(selected))

	// budget for two txs stops the selection, no greedy skipping
	selected, err = pool.Select(ctx, 42_000, nil)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{b0.Hash(), c0.Hash()}, hashes(selected))
}

func TestSelectSkipsGapsAndLowFeeCap(t *testing.T) {
	ledger := newLedger()
	keyA, addrA := newKey(t)
	keyB, addrB := newKey(t)
	ledger.fund(addrA, 3, 1e18)
	ledger.fund(addrB, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()
	ctx := context.Background()

	a3 := legacyTx(t, keyA, 3, 100)
	a5 := legacyTx(t, keyA, 5, 100)
	b0 := dynamicTx(t, keyB, 0, 5, 5)
	for _, tx := range []*types.Transaction{a3, a5, b0} {
		_, err := pool.Add(ctx, tx)
		require.NoError(t, err)
	}

	selected, err := pool.Select(ctx, 1_000_000, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a3.Hash()}, hashes(selected))

	pending, queued, err := pool.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a3.Hash()}, hashes(pending[addrA]))
	assert.Equal(t, []common.Hash{a5.Hash()}, hashes(queued[addrA]))
	assert.Equal(t, []common.Hash{b0.Hash()}, hashes(pending[addrB]))

	// the gap closes once the sender nonce catches up
	ledger.fund(addrA, 5, 1e18)
	selected, err = pool.Select(ctx, 1_000_000, nil)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a5.Hash(), b0.Hash()}, hashes(selected))
}

func TestEffectiveGasPrice(t *testing.T) {
	key, _ := newKey(t)
	tx := dynamicTx(t, key, 0, 100, 10)
	assert.Equal(t, big.NewInt(100), EffectiveGasPrice(tx, nil))
	assert.Equal(t, big.NewInt(60), EffectiveGasPrice(tx, big.NewInt(50)))
	assert.Equal(t, big.NewInt(100), EffectiveGasPrice(tx, big.NewInt(95)))

	legacy := legacyTx(t, key, 0, 7)
	assert.Equal(t, big.NewInt(7), EffectiveGasPrice(legacy, big.NewInt(3)))
}

func TestRemoveAndEvict(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()
	ctx := context.Background()

	tx0 := legacyTx(t, key, 0, 1)
	tx1 := legacyTx(t, key, 1, 1)
	for _, tx := range []*types.Transaction{tx0, tx1} {
		_, err := pool.Add(ctx, tx)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, pool.Remove(tx0.Hash(), common.Hash{0x1}))
	assert.Equal(t, 1, pool.Len())

	assert.Equal(t, 0, pool.EvictOlderThan(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, pool.EvictOlderThan(time.Millisecond))
	assert.Equal(t, 0, pool.Len())

	_, err := pool.Add(ctx, tx0)
	require.NoError(t, err)
	pool.RemoveAll()
	assert.Equal(t, 0, pool.Len())
}

func TestNoSelfEviction(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10, MaxLifetime: time.Millisecond})
	defer pool.Close()

	_, err := pool.Add(context.Background(), legacyTx(t, key, 0, 1))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, pool.Len(), "expiry is up to the owner")
	assert.Equal(t, 1, pool.EvictOlderThan(pool.options.MaxLifetime))
}

func TestDumpRestore(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()
	ctx := context.Background()

	tx0 := legacyTx(t, key, 0, 1)
	tx1 := legacyTx(t, key, 1, 1)
	_, err := pool.Add(ctx, tx0)
	require.NoError(t, err)
	dump := pool.Dump()

	_, err = pool.Add(ctx, tx1)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	pool.Restore(dump)
	assert.Equal(t, []common.Hash{tx0.Hash()}, hashes(pool.Dump()))
	assert.Nil(t, pool.Get(tx1.Hash()))

	// sequence keeps growing after a restore
	_, err = pool.Add(ctx, tx1)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{tx0.Hash(), tx1.Hash()}, hashes(pool.Dump()))
}

func TestSubscribeTxEvent(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 10})
	defer pool.Close()

	ch := make(chan *TxEvent, 1)
	sub := pool.SubscribeTxEvent(ch)
	defer sub.Unsubscribe()

	tx := legacyTx(t, key, 0, 1)
	_, err := pool.Add(context.Background(), tx)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, tx.Hash(), ev.Tx.Hash())
		assert.Equal(t, addr, ev.Sender)
	case <-time.After(time.Second):
		t.Fatal("no tx event")
	}
}

func TestTxEventsFollowAdmissionOrder(t *testing.T) {
	ledger := newLedger()
	key, addr := newKey(t)
	ledger.fund(addr, 0, 1e18)

	pool := newPool(ledger, Options{Limit: 100})
	defer pool.Close()

	ch := make(chan *TxEvent, 50)
	sub := pool.SubscribeTxEvent(ch)
	defer sub.Unsubscribe()

	var want []common.Hash
	for nonce := uint64(0); nonce < 50; nonce++ {
		tx := legacyTx(t, key, nonce, 1)
		_, err := pool.Add(context.Background(), tx)
		require.NoError(t, err)
		want = append(want, tx.Hash())
	}

	var got []common.Hash
	for len(got) < len(want) {
		select {
		case ev := <-ch:
			got = append(got, ev.Tx.Hash())
		case <-time.After(time.Second):
			t.Fatalf("got %d of %d tx events", len(got), len(want))
		}
	}
	assert.Equal(t, want, got)
}
