// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/devnode/lvldb"
)

// countingRemote serves fixed data and counts every call.
type countingRemote struct {
	calls   atomic.Int64
	gate    chan struct{} // when set, calls block until it is closed
	fail    atomic.Bool
	head    uint64
	balance *big.Int
}

func newCountingRemote() *countingRemote {
	return &countingRemote{head: 100, balance: big.NewInt(1000)}
}

func (r *countingRemote) enter(ctx context.Context) error {
	r.calls.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.fail.Load() {
		return errors.New("remote unavailable")
	}
	return nil
}

func (r *countingRemote) ChainID(context.Context) (*big.Int, error) { return big.NewInt(7), nil }
func (r *countingRemote) BlockNumber(context.Context) (uint64, error) {
	return r.head, nil
}

func (r *countingRemote) BalanceAt(ctx context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}
	return r.balance, nil
}

func (r *countingRemote) NonceAt(ctx context.Context, _ common.Address, _ *big.Int) (uint64, error) {
	if err := r.enter(ctx); err != nil {
		return 0, err
	}
	return 3, nil
}

func (r *countingRemote) CodeAt(ctx context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}
	return []byte{0x60, 0x00}, nil
}

func (r *countingRemote) StorageAt(ctx context.Context, _ common.Address, key common.Hash, _ *big.Int) ([]byte, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}
	return key[:], nil
}

func (r *countingRemote) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}
	if number.Uint64() > r.head {
		return nil, ethereum.NotFound
	}
	return &types.Header{Number: new(big.Int).Set(number), Difficulty: big.NewInt(0), Time: 1000 + number.Uint64()}, nil
}

var (
	alice = common.HexToAddress("0xa11ce")
	slot1 = common.HexToHash("0x01")
)

func TestResolve(t *testing.T) {
	cfg, err := Resolve(context.Background(), newCountingRemote(), Config{URL: "stub"})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.ChainID)
	assert.Equal(t, uint64(100), cfg.BlockNumber)

	cfg, err = Resolve(context.Background(), newCountingRemote(), Config{BlockNumber: 42})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.BlockNumber)
}

func TestSingleFetchPerKey(t *testing.T) {
	remote := newCountingRemote()
	b := New(Config{BlockNumber: 50, ChainID: 7}, remote, nil)
	defer b.Close()

	for range 5 {
		acc, err := b.Account(context.Background(), alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), acc.Nonce)
		assert.Equal(t, uint64(1000), acc.Balance.Uint64())
		assert.Equal(t, []byte{0x60, 0x00}, acc.Code)
	}
	// balance, nonce and code
	assert.Equal(t, int64(3), remote.calls.Load())

	for range 5 {
		v, err := b.Storage(context.Background(), alice, slot1)
		require.NoError(t, err)
		assert.Equal(t, slot1, v)
	}
	assert.Equal(t, int64(4), remote.calls.Load())
}

func TestConcurrentFetchesAreDeduplicated(t *testing.T) {
	remote := newCountingRemote()
	remote.gate = make(chan struct{})
	b := New(Config{BlockNumber: 50}, remote, nil)
	defer b.Close()

	var wg sync.WaitGroup
	results := make([]common.Hash, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := b.Storage(context.Background(), alice, slot1)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	assert.Eventually(t, func() bool { return remote.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(remote.gate)
	wg.Wait()

	assert.Equal(t, int64(1), remote.calls.Load())
	for _, r := range results {
		assert.Equal(t, slot1, r)
	}
}

func TestCancelledCallerDoesNotCancelOthers(t *testing.T) {
	remote := newCountingRemote()
	remote.gate = make(chan struct{})
	b := New(Config{BlockNumber: 50}, remote, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := b.Storage(ctx, alice, slot1)
		errc <- err
	}()

	done := make(chan common.Hash, 1)
	go func() {
		v, err := b.Storage(context.Background(), alice, slot1)
		assert.NoError(t, err)
		done <- v
	}()

	assert.Eventually(t, func() bool { return remote.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(remote.gate)
	assert.Equal(t, slot1, <-done)
	assert.Equal(t, int64(1), remote.calls.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	remote := newCountingRemote()
	remote.fail.Store(true)
	b := New(Config{BlockNumber: 50}, remote, nil)
	defer b.Close()

	_, err := b.Storage(context.Background(), alice, slot1)
	require.Error(t, err)
	assert.True(t, IsError(err))

	remote.fail.Store(false)
	v, err := b.Storage(context.Background(), alice, slot1)
	require.NoError(t, err)
	assert.Equal(t, slot1, v)
	assert.Equal(t, int64(2), remote.calls.Load())
}

func TestTimeoutBoundsFetch(t *testing.T) {
	remote := newCountingRemote()
	remote.gate = make(chan struct{})
	defer close(remote.gate)
	b := New(Config{BlockNumber: 50, Timeout: 20 * time.Millisecond}, remote, nil)
	defer b.Close()

	_, err := b.Storage(context.Background(), alice, slot1)
	require.Error(t, err)
	assert.True(t, IsError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResetInvalidatesCache(t *testing.T) {
	remote := newCountingRemote()
	b := New(Config{BlockNumber: 50}, remote, nil)
	defer b.Close()

	_, err := b.Storage(context.Background(), alice, slot1)
	require.NoError(t, err)

	b.Reset(Config{BlockNumber: 60}, remote)
	assert.Equal(t, uint64(60), b.Config().BlockNumber)

	_, err = b.Storage(context.Background(), alice, slot1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remote.calls.Load())
}

func TestHeader(t *testing.T) {
	remote := newCountingRemote()
	b := New(Config{BlockNumber: 50}, remote, nil)
	defer b.Close()

	h, err := b.Header(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), h.Time)

	_, err = b.Header(context.Background(), 51)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), remote.calls.Load())
}

func TestDiskCacheSurvivesBackends(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)

	remote := newCountingRemote()
	cfg := Config{BlockNumber: 50, ChainID: 7}
	b := New(cfg, remote, db)
	_, err = b.Account(context.Background(), alice)
	require.NoError(t, err)
	_, err = b.Header(context.Background(), 5)
	require.NoError(t, err)
	calls := remote.calls.Load()

	// a fresh memory cache over the same disk does not hit the remote
	b2 := New(cfg, remote, db)
	defer b2.Close()
	acc, err := b2.Account(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), acc.Nonce)
	h, err := b2.Header(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h.Number.Uint64())
	assert.Equal(t, calls, remote.calls.Load())
}

func TestExportImport(t *testing.T) {
	remote := newCountingRemote()
	b := New(Config{BlockNumber: 50}, remote, nil)
	defer b.Close()
	_, err := b.Account(context.Background(), alice)
	require.NoError(t, err)
	_, err = b.Storage(context.Background(), alice, slot1)
	require.NoError(t, err)
	_, err = b.Header(context.Background(), 3)
	require.NoError(t, err)

	data, err := json.Marshal(b.Export())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	offline := newCountingRemote()
	offline.fail.Store(true)
	b2 := New(snap.Config, offline, nil)
	defer b2.Close()
	b2.Import(&snap)

	acc, err := b2.Account(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), acc.Balance.Uint64())
	v, err := b2.Storage(context.Background(), alice, slot1)
	require.NoError(t, err)
	assert.Equal(t, slot1, v)
	_, err = b2.Header(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), offline.calls.Load())
}
