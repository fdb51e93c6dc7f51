// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fork lazily mirrors accounts, storage and headers of a remote
// chain pinned at a fixed block.
package fork

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vechain/devnode/log"
	"github.com/vechain/devnode/lvldb"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var logger = log.WithContext("pkg", "fork")

// ErrNotFound is returned for headers the remote does not have.
var ErrNotFound = errors.New("not found on fork")

// Error is a recoverable fetch failure. The cache is left untouched, so
// the same call may be retried.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fork fetch %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsError reports whether err carries a fork fetch failure.
func IsError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// Account is the remote view of an account at the pinned block.
type Account struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
}

type storageKey struct {
	addr common.Address
	slot common.Hash
}

// session is the remote binding of one fork generation.
type session struct {
	remote Remote
	cfg    Config
	gen    uint64
}

func (s session) block() *big.Int {
	return new(big.Int).SetUint64(s.cfg.BlockNumber)
}

// Backend fetches remote data on demand. Successful results are cached for
// the lifetime of the fork and concurrent requests for one key share a
// single round-trip.
type Backend struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group
	disk   *lvldb.LevelDB

	mu       sync.RWMutex
	sess     session
	limiter  *rate.Limiter
	accounts map[common.Address]*Account
	storage  map[storageKey]common.Hash
	headers  map[uint64]*types.Header
}

// New creates a backend bound to remote. disk is optional and owned by the
// backend from now on.
func New(cfg Config, remote Remote, disk *lvldb.LevelDB) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		ctx:    ctx,
		cancel: cancel,
		disk:   disk,
	}
	b.reset(cfg, remote, 0)
	return b
}

func (b *Backend) reset(cfg Config, remote Remote, gen uint64) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	b.sess = session{remote: remote, cfg: cfg, gen: gen}
	b.limiter = nil
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	b.accounts = make(map[common.Address]*Account)
	b.storage = make(map[storageKey]common.Hash)
	b.headers = make(map[uint64]*types.Header)
}

// Reset re-pins the backend. Every cached entry is dropped and fetches still
// in flight for the previous pin are kept out of the new cache.
func (b *Backend) Reset(cfg Config, remote Remote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset(cfg, remote, b.sess.gen+1)
	logger.Info("fork re-pinned", "url", cfg.URL, "block", cfg.BlockNumber)
}

// Config returns the active fork configuration.
func (b *Backend) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sess.cfg
}

// Close stops in-flight fetches and releases the disk cache.
func (b *Backend) Close() error {
	b.cancel()
	if b.disk != nil {
		return b.disk.Close()
	}
	return nil
}

func (b *Backend) current() session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sess
}

// Account returns the account at the pinned block.
func (b *Backend) Account(ctx context.Context, addr common.Address) (*Account, error) {
	b.mu.RLock()
	acc, ok := b.accounts[addr]
	s := b.sess
	b.mu.RUnlock()
	if ok {
		metricCacheHits().AddWithLabel(1, map[string]string{"kind": "account"})
		return acc, nil
	}

	v, err := b.do(ctx, s, "account", addr.Hex(), func(fctx context.Context) (any, error) {
		if acc, ok := b.diskAccount(s, addr); ok {
			return acc, nil
		}
		acc, err := b.fetchAccount(fctx, s, addr)
		if err != nil {
			return nil, err
		}
		b.putDiskAccount(s, addr, acc)
		return acc, nil
	}, func(v any) {
		b.accounts[addr] = v.(*Account)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Account), nil
}

func (b *Backend) fetchAccount(ctx context.Context, s session, addr common.Address) (*Account, error) {
	var (
		acc     Account
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if err = b.wait(gctx); err != nil {
			return err
		}
		balance, err = s.remote.BalanceAt(gctx, addr, s.block())
		return err
	})
	g.Go(func() (err error) {
		if err = b.wait(gctx); err != nil {
			return err
		}
		acc.Nonce, err = s.remote.NonceAt(gctx, addr, s.block())
		return err
	})
	g.Go(func() (err error) {
		if err = b.wait(gctx); err != nil {
			return err
		}
		acc.Code, err = s.remote.CodeAt(gctx, addr, s.block())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	bal, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, errors.Errorf("balance of %s overflows 256 bits", addr.Hex())
	}
	acc.Balance = bal
	return &acc, nil
}

// Storage returns the value of slot in addr's storage at the pinned block.
func (b *Backend) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	key := storageKey{addr, slot}
	b.mu.RLock()
	val, ok := b.storage[key]
	s := b.sess
	b.mu.RUnlock()
	if ok {
		metricCacheHits().AddWithLabel(1, map[string]string{"kind": "storage"})
		return val, nil
	}

	v, err := b.do(ctx, s, "storage", addr.Hex()+"/"+slot.Hex(), func(fctx context.Context) (any, error) {
		if val, ok := b.diskStorage(s, addr, slot); ok {
			return val, nil
		}
		if err := b.wait(fctx); err != nil {
			return nil, err
		}
		raw, err := s.remote.StorageAt(fctx, addr, slot, s.block())
		if err != nil {
			return nil, err
		}
		val := common.BytesToHash(raw)
		b.putDiskStorage(s, addr, slot, val)
		return val, nil
	}, func(v any) {
		b.storage[key] = v.(common.Hash)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return v.(common.Hash), nil
}

// Header returns the remote header at number, which must not exceed the
// pinned block.
func (b *Backend) Header(ctx context.Context, number uint64) (*types.Header, error) {
	b.mu.RLock()
	h, ok := b.headers[number]
	s := b.sess
	b.mu.RUnlock()
	if ok {
		metricCacheHits().AddWithLabel(1, map[string]string{"kind": "header"})
		return h, nil
	}
	if number > s.cfg.BlockNumber {
		return nil, ErrNotFound
	}

	v, err := b.do(ctx, s, "header", fmt.Sprint(number), func(fctx context.Context) (any, error) {
		if h, ok := b.diskHeader(s, number); ok {
			return h, nil
		}
		if err := b.wait(fctx); err != nil {
			return nil, err
		}
		h, err := s.remote.HeaderByNumber(fctx, new(big.Int).SetUint64(number))
		if err != nil {
			return nil, err
		}
		b.putDiskHeader(s, number, h)
		return h, nil
	}, func(v any) {
		b.headers[number] = v.(*types.Header)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Header), nil
}

// do runs load once per key and generation. The load runs under the
// backend's own context bounded by the configured timeout, so a caller
// giving up does not cancel the fetch for other waiters.
func (b *Backend) do(ctx context.Context, s session, kind, key string, load func(context.Context) (any, error), store func(any)) (any, error) {
	if s.remote == nil {
		return nil, &Error{Op: kind + " " + key, Cause: errors.New("not forked")}
	}
	ch := b.group.DoChan(fmt.Sprintf("%d/%s/%s", s.gen, kind, key), func() (any, error) {
		metricFetches().AddWithLabel(1, map[string]string{"kind": kind})
		fctx, cancel := context.WithTimeout(b.ctx, s.cfg.Timeout)
		defer cancel()

		v, err := load(fctx)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		if b.sess.gen == s.gen {
			store(v)
		}
		b.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			if errors.Is(r.Err, ethereum.NotFound) {
				return nil, ErrNotFound
			}
			logger.Debug("fetch failed", "kind", kind, "key", key, "err", r.Err)
			metricFetchErrors().AddWithLabel(1, map[string]string{"kind": kind})
			return nil, &Error{Op: kind + " " + key, Cause: r.Err}
		}
		return r.Val, nil
	}
}

func (b *Backend) wait(ctx context.Context) error {
	b.mu.RLock()
	limiter := b.limiter
	b.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
