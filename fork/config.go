// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const defaultTimeout = 20 * time.Second

// Config pins the node to a remote chain at a fixed block.
type Config struct {
	URL               string        `yaml:"url" json:"url"`
	BlockNumber       uint64        `yaml:"block-number" json:"blockNumber"`
	ChainID           uint64        `yaml:"-" json:"chainId"`
	Timeout           time.Duration `yaml:"timeout" json:"-"`
	RequestsPerSecond float64       `yaml:"requests-per-second" json:"-"`
	CacheDir          string        `yaml:"cache-dir" json:"-"`
}

// Remote is the subset of the remote node API the backend needs.
// *ethclient.Client satisfies it.
type Remote interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

var _ Remote = (*ethclient.Client)(nil)

// Connect dials cfg.URL and resolves the chain id and, when unset, the
// pinned block number from the remote head.
func Connect(ctx context.Context, cfg Config) (Remote, Config, error) {
	client, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, cfg, errors.Wrapf(err, "dial fork url %s", cfg.URL)
	}
	cfg, err = Resolve(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, cfg, err
	}
	return client, cfg, nil
}

// Resolve fills in the chain id and pinned block of cfg from remote.
func Resolve(ctx context.Context, remote Remote, cfg Config) (Config, error) {
	id, err := remote.ChainID(ctx)
	if err != nil {
		return cfg, errors.Wrap(err, "fetch fork chain id")
	}
	cfg.ChainID = id.Uint64()
	if cfg.BlockNumber == 0 {
		head, err := remote.BlockNumber(ctx)
		if err != nil {
			return cfg, errors.Wrap(err, "fetch fork head")
		}
		cfg.BlockNumber = head
	}
	return cfg, nil
}
