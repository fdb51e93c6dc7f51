// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/node"
	"github.com/vechain/devnode/txpool"
)

type config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	IPCPath     string `yaml:"ipc-path"`
	AllowOrigin string `yaml:"allow-origin"`

	ChainID   uint64 `yaml:"chain-id"`
	GasLimit  uint64 `yaml:"gas-limit"`
	BaseFee   uint64 `yaml:"base-fee"`
	Coinbase  string `yaml:"coinbase"`
	Timestamp uint64 `yaml:"timestamp"`
	BlockTime uint64 `yaml:"block-time"`
	NoMining  bool   `yaml:"no-mining"`

	PoolLimit     int `yaml:"txpool-limit"`
	PoolMaxQueued int `yaml:"txpool-max-queued"`

	Fork fork.Config `yaml:"fork"`

	DumpState string `yaml:"dump-state"`
	LoadState string `yaml:"load-state"`

	Verbosity     string        `yaml:"verbosity"`
	JSONLogs      bool          `yaml:"json-logs"`
	EnableAPILogs bool          `yaml:"enable-api-logs"`
	SlowQueries   time.Duration `yaml:"api-slow-queries-threshold"`
	EnableMetrics bool          `yaml:"enable-metrics"`
	MetricsAddr   string        `yaml:"metrics-addr"`
	EnableAdmin   bool          `yaml:"enable-admin"`
	AdminAddr     string        `yaml:"admin-addr"`
}

// loadConfig takes flag defaults, then the config file, then explicitly
// set flags.
func loadConfig(ctx *cli.Context) (*config, error) {
	var cfg config
	applyFlags(ctx, &cfg, false)

	if path := ctx.String(configFlag.Name); path != "" {
		data, err := os.ReadFile(path) //#nosec G304
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
		applyFlags(ctx, &cfg, true)
	}
	return &cfg, nil
}

func applyFlags(ctx *cli.Context, cfg *config, onlySet bool) {
	use := func(f cli.Flag) bool {
		return !onlySet || ctx.IsSet(f.GetName())
	}
	if use(hostFlag) {
		cfg.Host = ctx.String(hostFlag.Name)
	}
	if use(portFlag) {
		cfg.Port = ctx.Int(portFlag.Name)
	}
	if use(ipcPathFlag) {
		cfg.IPCPath = ctx.String(ipcPathFlag.Name)
	}
	if use(allowOriginFlag) {
		cfg.AllowOrigin = ctx.String(allowOriginFlag.Name)
	}
	if use(chainIDFlag) {
		cfg.ChainID = ctx.Uint64(chainIDFlag.Name)
	}
	if use(gasLimitFlag) {
		cfg.GasLimit = ctx.Uint64(gasLimitFlag.Name)
	}
	if use(baseFeeFlag) {
		cfg.BaseFee = ctx.Uint64(baseFeeFlag.Name)
	}
	if use(coinbaseFlag) {
		cfg.Coinbase = ctx.String(coinbaseFlag.Name)
	}
	if use(timestampFlag) {
		cfg.Timestamp = ctx.Uint64(timestampFlag.Name)
	}
	if use(blockTimeFlag) {
		cfg.BlockTime = ctx.Uint64(blockTimeFlag.Name)
	}
	if use(noMiningFlag) {
		cfg.NoMining = ctx.Bool(noMiningFlag.Name)
	}
	if use(poolLimitFlag) {
		cfg.PoolLimit = ctx.Int(poolLimitFlag.Name)
	}
	if use(poolMaxQueuedFlag) {
		cfg.PoolMaxQueued = ctx.Int(poolMaxQueuedFlag.Name)
	}
	if use(forkURLFlag) {
		cfg.Fork.URL = ctx.String(forkURLFlag.Name)
	}
	if use(forkBlockNumberFlag) {
		cfg.Fork.BlockNumber = ctx.Uint64(forkBlockNumberFlag.Name)
	}
	if use(forkTimeoutFlag) {
		cfg.Fork.Timeout = ctx.Duration(forkTimeoutFlag.Name)
	}
	if use(forkRPSFlag) {
		cfg.Fork.RequestsPerSecond = ctx.Float64(forkRPSFlag.Name)
	}
	if use(forkCacheDirFlag) {
		cfg.Fork.CacheDir = ctx.String(forkCacheDirFlag.Name)
	}
	if use(dumpStateFlag) {
		cfg.DumpState = ctx.String(dumpStateFlag.Name)
	}
	if use(loadStateFlag) {
		cfg.LoadState = ctx.String(loadStateFlag.Name)
	}
	if use(verbosityFlag) {
		cfg.Verbosity = ctx.String(verbosityFlag.Name)
	}
	if use(jsonLogsFlag) {
		cfg.JSONLogs = ctx.Bool(jsonLogsFlag.Name)
	}
	if use(enableAPILogsFlag) {
		cfg.EnableAPILogs = ctx.Bool(enableAPILogsFlag.Name)
	}
	if use(slowQueriesFlag) {
		cfg.SlowQueries = ctx.Duration(slowQueriesFlag.Name)
	}
	if use(enableMetricsFlag) {
		cfg.EnableMetrics = ctx.Bool(enableMetricsFlag.Name)
	}
	if use(metricsAddrFlag) {
		cfg.MetricsAddr = ctx.String(metricsAddrFlag.Name)
	}
	if use(enableAdminFlag) {
		cfg.EnableAdmin = ctx.Bool(enableAdminFlag.Name)
	}
	if use(adminAddrFlag) {
		cfg.AdminAddr = ctx.String(adminAddrFlag.Name)
	}
}

func (c *config) nodeOptions() (node.Options, error) {
	opts := node.Options{
		ChainID:       c.ChainID,
		GasLimit:      c.GasLimit,
		GenesisTime:   c.Timestamp,
		Automine:      !c.NoMining && c.BlockTime == 0,
		BlockInterval: time.Duration(c.BlockTime) * time.Second,
		TxPool: txpool.Options{
			Limit:               c.PoolLimit,
			MaxQueuedPerAccount: c.PoolMaxQueued,
		},
	}
	if c.NoMining {
		opts.BlockInterval = 0
	}
	if c.BaseFee > 0 {
		opts.BaseFee = new(big.Int).SetUint64(c.BaseFee)
	}
	if c.Coinbase != "" {
		if !common.IsHexAddress(c.Coinbase) {
			return opts, errors.Errorf("invalid coinbase %q", c.Coinbase)
		}
		opts.Coinbase = common.HexToAddress(c.Coinbase)
	}
	if c.Fork.URL != "" {
		fc := c.Fork
		opts.Fork = &fc
	}
	return opts, nil
}
