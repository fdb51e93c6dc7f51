// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	cli "gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file, explicitly set flags take precedence",
	}
	hostFlag = cli.StringFlag{
		Name:  "host",
		Value: "127.0.0.1",
		Usage: "JSON-RPC listening host",
	}
	portFlag = cli.IntFlag{
		Name:  "port",
		Value: 8545,
		Usage: "JSON-RPC listening port",
	}
	ipcPathFlag = cli.StringFlag{
		Name:  "ipc-path",
		Usage: "serve JSON-RPC on a unix socket at this path",
	}
	allowOriginFlag = cli.StringFlag{
		Name:  "allow-origin",
		Value: "*",
		Usage: "comma separated list of origins allowed for CORS and websocket connections",
	}
	chainIDFlag = cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "chain id, defaults to the fork's or 1337",
	}
	gasLimitFlag = cli.Uint64Flag{
		Name:  "gas-limit",
		Value: 30_000_000,
		Usage: "block gas limit",
	}
	baseFeeFlag = cli.Uint64Flag{
		Name:  "base-fee",
		Usage: "base fee of the genesis block in wei, 0 for the protocol initial value",
	}
	coinbaseFlag = cli.StringFlag{
		Name:  "coinbase",
		Usage: "block beneficiary address",
	}
	timestampFlag = cli.Uint64Flag{
		Name:  "timestamp",
		Usage: "genesis timestamp, 0 for now",
	}
	blockTimeFlag = cli.Uint64Flag{
		Name:  "block-time",
		Usage: "mine a block every N seconds instead of on each transaction",
	}
	noMiningFlag = cli.BoolFlag{
		Name:  "no-mining",
		Usage: "disable automine, blocks are mined only on evm_mine / anvil_mine",
	}
	poolLimitFlag = cli.IntFlag{
		Name:  "txpool-limit",
		Value: 10000,
		Usage: "maximum number of pooled transactions",
	}
	poolMaxQueuedFlag = cli.IntFlag{
		Name:  "txpool-max-queued",
		Value: 64,
		Usage: "maximum number of future-nonce transactions per sender",
	}
	forkURLFlag = cli.StringFlag{
		Name:  "fork-url",
		Usage: "JSON-RPC url of a remote chain to fork",
	}
	forkBlockNumberFlag = cli.Uint64Flag{
		Name:  "fork-block-number",
		Usage: "block to fork at, 0 for the remote head",
	}
	forkTimeoutFlag = cli.DurationFlag{
		Name:  "fork-timeout",
		Value: 20 * time.Second,
		Usage: "timeout of a single fork request",
	}
	forkRPSFlag = cli.Float64Flag{
		Name:  "fork-rps",
		Usage: "maximum fork requests per second, 0 for unlimited",
	}
	forkCacheDirFlag = cli.StringFlag{
		Name:  "fork-cache-dir",
		Usage: "directory of the on-disk fork cache, in memory when empty",
	}
	dumpStateFlag = cli.StringFlag{
		Name:  "dump-state",
		Usage: "dump the chain state to this file on exit",
	}
	loadStateFlag = cli.StringFlag{
		Name:  "load-state",
		Usage: "load a state dump at startup",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Value: "info",
		Usage: "log verbosity (trace|debug|info|warn|error)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables JSON-RPC requests logging",
	}
	slowQueriesFlag = cli.DurationFlag{
		Name:  "api-slow-queries-threshold",
		Usage: "log JSON-RPC requests slower than this, 0 to disable",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "start the admin service",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}
)

var flags = []cli.Flag{
	configFlag,
	hostFlag,
	portFlag,
	ipcPathFlag,
	allowOriginFlag,
	chainIDFlag,
	gasLimitFlag,
	baseFeeFlag,
	coinbaseFlag,
	timestampFlag,
	blockTimeFlag,
	noMiningFlag,
	poolLimitFlag,
	poolMaxQueuedFlag,
	forkURLFlag,
	forkBlockNumberFlag,
	forkTimeoutFlag,
	forkRPSFlag,
	forkCacheDirFlag,
	dumpStateFlag,
	loadStateFlag,
	verbosityFlag,
	jsonLogsFlag,
	enableAPILogsFlag,
	slowQueriesFlag,
	enableMetricsFlag,
	metricsAddrFlag,
	enableAdminFlag,
	adminAddrFlag,
}
