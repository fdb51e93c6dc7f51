// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/devnode/api"
	"github.com/vechain/devnode/cmd/devnode/httpserver"
	"github.com/vechain/devnode/genesis"
	"github.com/vechain/devnode/log"
	"github.com/vechain/devnode/metrics"
	"github.com/vechain/devnode/node"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "devnode",
		Usage:     "Local development chain with mainnet forking",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Flags:     flags,
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.Verbosity)
	if err != nil {
		return errors.WithMessage(err, "verbosity")
	}
	var logLevel slog.LevelVar
	logLevel.Set(level)
	log.Init(os.Stderr, &logLevel, cfg.JSONLogs)
	defer func() { logger.Info("exited") }()

	if cfg.EnableMetrics {
		metrics.InitializePrometheusMetrics()
	}

	exitSignal := handleExitSignal()

	opts, err := cfg.nodeOptions()
	if err != nil {
		return err
	}
	n, err := node.New(exitSignal, opts)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping node..."); n.Close() }()

	if cfg.LoadState != "" {
		data, err := os.ReadFile(cfg.LoadState)
		if err != nil {
			return errors.Wrap(err, "read state")
		}
		if err := n.Load(exitSignal, data); err != nil {
			return errors.WithMessage(err, "load state")
		}
		logger.Info("state loaded", "path", cfg.LoadState, "best", n.BestBlock().NumberU64())
	}

	apiLogs := new(atomic.Bool)
	apiLogs.Store(cfg.EnableAPILogs)
	srv := api.New(n, api.Options{
		AllowedOrigins:       cfg.AllowOrigin,
		ClientVersion:        "devnode/" + fullVersion(),
		EnableReqLogger:      apiLogs,
		SlowQueriesThreshold: cfg.SlowQueries,
		EnableMetrics:        cfg.EnableMetrics,
	})
	defer func() { logger.Info("stopping API server..."); srv.Close() }()

	apiURL, stopAPI, err := httpserver.StartAPIServer(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), srv.Handler())
	if err != nil {
		return err
	}
	defer stopAPI()

	if cfg.IPCPath != "" {
		if err := srv.ServeIPC(cfg.IPCPath); err != nil {
			return err
		}
	}

	if cfg.EnableMetrics {
		url, stop, err := httpserver.StartMetricsServer(cfg.MetricsAddr)
		if err != nil {
			return errors.WithMessage(err, "start metrics server")
		}
		defer func() { logger.Info("stopping metrics server..."); stop() }()
		logger.Info("metrics server started", "url", url)
	}

	if cfg.EnableAdmin {
		url, stop, err := api.StartAdminServer(cfg.AdminAddr, &logLevel, apiLogs, n)
		if err != nil {
			return errors.WithMessage(err, "start admin server")
		}
		defer func() { logger.Info("stopping admin server..."); stop() }()
		logger.Info("admin server started", "url", url)
	}

	printStartupMessage(n, apiURL)

	<-exitSignal.Done()

	if cfg.DumpState != "" {
		if err := dumpState(n, cfg.DumpState); err != nil {
			logger.Error("failed to dump state", "err", err)
		}
	}
	return nil
}

func dumpState(n *node.Node, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := n.Dump(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "write state")
	}
	logger.Info("state dumped", "path", path, "best", n.BestBlock().NumberU64())
	return nil
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func printStartupMessage(n *node.Node, apiURL string) {
	info := n.Info()
	mining := "automine"
	switch {
	case info.IntervalMining > 0:
		mining = fmt.Sprintf("every %v", info.IntervalMining)
	case !info.Automine:
		mining = "manual"
	}
	forked := "no"
	if info.Fork != nil {
		forked = fmt.Sprintf("%v #%v", info.Fork.URL, info.Fork.BlockNumber)
	}

	fmt.Printf(`Starting %v
    Chain ID     [ %v ]
    Best block   [ %v #%v @%v ]
    Fork         [ %v ]
    Mining       [ %v ]
    API portal   [ %v ]
`,
		"devnode "+fullVersion(),
		info.ChainID,
		info.BestHash, info.BestNumber, time.Unix(int64(info.BestTime), 0),
		forked,
		mining,
		apiURL)

	fmt.Println("\nAvailable accounts")
	for i, acc := range genesis.DevAccounts() {
		fmt.Printf("(%d) %v %v\n", i, acc.Address, hexutil.Encode(crypto.FromECDSA(acc.PrivateKey)))
	}
}
