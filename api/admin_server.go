// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/devnode/api/admin"
	"github.com/vechain/devnode/api/admin/health"
	"github.com/vechain/devnode/co"
	"github.com/vechain/devnode/node"
)

// StartAdminServer serves the log level, request logging and health
// endpoints on addr. It returns the base url and a func to stop the server.
func StartAdminServer(addr string, logLevel *slog.LevelVar, apiLogs *atomic.Bool, n *node.Node) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen admin API addr [%v]", addr)
	}

	h := health.New(n)
	srv := &http.Server{Handler: admin.New(logLevel, apiLogs, h), ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/admin", func() {
		srv.Close()
		goes.Wait()
		h.Close()
	}, nil
}
