// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"
	"sync"
)

// conn is one client connection. write pushes a message to the client; it
// is nil for transports that cannot push.
type conn struct {
	ctx       context.Context
	cancel    context.CancelFunc
	transport string
	write     func(v any) error

	mu     sync.Mutex
	closed bool
	subs   map[string]*subscription
	fresh  []*subscription
	onStop []func()
}

func newConn(parent context.Context, transport string, write func(v any) error) *conn {
	ctx, cancel := context.WithCancel(parent)
	return &conn{
		ctx:       ctx,
		cancel:    cancel,
		transport: transport,
		write:     write,
		subs:      make(map[string]*subscription),
	}
}

func (c *conn) addSub(sub *subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.subs[sub.id] = sub
	c.fresh = append(c.fresh, sub)
	return true
}

// replied releases notifications of subscriptions whose id has been
// written to the client.
func (c *conn) replied() {
	c.mu.Lock()
	fresh := c.fresh
	c.fresh = nil
	c.mu.Unlock()
	for _, sub := range fresh {
		close(sub.ready)
	}
}

func (c *conn) removeSub(id string) (*subscription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	return sub, ok
}

// onClose registers f to run once when the connection closes.
func (c *conn) onClose(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStop = append(c.onStop, f)
}

// close ends the connection and every subscription made on it.
func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	subs := c.subs
	c.subs = nil
	stops := c.onStop
	c.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	for _, f := range stops {
		f()
	}
}
