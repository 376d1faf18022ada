/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package tcpclient

import (
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/google/uuid"

	libaddr "github.com/loopwire/reactor/address"
	libcert "github.com/loopwire/reactor/certificates"
	libconn "github.com/loopwire/reactor/connection"
	libcon "github.com/loopwire/reactor/connector"
	liblog "github.com/loopwire/reactor/logger"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"
)

// TLSConfig describes the client-side TLS dimension of a Config, per
// spec.md §6 ("tls: {enabled, caFile?, caPath?, clientCert?, clientKey?,
// sni?} | none").
type TLSConfig struct {
	Cert       libcert.Config
	ServerName string
}

// Config describes a TcpClient's target and behavior, per spec.md §6.
type Config struct {
	Network libptc.NetworkProtocol
	Address string
	Name    string
	Retry   bool
	TLS     *TLSConfig
}

// TcpClient wraps a single Connector and the one TcpConnection it
// eventually produces. Unlike TcpServer it never runs its own sub-loop
// pool: the connection lives on whatever loop is handed to New, matching
// the teacher's client-side convention of driving I/O from the caller's
// own loop.
type TcpClient struct {
	cfg       Config
	loop      *loop.EventLoop
	connector *libcon.Connector
	tlsConfig *tls.Config
	handler   libconn.Handler
	log       *liblog.Logger

	mu      sync.Mutex
	conn    *libconn.TcpConnection
	retry   bool
	nextID  int
	stopped bool
}

// New builds a TcpClient targeting cfg.Address. Dialing does not start
// until Connect is called.
func New(l *loop.EventLoop, cfg Config, handler libconn.Handler, log *liblog.Logger) (*TcpClient, error) {
	if cfg.Name == "" {
		cfg.Name = "tcp-client"
	}

	addr, err := libaddr.Resolve(cfg.Network, cfg.Address)
	if err != nil {
		return nil, err
	}

	c := &TcpClient{
		cfg:     cfg,
		loop:    l,
		handler: handler,
		log:     log,
		retry:   cfg.Retry,
	}
	c.connector = libcon.New(l, cfg.Network, addr, log)
	c.connector.NewConnection = c.newConnection

	if cfg.TLS != nil {
		tcfg, err := cfg.TLS.Cert.BuildClient(cfg.TLS.ServerName)
		if err != nil {
			return nil, err
		}
		c.tlsConfig = tcfg
	}

	return c, nil
}

// EnableRetry turns on auto-reconnect: once the current connection
// disconnects, the underlying Connector is restarted automatically.
func (c *TcpClient) EnableRetry(on bool) {
	c.mu.Lock()
	c.retry = on
	c.mu.Unlock()
}

// Connect starts the connector.
func (c *TcpClient) Connect() { c.connector.Start() }

// Disconnect shuts down the current connection gracefully but keeps the
// TcpClient object reusable; a subsequent Connect reconnects.
func (c *TcpClient) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Shutdown()
	}
}

// Stop halts the connector's retries and closes any live connection. The
// TcpClient must not be used again after Stop.
func (c *TcpClient) Stop() {
	c.mu.Lock()
	c.stopped = true
	conn := c.conn
	c.mu.Unlock()

	c.connector.Stop()
	if conn != nil {
		conn.ForceClose()
	}
}

// Connection returns the current connection, or nil if none is
// established.
func (c *TcpClient) Connection() *libconn.TcpConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *TcpClient) newConnection(sock *libsock.Socket) {
	c.mu.Lock()
	c.nextID++
	name := fmt.Sprintf("%s-%s-%d", c.cfg.Name, uuid.NewString(), c.nextID)
	c.mu.Unlock()

	peer, err := sock.PeerAddr()
	if err != nil {
		peer = libaddr.Unknown()
	}
	local, err := sock.LocalAddr()
	if err != nil {
		local = libaddr.Unknown()
	}

	var conn *libconn.TcpConnection
	if c.tlsConfig != nil {
		conn = libconn.NewTLS(c.loop, name, sock, local, peer, c.handler, c.log, c.tlsConfig, false)
	} else {
		conn = libconn.New(c.loop, name, sock, local, peer, c.handler, c.log)
	}
	conn.SetCloseHook(c.removeConnection)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.loop.RunInLoop(conn.ConnectEstablished)
}

// removeConnection runs on this client's loop (invoked from handleClose,
// which already asserts in-loop-thread) and implements spec.md §4.10's
// enableRetry clause: a disconnect under retry mode restarts the
// connector's backoff cycle.
func (c *TcpClient) removeConnection(conn *libconn.TcpConnection) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	stopped := c.stopped
	wantRetry := c.retry
	c.mu.Unlock()

	conn.RunInLoop(conn.ConnectDestroyed)

	if !stopped && wantRetry {
		c.connector.Start()
	}
}
