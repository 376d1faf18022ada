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

package tcpserver

import (
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/google/uuid"

	libacc "github.com/loopwire/reactor/acceptor"
	libaddr "github.com/loopwire/reactor/address"
	libcert "github.com/loopwire/reactor/certificates"
	libconn "github.com/loopwire/reactor/connection"
	liblog "github.com/loopwire/reactor/logger"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"
)

// DefaultBacklog is the listen backlog used when Config.Backlog is left
// at zero.
const DefaultBacklog = 1024

// Config describes a TcpServer's listen target, per spec.md §6.
type Config struct {
	Network   libptc.NetworkProtocol
	Address   string
	Name      string
	ReusePort bool
	ThreadNum int
	Backlog   int
	TLS       *libcert.Config
}

// TcpServer is the acceptor/thread-pool/connection-map façade of
// spec.md §4.9. Construct with New, install a Handler, then Start.
type TcpServer struct {
	cfg      Config
	baseLoop *loop.EventLoop
	acceptor *libacc.Acceptor
	pool     *loop.EventLoopThreadPool
	handler  libconn.Handler
	log      *liblog.Logger

	tlsConfig *tls.Config

	mu          sync.Mutex
	connections map[string]*libconn.TcpConnection
	started     bool
}

// New builds a TcpServer bound to baseLoop. The listen socket is created
// and bound eagerly (so Addr() can report the resolved port right away);
// accepting does not begin until Start.
func New(baseLoop *loop.EventLoop, cfg Config, handler libconn.Handler, log *liblog.Logger) (*TcpServer, error) {
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}
	if cfg.Name == "" {
		cfg.Name = "tcp-server"
	}

	a, err := libacc.New(baseLoop, cfg.Network, cfg.Address, cfg.ReusePort, log)
	if err != nil {
		return nil, err
	}

	s := &TcpServer{
		cfg:         cfg,
		baseLoop:    baseLoop,
		acceptor:    a,
		pool:        loop.NewEventLoopThreadPool(baseLoop, cfg.Name+"-io-", cfg.ThreadNum),
		handler:     handler,
		log:         log,
		connections: make(map[string]*libconn.TcpConnection),
	}

	if cfg.TLS != nil {
		tcfg, err := cfg.TLS.BuildServer()
		if err != nil {
			return nil, err
		}
		s.tlsConfig = tcfg
	}

	a.NewConnection = s.newConnection
	return s, nil
}

// Addr returns the address the listening socket is actually bound to.
func (s *TcpServer) Addr() (libaddr.Address, error) { return s.acceptor.Addr() }

// Start spawns the sub-reactor pool and begins accepting on the base
// loop. Idempotent: a second call is a no-op.
func (s *TcpServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.pool.Start(); err != nil {
		return err
	}

	s.baseLoop.RunInLoop(func() {
		if err := s.acceptor.Listen(s.cfg.Backlog); err != nil && s.log != nil {
			s.log.Error("tcpserver: listen failed", err)
		}
	})
	return nil
}

// Stop closes the listening socket and force-closes every live
// connection. Safe from any goroutine.
func (s *TcpServer) Stop() {
	s.baseLoop.RunInLoop(func() {
		if err := s.acceptor.Close(); err != nil && s.log != nil {
			s.log.Warning("tcpserver: closing acceptor", err)
		}
	})

	s.mu.Lock()
	conns := make([]*libconn.TcpConnection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.ForceClose()
	}
}

// ConnectionCount reports the number of live connections.
func (s *TcpServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *TcpServer) newConnection(sock *libsock.Socket, peer libaddr.Address) {
	sub := s.pool.GetNextLoop()
	name := fmt.Sprintf("%s-%s", s.cfg.Name, uuid.NewString())

	local, err := sock.LocalAddr()
	if err != nil {
		local = libaddr.Unknown()
	}

	var conn *libconn.TcpConnection
	if s.tlsConfig != nil {
		conn = libconn.NewTLS(sub, name, sock, local, peer, s.handler, s.log, s.tlsConfig, true)
	} else {
		conn = libconn.New(sub, name, sock, local, peer, s.handler, s.log)
	}
	conn.SetCloseHook(s.removeConnection)

	s.mu.Lock()
	s.connections[name] = conn
	s.mu.Unlock()

	sub.RunInLoop(conn.ConnectEstablished)
}

// removeConnection implements the bounce described in spec.md §4.9: called
// from a sub-loop (inside TcpConnection.handleClose), it hops to the base
// loop to erase the map entry, then schedules ConnectDestroyed back on the
// connection's own sub-loop.
func (s *TcpServer) removeConnection(c *libconn.TcpConnection) {
	s.baseLoop.RunInLoop(func() {
		s.mu.Lock()
		delete(s.connections, c.Name())
		s.mu.Unlock()
		c.RunInLoop(c.ConnectDestroyed)
	})
}
