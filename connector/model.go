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

package connector

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	libaddr "github.com/loopwire/reactor/address"
	libchn "github.com/loopwire/reactor/channel"
	liblog "github.com/loopwire/reactor/logger"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"
	"github.com/loopwire/reactor/timer"
)

const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay      = 30 * time.Second
)

// State is the Connector's own small state machine, independent of the
// TcpConnection state machine the eventual connected socket is handed to.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// LoopHandle is the subset of EventLoop a Connector needs: channel
// registration, functor trampolining, and delayed retries.
type LoopHandle interface {
	libchn.LoopHandle
	RunInLoop(fn func())
	RunAfter(d time.Duration, fn func()) timer.Id
	CancelTimer(id timer.Id)
}

// NewConnectionFunc receives a successfully connected, non-blocking Socket.
type NewConnectionFunc func(conn *libsock.Socket)

// Connector repeatedly attempts to establish one TCP connection, backing
// off exponentially between failed attempts, until Stop is called.
type Connector struct {
	loop  LoopHandle
	proto libptc.NetworkProtocol
	addr  libaddr.Address
	log   *liblog.Logger

	mu         sync.Mutex
	state      State
	connect    bool
	retryDelay time.Duration
	channel    *libchn.Channel
	retryID    *timer.Id

	NewConnection NewConnectionFunc
}

// New creates a Connector targeting addr; it does not start connecting
// until Start is called.
func New(loop LoopHandle, proto libptc.NetworkProtocol, addr libaddr.Address, log *liblog.Logger) *Connector {
	return &Connector{loop: loop, proto: proto, addr: addr, log: log, retryDelay: initialRetryDelay}
}

// Start begins (or resumes) connecting. Calling Start again after Stop
// restarts the retry cycle from the initial backoff, per this
// module's resolution of the "restart after disconnect" question: a
// disconnected Connector does not retry on its own until told to.
func (c *Connector) Start() {
	c.mu.Lock()
	c.connect = true
	c.retryDelay = initialRetryDelay
	c.mu.Unlock()
	c.loop.RunInLoop(c.startInLoop)
}

// Stop halts retries. Any in-flight connecting attempt is abandoned and a
// resulting connection, if one completes anyway, is discarded.
func (c *Connector) Stop() {
	c.mu.Lock()
	c.connect = false
	c.mu.Unlock()
	c.loop.RunInLoop(func() {
		c.loop.AssertInLoopThread()
		if c.retryID != nil {
			c.loop.CancelTimer(*c.retryID)
			c.retryID = nil
		}
	})
}

func (c *Connector) startInLoop() {
	c.loop.AssertInLoopThread()
	c.mu.Lock()
	wantConnect := c.connect
	c.mu.Unlock()
	if !wantConnect {
		return
	}
	c.setState(StateDisconnected)
	c.connectAttempt()
}

func (c *Connector) connectAttempt() {
	sock, err := libsock.New(c.proto, c.addr)
	if err != nil {
		c.retry()
		return
	}

	err = sock.Connect(c.addr)
	switch err {
	case nil, unix.EINPROGRESS:
		c.setState(StateConnecting)
		c.armWritable(sock)
	case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ECONNREFUSED, unix.ENETUNREACH:
		_ = sock.Close()
		c.retry()
	default:
		_ = sock.Close()
		if c.log != nil {
			c.log.Warning("connector: connect failed", err)
		}
		c.retry()
	}
}

func (c *Connector) armWritable(sock *libsock.Socket) {
	ch := libchn.New(c.loop, sock.Fd())
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()

	ch.SetWriteCallback(func() { c.handleWrite(sock, ch) })
	ch.SetErrorCallback(func() { c.handleError(sock, ch) })
	ch.EnableWriting()
}

func (c *Connector) handleWrite(sock *libsock.Socket, ch *libchn.Channel) {
	if c.state() != StateConnecting {
		return
	}
	c.removeChannel(ch)

	if errno, err := sock.SocketError(); err != nil || errno != 0 {
		_ = sock.Close()
		c.retry()
		return
	}

	self, err := sock.SelfConnect()
	if err != nil || self {
		_ = sock.Close()
		c.retry()
		return
	}

	c.mu.Lock()
	wantConnect := c.connect
	c.mu.Unlock()
	if !wantConnect {
		_ = sock.Close()
		c.setState(StateDisconnected)
		return
	}

	c.setState(StateConnected)
	c.mu.Lock()
	c.retryDelay = initialRetryDelay
	c.mu.Unlock()
	if c.NewConnection != nil {
		c.NewConnection(sock)
	}
}

func (c *Connector) handleError(sock *libsock.Socket, ch *libchn.Channel) {
	c.removeChannel(ch)
	_ = sock.Close()
	c.retry()
}

func (c *Connector) removeChannel(ch *libchn.Channel) {
	ch.DisableAll()
	ch.Remove()
}

func (c *Connector) retry() {
	c.mu.Lock()
	wantConnect := c.connect
	delay := c.retryDelay
	c.mu.Unlock()
	if !wantConnect {
		c.setState(StateDisconnected)
		return
	}

	c.setState(StateDisconnected)
	if c.log != nil {
		c.log.Info("connector: retrying connect", nil)
	}

	id := c.loop.RunAfter(delay, func() {
		c.mu.Lock()
		c.retryID = nil
		c.mu.Unlock()
		c.startInLoop()
	})
	c.mu.Lock()
	c.retryID = &id
	next := delay * 2
	if next > maxRetryDelay {
		next = maxRetryDelay
	}
	c.retryDelay = next
	c.mu.Unlock()
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connector) state() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
