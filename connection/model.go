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

package connection

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	libaddr "github.com/loopwire/reactor/address"
	libbuf "github.com/loopwire/reactor/buffer"
	libchn "github.com/loopwire/reactor/channel"
	libctx "github.com/loopwire/reactor/context"
	liblog "github.com/loopwire/reactor/logger"
)

// DefaultHighWaterMark is the output-buffer threshold applied when a
// connection is not given one explicitly, per spec.md §6.
const DefaultHighWaterMark = 64 << 20

// State is the connection's primary lifecycle state, per spec.md §3.
type State uint8

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Handler bundles the five per-connection callbacks the spec treats as one
// polymorphic capability set (spec.md §9 "callback soup"). Any field left
// nil is simply not invoked.
type Handler struct {
	OnConnection    func(c *TcpConnection)
	OnMessage       func(c *TcpConnection, in *libbuf.Buffer, receivedAt time.Time)
	OnWriteComplete func(c *TcpConnection)
	OnHighWaterMark func(c *TcpConnection, outstanding int)
	OnClose         func(c *TcpConnection)
}

// LoopHandle is the subset of EventLoop a TcpConnection needs.
type LoopHandle interface {
	libchn.LoopHandle
	RunInLoop(fn func())
	QueueInLoop(fn func())
}

// TcpConnection is the central entity of the reactor: one socket, one
// channel, one input/output buffer pair, pinned to exactly one LoopHandle
// for its entire life. It is safe to call Send/Shutdown/ForceClose from any
// goroutine; every other method is loop-thread-only.
type TcpConnection struct {
	loop   LoopHandle
	name   string
	socket rawSocket
	channel *libchn.Channel

	local libaddr.Address
	peer  libaddr.Address

	state atomic.Int32

	inputBuffer  *libbuf.Buffer
	outputBuffer *libbuf.Buffer

	handler  Handler
	closeHook func(c *TcpConnection)

	highWaterMark        int
	highWaterMarkTripped bool

	ctx *libctx.Store[string]
	log *liblog.Logger

	tls *tlsAdapter
}

// rawSocket is the narrow surface TcpConnection needs from socket.Socket,
// named here so the TLS adapter (same package) can share it without an
// import cycle back to the socket package's full API.
type rawSocket interface {
	Fd() int
	Close() error
}

// New builds a plain (non-TLS) TcpConnection in state Connecting. Callers
// (Acceptor's NewConnection callback, or Connector's) invoke
// ConnectEstablished once the connection has been handed off to its
// owning sub-loop.
func New(loop LoopHandle, name string, sock rawSocket, local, peer libaddr.Address, handler Handler, log *liblog.Logger) *TcpConnection {
	c := &TcpConnection{
		loop:          loop,
		name:          name,
		socket:        sock,
		local:         local,
		peer:          peer,
		inputBuffer:   libbuf.New(),
		outputBuffer:  libbuf.New(),
		handler:       handler,
		highWaterMark: DefaultHighWaterMark,
		ctx:           libctx.New[string](),
		log:           log,
	}
	c.state.Store(int32(StateConnecting))
	c.channel = libchn.New(loop, sock.Fd())
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)
	c.channel.Tie(c.alive)
	return c
}

// Name returns the diagnostic name this connection was constructed with.
func (c *TcpConnection) Name() string { return c.name }

// LocalAddr returns the local endpoint.
func (c *TcpConnection) LocalAddr() libaddr.Address { return c.local }

// PeerAddr returns the remote endpoint.
func (c *TcpConnection) PeerAddr() libaddr.Address { return c.peer }

// State returns the connection's current lifecycle state.
func (c *TcpConnection) State() State { return State(c.state.Load()) }

// Connected reports whether the connection is fully established and not
// yet shutting down.
func (c *TcpConnection) Connected() bool { return c.State() == StateConnected }

// Context returns the per-connection opaque value store (spec.md §9
// "context blob on connection").
func (c *TcpConnection) Context() *libctx.Store[string] { return c.ctx }

// SetCloseHook installs the internal bookkeeping hook TcpServer/TcpClient
// use to remove this connection from their own maps; it runs before the
// user's Handler.OnClose, from handleClose, exactly once.
func (c *TcpConnection) SetCloseHook(fn func(c *TcpConnection)) { c.closeHook = fn }

// SetHighWaterMark overrides DefaultHighWaterMark.
func (c *TcpConnection) SetHighWaterMark(bytes int) { c.highWaterMark = bytes }

// RunInLoop trampolines fn onto this connection's owning loop, the same
// way TcpServer/TcpClient schedule ConnectDestroyed back onto a
// connection's own sub-loop after erasing it from their map.
func (c *TcpConnection) RunInLoop(fn func()) { c.loop.RunInLoop(fn) }

func (c *TcpConnection) setState(s State) { c.state.Store(int32(s)) }

func (c *TcpConnection) alive() bool {
	return c.State() != StateDisconnected
}

// ConnectEstablished runs on the owning loop once the socket has been
// handed off to it: it arms reading (or kicks off the TLS handshake) and
// fires the user's onConnection(up).
func (c *TcpConnection) ConnectEstablished() {
	c.loop.AssertInLoopThread()
	if c.State() != StateConnecting {
		panic("connection: ConnectEstablished called outside Connecting state")
	}
	c.setState(StateConnected)
	if c.tls != nil {
		c.tls.start(c)
		return
	}
	c.channel.EnableReading()
	if c.handler.OnConnection != nil {
		c.handler.OnConnection(c)
	}
}

// ConnectDestroyed runs on the owning loop after the server/client has
// already removed this connection from its own bookkeeping map: it tears
// the channel down and fires the two truly-final callbacks, onConnection
// (down) then onClose, in that order, per the invariant that onClose is
// the last callback a connection ever emits (spec.md §8 invariant 5).
func (c *TcpConnection) ConnectDestroyed() {
	c.loop.AssertInLoopThread()
	if c.channel.IsReading() || c.channel.IsWriting() {
		c.channel.DisableAll()
	}
	c.channel.Remove()
	if c.tls != nil {
		c.tls.stop()
	} else {
		_ = c.socket.Close()
	}
	if c.handler.OnConnection != nil {
		c.handler.OnConnection(c)
	}
	if c.handler.OnClose != nil {
		c.handler.OnClose(c)
	}
}

func (c *TcpConnection) handleRead(t time.Time) {
	if c.tls != nil {
		return
	}
	n, err := c.inputBuffer.ReadFromFD(c.socket.Fd())
	switch {
	case err != nil:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		if c.log != nil {
			c.log.Warning("connection: read failed, forcing close", err)
		}
		c.handleError()
		c.handleClose()
	case n > 0:
		if c.handler.OnMessage != nil {
			c.handler.OnMessage(c, c.inputBuffer, t)
		}
	default:
		c.handleClose()
	}
}

func (c *TcpConnection) handleWrite() {
	if c.tls != nil || !c.channel.IsWriting() {
		return
	}
	_, err := c.outputBuffer.WriteToFD(c.socket.Fd())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		if err == unix.EPIPE || err == unix.ECONNRESET {
			c.handleClose()
			return
		}
		if c.log != nil {
			c.log.Warning("connection: write failed", err)
		}
		return
	}
	if c.outputBuffer.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.handler.OnWriteComplete != nil {
			c.loop.QueueInLoop(func() {
				if c.handler.OnWriteComplete != nil {
					c.handler.OnWriteComplete(c)
				}
			})
		}
		if c.State() == StateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

func (c *TcpConnection) handleClose() {
	c.loop.AssertInLoopThread()
	if c.State() == StateDisconnected {
		return
	}
	c.setState(StateDisconnected)
	c.channel.DisableAll()
	if c.closeHook != nil {
		c.closeHook(c)
	}
}

func (c *TcpConnection) handleError() {
	if c.log == nil {
		return
	}
	c.log.Error("connection: socket error", socketErrno(c.socket.Fd()))
}

// Send queues data for writing. It is callable from any goroutine;
// off-loop callers are trampolined via
// RunInLoop. The byte slice is copied before crossing goroutines so the
// caller is free to reuse or mutate it immediately after Send returns.
func (c *TcpConnection) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := append([]byte(nil), data...)
	c.loop.RunInLoop(func() { c.sendInLoop(cp) })
}

// SendString is a convenience wrapper around Send.
func (c *TcpConnection) SendString(s string) { c.Send([]byte(s)) }

func (c *TcpConnection) sendInLoop(data []byte) {
	if c.State() == StateDisconnected {
		return
	}
	if c.tls != nil {
		c.tls.write(c, data)
		return
	}

	remaining := data
	if !c.channel.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		n, err := unix.Write(c.socket.Fd(), data)
		switch {
		case err == nil:
			remaining = data[n:]
			if len(remaining) == 0 && c.handler.OnWriteComplete != nil {
				c.loop.QueueInLoop(func() {
					if c.handler.OnWriteComplete != nil {
						c.handler.OnWriteComplete(c)
					}
				})
			}
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR:
			// nothing written; fall through to buffering the whole payload.
		case err == unix.EPIPE || err == unix.ECONNRESET:
			c.handleClose()
			return
		default:
			if c.log != nil {
				c.log.Warning("connection: direct write failed", err)
			}
			return
		}
	}

	if len(remaining) == 0 {
		return
	}

	wasBelow := c.outputBuffer.ReadableBytes() < c.highWaterMark
	c.outputBuffer.Write(remaining)
	if !c.channel.IsWriting() {
		c.channel.EnableWriting()
	}

	outstanding := c.outputBuffer.ReadableBytes()
	if wasBelow && outstanding >= c.highWaterMark && !c.highWaterMarkTripped {
		c.highWaterMarkTripped = true
		if c.handler.OnHighWaterMark != nil {
			c.handler.OnHighWaterMark(c, outstanding)
		}
	} else if outstanding < c.highWaterMark {
		c.highWaterMarkTripped = false
	}
}

// Shutdown asks the connection to half-close its write side once any
// already-queued output has drained (spec.md §4.8). The read side stays
// open so a peer's own in-flight writes can still be observed.
func (c *TcpConnection) Shutdown() {
	c.loop.RunInLoop(func() {
		if c.State() != StateConnected {
			return
		}
		c.setState(StateDisconnecting)
		if c.tls != nil {
			c.tls.shutdown(c)
			return
		}
		c.shutdownInLoop()
	})
}

func (c *TcpConnection) shutdownInLoop() {
	if !c.channel.IsWriting() {
		_ = unix.Shutdown(c.socket.Fd(), unix.SHUT_WR)
	}
}

// ForceClose synchronously tears the connection down via handleClose. Safe
// from any goroutine.
func (c *TcpConnection) ForceClose() {
	c.loop.RunInLoop(func() {
		if c.State() == StateConnected || c.State() == StateDisconnecting {
			c.handleClose()
		}
	})
}

func socketErrno(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}
