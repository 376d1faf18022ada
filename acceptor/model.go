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

package acceptor

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	libaddr "github.com/loopwire/reactor/address"
	libchn "github.com/loopwire/reactor/channel"
	liblog "github.com/loopwire/reactor/logger"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"
)

// LoopHandle is the subset of EventLoop the Acceptor's Channel needs.
type LoopHandle = libchn.LoopHandle

// NewConnectionFunc receives an accepted Socket and its peer address.
type NewConnectionFunc func(conn *libsock.Socket, peer libaddr.Address)

// Acceptor owns the listen socket of a TcpServer and turns "readable" on
// it into individual accept4 calls.
type Acceptor struct {
	loop     LoopHandle
	proto    libptc.NetworkProtocol
	listener *libsock.Socket
	channel  *libchn.Channel
	log      *liblog.Logger

	idleFd int

	listening bool

	NewConnection NewConnectionFunc
}

// New creates and binds a listening socket for proto/address, but does not
// start listening or accepting yet; call Listen.
func New(loop LoopHandle, proto libptc.NetworkProtocol, address string, reusePort bool, log *liblog.Logger) (*Acceptor, error) {
	addr, err := libaddr.Resolve(proto, address)
	if err != nil {
		return nil, err
	}

	sock, err := libsock.New(proto, addr)
	if err != nil {
		return nil, err
	}
	if err := sock.SetReuseAddr(true); err != nil {
		return nil, err
	}
	if reusePort {
		if err := sock.SetReusePort(true); err != nil {
			return nil, err
		}
	}
	if err := sock.Bind(addr); err != nil {
		return nil, err
	}

	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	a := &Acceptor{loop: loop, proto: proto, listener: sock, log: log, idleFd: idleFd}
	a.channel = libchn.New(loop, sock.Fd())
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// Listen marks the socket listening and arms the channel for readability.
func (a *Acceptor) Listen(backlog int) error {
	a.listening = true
	if err := a.listener.Listen(backlog); err != nil {
		return err
	}
	a.channel.EnableReading()
	return nil
}

// Addr returns the address the listening socket is actually bound to,
// resolving any ephemeral port (":0") to the one the kernel assigned.
func (a *Acceptor) Addr() (libaddr.Address, error) {
	sa, err := unix.Getsockname(a.listener.Fd())
	if err != nil {
		return libaddr.Unknown(), err
	}
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return libaddr.FromTCPAddr(&net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}, a.proto), nil
	case *unix.SockaddrInet6:
		return libaddr.FromTCPAddr(&net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}, a.proto), nil
	default:
		return libaddr.Unknown(), nil
	}
}

// Close tears the acceptor's channel and listening socket down.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	_ = unix.Close(a.idleFd)
	return a.listener.Close()
}

func (a *Acceptor) handleRead(time.Time) {
	conn, peer, err := a.listener.Accept4()
	if err != nil {
		a.handleAcceptError(err)
		return
	}
	if a.NewConnection != nil {
		a.NewConnection(conn, peer)
	} else {
		_ = conn.Close()
	}
}

// handleAcceptError implements the classic muduo EMFILE rescue: when the
// process is out of file descriptors, accept4 itself fails and epoll would
// otherwise spin readable forever on the still-pending connection. Closing
// one reserved idle fd frees a slot just long enough to accept and
// immediately drop the connection, then the idle fd is reopened.
func (a *Acceptor) handleAcceptError(err error) {
	if err != unix.EMFILE {
		if a.log != nil {
			a.log.Warning("acceptor: accept4 failed", err)
		}
		return
	}

	_ = unix.Close(a.idleFd)
	nfd, _, _ := unix.Accept(a.listener.Fd())
	if nfd >= 0 {
		_ = unix.Close(nfd)
	}
	a.idleFd, _ = unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if a.log != nil {
		a.log.Warning("acceptor: file descriptor exhaustion, dropped one connection", err)
	}
}
