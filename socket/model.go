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

package socket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	libaddr "github.com/loopwire/reactor/address"
	liberr "github.com/loopwire/reactor/errors"
	libptc "github.com/loopwire/reactor/network/protocol"
)

// Socket is a thin, non-blocking file descriptor handle. It never blocks
// the calling goroutine: every socket this package creates has O_NONBLOCK
// set before it is handed back.
type Socket struct {
	fd     int
	proto  libptc.NetworkProtocol
	family int
}

func domainFor(proto libptc.NetworkProtocol, addr libaddr.Address) int {
	if proto.IsUnix() {
		return unix.AF_UNIX
	}
	if addr.Family() == libaddr.FamilyIPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func typeFor(proto libptc.NetworkProtocol) int {
	if proto.IsDatagram() {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

// New creates a non-blocking socket suited to proto and the resolved
// address family of addr.
func New(proto libptc.NetworkProtocol, addr libaddr.Address) (*Socket, error) {
	domain := domainFor(proto, addr)
	fd, err := unix.Socket(domain, typeFor(proto)|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, liberr.New(liberr.CodeSocketCreate, "socket: create", err)
	}
	return &Socket{fd: fd, proto: proto, family: domain}, nil
}

// FromFd wraps an already-open, already-non-blocking fd (e.g. one returned
// by accept4), for when the descriptor was not obtained via New.
func FromFd(fd int, proto libptc.NetworkProtocol) *Socket {
	return &Socket{fd: fd, proto: proto}
}

// Fd returns the underlying file descriptor.
func (s *Socket) Fd() int { return s.fd }

// Close closes the descriptor.
func (s *Socket) Close() error { return unix.Close(s.fd) }

// SetReuseAddr toggles SO_REUSEADDR, set before Bind on every server
// listen socket so a restart doesn't fail on a lingering TIME_WAIT.
func (s *Socket) SetReuseAddr(on bool) error {
	return s.setIntOpt(unix.SOL_SOCKET, unix.SO_REUSEADDR, on)
}

// SetReusePort toggles SO_REUSEPORT, letting multiple processes or
// sub-reactors share one listen port via kernel-side load balancing.
func (s *Socket) SetReusePort(on bool) error {
	return s.setIntOpt(unix.SOL_SOCKET, unix.SO_REUSEPORT, on)
}

// SetKeepAlive toggles SO_KEEPALIVE on a connected TCP socket.
func (s *Socket) SetKeepAlive(on bool) error {
	return s.setIntOpt(unix.SOL_SOCKET, unix.SO_KEEPALIVE, on)
}

// SetNoDelay toggles TCP_NODELAY, disabling Nagle's algorithm so small
// writes (pings, RPC frames) aren't held back waiting to coalesce.
func (s *Socket) SetNoDelay(on bool) error {
	return s.setIntOpt(unix.IPPROTO_TCP, unix.TCP_NODELAY, on)
}

func (s *Socket) setIntOpt(level, opt int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(s.fd, level, opt, v); err != nil {
		return fmt.Errorf("socket: setsockopt: %w", err)
	}
	return nil
}

// Bind binds the socket to addr.
func (s *Socket) Bind(addr libaddr.Address) error {
	sa, err := sockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return liberr.New(liberr.CodeSocketBind, "socket: bind", err)
	}
	return nil
}

// Listen marks the socket as a listening socket with the given backlog.
func (s *Socket) Listen(backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return liberr.New(liberr.CodeSocketListen, "socket: listen", err)
	}
	return nil
}

// Accept4 accepts one pending connection, returning a ready-to-use,
// already non-blocking Socket.
func (s *Socket) Accept4() (*Socket, libaddr.Address, error) {
	nfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, libaddr.Unknown(), err
	}
	return &Socket{fd: nfd, proto: s.proto, family: s.family}, fromSockaddr(sa, s.proto), nil
}

// Connect starts a non-blocking connect; EINPROGRESS is the expected,
// non-error outcome and is returned as-is for the Connector to interpret.
func (s *Socket) Connect(addr libaddr.Address) error {
	sa, err := sockaddr(addr)
	if err != nil {
		return err
	}
	return unix.Connect(s.fd, sa)
}

// SelfConnect reports whether a just-established connection's local and
// peer addresses are identical, the condition a Connector treats as a
// self-connect and retries past.
func (s *Socket) SelfConnect() (bool, error) {
	local, err := unix.Getsockname(s.fd)
	if err != nil {
		return false, err
	}
	peer, err := unix.Getpeername(s.fd)
	if err != nil {
		return false, err
	}
	return sockaddrEqual(local, peer), nil
}

// SocketError reads and clears SO_ERROR, the pending asynchronous error a
// non-blocking connect() leaves for the first writable notification to
// collect.
func (s *Socket) SocketError() (int, error) {
	return unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
}

// LocalAddr returns the address this socket is locally bound to.
func (s *Socket) LocalAddr() (libaddr.Address, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return libaddr.Unknown(), err
	}
	return fromSockaddr(sa, s.proto), nil
}

// PeerAddr returns the address of the socket's connected peer.
func (s *Socket) PeerAddr() (libaddr.Address, error) {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return libaddr.Unknown(), err
	}
	return fromSockaddr(sa, s.proto), nil
}

// RecvFrom reads one datagram into buf, returning the byte count and the
// sender's address. Used by udp.UdpServer/UdpClient in place of the
// stream ReadFromFD.
func (s *Socket) RecvFrom(buf []byte) (int, libaddr.Address, error) {
	n, sa, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, libaddr.Unknown(), err
	}
	if sa == nil {
		return n, libaddr.Unknown(), nil
	}
	return n, fromSockaddr(sa, s.proto), nil
}

// SendTo writes one datagram to addr.
func (s *Socket) SendTo(buf []byte, addr libaddr.Address) error {
	sa, err := sockaddr(addr)
	if err != nil {
		return err
	}
	return unix.Sendto(s.fd, buf, 0, sa)
}

func sockaddr(addr libaddr.Address) (unix.Sockaddr, error) {
	switch a := addr.NetAddr().(type) {
	case *net.TCPAddr:
		sa := &unix.SockaddrInet4{Port: a.Port}
		if ip4 := a.IP.To4(); ip4 != nil || a.IP == nil {
			copy(sa.Addr[:], ip4)
			return sa, nil
		}
		sa6 := &unix.SockaddrInet6{Port: a.Port}
		copy(sa6.Addr[:], a.IP.To16())
		return sa6, nil
	case *net.UDPAddr:
		sa := &unix.SockaddrInet4{Port: a.Port}
		if ip4 := a.IP.To4(); ip4 != nil || a.IP == nil {
			copy(sa.Addr[:], ip4)
			return sa, nil
		}
		sa6 := &unix.SockaddrInet6{Port: a.Port}
		copy(sa6.Addr[:], a.IP.To16())
		return sa6, nil
	case *net.UnixAddr:
		return &unix.SockaddrUnix{Name: a.Name}, nil
	default:
		return nil, fmt.Errorf("socket: unsupported address type %T", a)
	}
}

func fromSockaddr(sa unix.Sockaddr, proto libptc.NetworkProtocol) libaddr.Address {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return libaddr.FromTCPAddr(&net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}, proto)
	case *unix.SockaddrInet6:
		return libaddr.FromTCPAddr(&net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}, proto)
	case *unix.SockaddrUnix:
		return libaddr.FromUnixAddr(&net.UnixAddr{Name: s.Name, Net: proto.String()}, proto)
	default:
		return libaddr.Unknown()
	}
}

func sockaddrEqual(a, b unix.Sockaddr) bool {
	switch av := a.(type) {
	case *unix.SockaddrInet4:
		bv, ok := b.(*unix.SockaddrInet4)
		return ok && av.Addr == bv.Addr && av.Port == bv.Port
	case *unix.SockaddrInet6:
		bv, ok := b.(*unix.SockaddrInet6)
		return ok && av.Addr == bv.Addr && av.Port == bv.Port
	default:
		return false
	}
}
