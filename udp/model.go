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

package udp

import (
	"time"

	"golang.org/x/sys/unix"

	libaddr "github.com/loopwire/reactor/address"
	libbuf "github.com/loopwire/reactor/buffer"
	libchn "github.com/loopwire/reactor/channel"
	liblog "github.com/loopwire/reactor/logger"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"
)

const maxDatagramSize = 65507

// LoopHandle is the subset of EventLoop a udp peer needs.
type LoopHandle interface {
	libchn.LoopHandle
	RunInLoop(fn func())
}

// peer is the shared guts of UdpServer and UdpClient: one bound
// SOCK_DGRAM socket plus one Channel, per spec.md §4.11.
type peer struct {
	loop    LoopHandle
	sock    *libsock.Socket
	channel *libchn.Channel
	log     *liblog.Logger

	inputBuffer *libbuf.Buffer
}

func newPeer(l LoopHandle, proto libptc.NetworkProtocol, bind string, log *liblog.Logger) (*peer, error) {
	addr, err := libaddr.Resolve(proto, bind)
	if err != nil {
		return nil, err
	}
	sock, err := libsock.New(proto, addr)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(addr); err != nil {
		_ = sock.Close()
		return nil, err
	}

	p := &peer{loop: l, sock: sock, log: log, inputBuffer: libbuf.New()}
	p.channel = libchn.New(l, sock.Fd())
	p.channel.EnableReading()
	return p, nil
}

// recv fills p.inputBuffer with one datagram and reports the peer it came
// from, or ok=false if nothing was delivered (transient error, already
// logged).
func (p *peer) recv() (peer libaddr.Address, ok bool) {
	var buf [maxDatagramSize]byte
	n, from, err := p.sock.RecvFrom(buf[:])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return libaddr.Unknown(), false
		}
		if p.log != nil {
			p.log.Warning("udp: recvfrom failed", err)
		}
		return libaddr.Unknown(), false
	}
	p.inputBuffer.RetrieveAll()
	p.inputBuffer.Write(buf[:n])
	return from, true
}

// sendTo transmits one datagram to addr. Safe from any goroutine.
func (p *peer) sendTo(data []byte, addr libaddr.Address) {
	cp := append([]byte(nil), data...)
	p.loop.RunInLoop(func() {
		if err := p.sock.SendTo(cp, addr); err != nil && p.log != nil {
			p.log.Warning("udp: sendto failed", err)
		}
	})
}

// LocalAddr returns the bound local address.
func (p *peer) LocalAddr() (libaddr.Address, error) { return p.sock.LocalAddr() }

// Close tears the peer's channel and socket down.
func (p *peer) Close() error {
	p.channel.DisableAll()
	p.channel.Remove()
	return p.sock.Close()
}

// ServerMessageFunc is invoked once per received datagram with the peer it
// arrived from and a buffer holding its bytes, mirroring zmuduo's
// `UdpServer::MessageCallback(UdpServer&, Buffer&, const Address::Ptr&)`.
// Whatever the callback leaves readable in buf after it returns is sent
// back to peer as the reply datagram (an empty buffer sends nothing), so a
// pure echo handler is just "don't touch buf".
type ServerMessageFunc func(s *UdpServer, buf *libbuf.Buffer, peer libaddr.Address)

// UdpServer is a bound UDP endpoint that answers any peer that sends to it.
type UdpServer struct {
	*peer
	OnMessage ServerMessageFunc
}

// NewServer binds a UdpServer to bind (e.g. "0.0.0.0:9000" or ":0").
func NewServer(l LoopHandle, proto libptc.NetworkProtocol, bind string, log *liblog.Logger) (*UdpServer, error) {
	p, err := newPeer(l, proto, bind, log)
	if err != nil {
		return nil, err
	}
	s := &UdpServer{peer: p}
	p.channel.SetReadCallback(s.handleRead)
	return s, nil
}

// Send transmits one datagram to peer. Safe from any goroutine.
func (s *UdpServer) Send(data []byte, peer libaddr.Address) { s.sendTo(data, peer) }

func (s *UdpServer) handleRead(time.Time) {
	from, ok := s.recv()
	if !ok {
		return
	}
	if s.OnMessage != nil {
		s.OnMessage(s, s.inputBuffer, from)
	}
	if s.inputBuffer.ReadableBytes() > 0 {
		reply := append([]byte(nil), s.inputBuffer.Peek()...)
		s.inputBuffer.RetrieveAll()
		s.sendTo(reply, from)
	}
}

// ClientMessageFunc is invoked once per datagram received from the
// server, mirroring zmuduo's `UdpClient::MessageCallback(UdpClient&,
// Buffer&)`.
type ClientMessageFunc func(c *UdpClient, buf *libbuf.Buffer)

// UdpClient is a UDP endpoint bound to an ephemeral local port, used to
// talk to one or more server addresses.
type UdpClient struct {
	*peer
	OnMessage ClientMessageFunc
}

// NewClient binds a UdpClient to an ephemeral local port.
func NewClient(l LoopHandle, proto libptc.NetworkProtocol, log *liblog.Logger) (*UdpClient, error) {
	p, err := newPeer(l, proto, ":0", log)
	if err != nil {
		return nil, err
	}
	c := &UdpClient{peer: p}
	p.channel.SetReadCallback(c.handleRead)
	return c, nil
}

// Send transmits one datagram to addr. Safe from any goroutine.
func (c *UdpClient) Send(data []byte, addr libaddr.Address) { c.sendTo(data, addr) }

func (c *UdpClient) handleRead(time.Time) {
	if _, ok := c.recv(); !ok {
		return
	}
	if c.OnMessage != nil {
		c.OnMessage(c, c.inputBuffer)
	}
}
